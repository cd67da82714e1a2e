package common

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type Hasher struct {
	h hash.Hash
}

func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

func (h *Hasher) Sum() string {
	return hex.EncodeToString(h.h.Sum(nil))
}

func Sha256OfFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	stat, _ := f.Stat()
	h := sha256.New()
	_, err = io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), stat.Size(), nil
}

// FileClass is the format a file name advertises. Content sniffing in
// the parser is authoritative; the class steers watcher filtering and
// output naming only.
type FileClass int

const (
	ClassUnknown FileClass = iota
	ClassRINEX             // .rnx or the v2 .##o/.##n/.##m style
	ClassCRINEX            // .crx or the v2 .##d style
)

func (c FileClass) String() string {
	switch c {
	case ClassRINEX:
		return "rinex"
	case ClassCRINEX:
		return "crinex"
	}
	return "unknown"
}

// Classify reads a file name into its advertised class and whether a
// trailing .gz layer is present.
func Classify(name string) (FileClass, bool) {
	base := strings.ToLower(filepath.Base(name))
	gzipped := false
	if strings.HasSuffix(base, ".gz") {
		gzipped = true
		base = strings.TrimSuffix(base, ".gz")
	}
	ext := filepath.Ext(base)
	switch ext {
	case ".rnx":
		return ClassRINEX, gzipped
	case ".crx":
		return ClassCRINEX, gzipped
	}
	// Version 2 short names: two-digit year then a type letter,
	// e.g. brdc0010.22n, stat0010.22o, stat0010.22d.
	if len(ext) == 4 && isDigit(ext[1]) && isDigit(ext[2]) {
		switch ext[3] {
		case 'o', 'n', 'g', 'h', 'm', 'c', 'i':
			return ClassRINEX, gzipped
		case 'd':
			return ClassCRINEX, gzipped
		}
	}
	return ClassUnknown, gzipped
}

// OutputName derives the plain-RINEX name a normalized copy of name
// should be written under.
func OutputName(name string) string {
	base := filepath.Base(name)
	if strings.HasSuffix(strings.ToLower(base), ".gz") {
		base = base[:len(base)-3]
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	lower := strings.ToLower(ext)
	switch {
	case lower == ".crx":
		return stem + ".rnx"
	case len(lower) == 4 && isDigit(lower[1]) && isDigit(lower[2]) && lower[3] == 'd':
		return stem + ext[:3] + "o"
	case lower == "":
		return base + ".rnx"
	}
	return base
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
