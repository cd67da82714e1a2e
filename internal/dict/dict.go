// Package dict holds the observable dictionary: the set of observation
// codes, carrier bands and meteo sensor types considered valid per
// constellation. The parser enforces only header-vs-payload conformance;
// the dictionary backs the tooling-level checks (rnxctl scan, rnxctl
// dict) that flag header catalogs declaring unknown codes.
package dict

import (
	"fmt"
	"sort"
	"strings"

	"example.com/rnxgate/internal/gnss"
	"example.com/rnxgate/internal/rinex"
)

// File is the YAML shape of a dictionary document.
type File struct {
	Constellations map[string]ConstellationEntry `yaml:"constellations"`
	Sensors        []string                      `yaml:"sensors"`
}

// ConstellationEntry lists what one constellation may declare.
type ConstellationEntry struct {
	Name   string   `yaml:"name"`
	Bands  []int    `yaml:"bands"`
	Codes  []string `yaml:"codes"`
	Legacy []string `yaml:"legacy"`
}

type sysEntry struct {
	bands  map[int]bool
	codes  map[gnss.ObsCode]bool
	legacy map[gnss.ObsCode]bool
}

// Store is the compiled dictionary.
type Store struct {
	sys     map[gnss.Constellation]*sysEntry
	sensors map[string]bool
}

// FromFile validates and compiles a parsed dictionary document.
func FromFile(file File) (*Store, error) {
	store := &Store{
		sys:     make(map[gnss.Constellation]*sysEntry),
		sensors: make(map[string]bool),
	}
	for letter, entry := range file.Constellations {
		if len(letter) != 1 {
			return nil, fmt.Errorf("constellations: key %q is not a system letter", letter)
		}
		sys, err := gnss.ConstellationFromLetter(letter[0])
		if err != nil {
			return nil, fmt.Errorf("constellations: %w", err)
		}
		if _, exists := store.sys[sys]; exists {
			return nil, fmt.Errorf("constellations: duplicate system %s", letter)
		}
		se := &sysEntry{
			bands:  make(map[int]bool),
			codes:  make(map[gnss.ObsCode]bool),
			legacy: make(map[gnss.ObsCode]bool),
		}
		for _, b := range entry.Bands {
			if b < 1 || b > 9 {
				return nil, fmt.Errorf("constellations.%s: band %d out of range", letter, b)
			}
			se.bands[b] = true
		}
		for i, raw := range entry.Codes {
			code := gnss.ObsCode(strings.TrimSpace(raw))
			if len(code) != 3 {
				return nil, fmt.Errorf("constellations.%s.codes[%d]: %q is not a 3-character code", letter, i, raw)
			}
			if !strings.ContainsRune("CLDSX", rune(code[0])) {
				return nil, fmt.Errorf("constellations.%s.codes[%d]: unknown kind %q", letter, i, code[0])
			}
			if band := int(code[1] - '0'); !se.bands[band] {
				return nil, fmt.Errorf("constellations.%s.codes[%d]: band %c not declared", letter, i, code[1])
			}
			if se.codes[code] {
				return nil, fmt.Errorf("constellations.%s.codes[%d]: duplicate %s", letter, i, code)
			}
			se.codes[code] = true
		}
		for i, raw := range entry.Legacy {
			code := gnss.ObsCode(strings.TrimSpace(raw))
			if len(code) != 2 {
				return nil, fmt.Errorf("constellations.%s.legacy[%d]: %q is not a 2-character code", letter, i, raw)
			}
			if se.legacy[code] {
				return nil, fmt.Errorf("constellations.%s.legacy[%d]: duplicate %s", letter, i, code)
			}
			se.legacy[code] = true
		}
		store.sys[sys] = se
	}
	for i, raw := range file.Sensors {
		code := strings.TrimSpace(raw)
		if len(code) != 2 {
			return nil, fmt.Errorf("sensors[%d]: %q is not a 2-character code", i, raw)
		}
		if store.sensors[code] {
			return nil, fmt.Errorf("sensors[%d]: duplicate %s", i, code)
		}
		store.sensors[code] = true
	}
	return store, nil
}

// KnownCode reports whether the dictionary accepts code for sys, in
// either the modern 3-character or the legacy 2-character form.
func (s *Store) KnownCode(sys gnss.Constellation, code gnss.ObsCode) bool {
	if s == nil {
		return false
	}
	se, ok := s.sys[sys]
	if !ok {
		return false
	}
	return se.codes[code] || se.legacy[code]
}

// KnownSensor reports whether a meteo sensor code is declared.
func (s *Store) KnownSensor(code string) bool {
	if s == nil {
		return false
	}
	return s.sensors[code]
}

// Systems lists the declared constellations in stable order.
func (s *Store) Systems() []gnss.Constellation {
	if s == nil {
		return nil
	}
	out := make([]gnss.Constellation, 0, len(s.sys))
	for sys := range s.sys {
		out = append(out, sys)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Codes lists the modern codes of one constellation in sorted order.
func (s *Store) Codes(sys gnss.Constellation) []gnss.ObsCode {
	if s == nil || s.sys[sys] == nil {
		return nil
	}
	out := make([]gnss.ObsCode, 0, len(s.sys[sys].codes))
	for c := range s.sys[sys].codes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Store) IsEmpty() bool {
	if s == nil {
		return true
	}
	return len(s.sys) == 0 && len(s.sensors) == 0
}

// Finding flags one header declaration the dictionary does not know.
type Finding struct {
	Sys    gnss.Constellation
	Code   string
	Reason string
}

func (f Finding) String() string {
	if f.Sys != gnss.ConstellationUnknown {
		return fmt.Sprintf("%c %s: %s", f.Sys.Letter(), f.Code, f.Reason)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Reason)
}

// Check audits a parsed header's catalog against the dictionary and
// returns one finding per unknown declaration.
func (s *Store) Check(h *rinex.Header) []Finding {
	var out []Finding
	for _, sys := range sortedCatalogSystems(h.ObsCodes) {
		se := s.sys[sys]
		if se == nil {
			out = append(out, Finding{Sys: sys, Code: string(sys.Letter()), Reason: "constellation not in dictionary"})
			continue
		}
		for _, code := range h.ObsCodes[sys] {
			if !se.codes[code] && !se.legacy[code] {
				out = append(out, Finding{Sys: sys, Code: string(code), Reason: "code not in dictionary"})
			}
		}
	}
	for _, sensor := range h.Sensors {
		if !s.sensors[sensor.Code] {
			out = append(out, Finding{Code: sensor.Code, Reason: "sensor not in dictionary"})
		}
	}
	return out
}

func sortedCatalogSystems(m map[gnss.Constellation][]gnss.ObsCode) []gnss.Constellation {
	out := make([]gnss.Constellation, 0, len(m))
	for sys := range m {
		out = append(out, sys)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
