package rinex

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"strings"

	"example.com/rnxgate/internal/grammar"
	"example.com/rnxgate/internal/hatanaka"
)

// LineSource yields one text line at a time, without the trailing
// newline. io.EOF marks the clean end of the stream.
type LineSource interface {
	Next() (string, error)
}

type plainLines struct {
	r *bufio.Reader
}

func newPlainLines(r io.Reader) *plainLines {
	return &plainLines{r: bufio.NewReaderSize(r, 64*1024)}
}

func (p *plainLines) Next() (string, error) {
	line, err := p.r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// countingSource tracks the 1-based line number of the line most
// recently returned, giving decode errors their position context.
type countingSource struct {
	src LineSource
	n   int
}

func (c *countingSource) Next() (string, error) {
	line, err := c.src.Next()
	if err == nil {
		c.n++
	}
	return line, err
}

const gzipMagic = "\x1f\x8b"

// Parse reads one RINEX stream: the gzip layer is stripped if present,
// CRINEX text is routed through the hatanaka decompressor, the header
// is parsed and the body decoded per the header's file type. No partial
// container is returned on error.
func Parse(r io.Reader) (*Header, *Series, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	if magic, err := br.Peek(2); err == nil && string(magic) == gzipMagic {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, err
		}
		defer gz.Close()
		br = bufio.NewReaderSize(gz, 64*1024)
	}

	var src LineSource
	if prefix, err := br.Peek(81); err == nil && hatanaka.IsCRINEX(prefix) {
		d, err := hatanaka.NewDecompressor(br)
		if err != nil {
			return nil, nil, err
		}
		src = d
	} else if err == nil || len(prefix) > 0 {
		src = &plainLines{r: br}
	} else {
		return nil, nil, err
	}

	counted := &countingSource{src: src}
	h, err := ParseHeader(counted)
	if err != nil {
		return nil, nil, err
	}
	s, err := decodeBody(h, counted)
	if err != nil {
		return nil, nil, err
	}
	return h, s, nil
}

func decodeBody(h *Header, src *countingSource) (*Series, error) {
	d, err := h.Dialect()
	if err != nil {
		return nil, err
	}
	switch h.Type {
	case grammar.Observation:
		return decodeObs(h, d, src)
	case grammar.Navigation:
		return decodeNav(h, d, src)
	case grammar.Meteo:
		return decodeMet(h, d, src)
	case grammar.Clock:
		return decodeClock(h, d, src)
	case grammar.Ionex:
		return decodeIonex(h, d, src)
	}
	return nil, grammar.ErrUnsupportedDialect
}

// ParseFile opens and parses path. Gzip and CRINEX layers are detected
// from content, not the file name.
func ParseFile(path string) (*Header, *Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return Parse(f)
}
