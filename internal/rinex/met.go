package rinex

import (
	"fmt"
	"io"
	"strings"

	"example.com/rnxgate/internal/gnss"
	"example.com/rnxgate/internal/grammar"
)

// decodeMet reads meteorological epoch records. Each record carries one
// value per declared sensor, eight per line with indented continuation
// lines.
func decodeMet(h *Header, d *grammar.Dialect, src *countingSource) (*Series, error) {
	lay := d.Met
	s := NewSeries(grammar.Meteo)
	fail := func(line string, err error) error {
		return &RecordDecodeError{FileType: grammar.Meteo, N: src.n, Line: line, Err: err}
	}

	for {
		line, err := src.Next()
		if err == io.EOF {
			return s, nil
		}
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		var n [5]int
		spans := [5]grammar.Span{lay.Year, lay.Month, lay.Day, lay.Hour, lay.Min}
		names := [5]string{"year", "month", "day", "hour", "minute"}
		for i, sp := range spans {
			v, err := gnss.ParseInt(sp.Field(line))
			if err != nil {
				return nil, fail(line, fmt.Errorf("%s: %w", names[i], err))
			}
			n[i] = v
		}
		sec, err := gnss.ParseFloat(lay.Sec.Field(line))
		if err != nil {
			return nil, fail(line, fmt.Errorf("seconds: %w", err))
		}

		payload := make(MetPayload, len(h.Sensors))
		pos := lay.ValueStart
		cur := line
		for i, sensor := range h.Sensors {
			if i > 0 && i%lay.PerLine == 0 {
				cur, err = src.Next()
				if err != nil {
					return nil, fail(line, fmt.Errorf("record truncated after %d of %d values", i, len(h.Sensors)))
				}
				pos = lay.ContStart
			}
			f := grammar.Span{Start: pos, Len: lay.ValueWidth}.Field(cur)
			pos += lay.ValueWidth
			if f == "" {
				continue
			}
			v, err := gnss.ParseFloat(f)
			if err != nil {
				return nil, fail(cur, fmt.Errorf("sensor %s: %w", sensor.Code, err))
			}
			payload[sensor.Code] = v
		}

		// Meteo epochs carry no time system of their own.
		epoch := Epoch{Time: epochTime(n[0], n[1], n[2], n[3], n[4], sec), System: gnss.TimeUTC}
		if err := s.Insert(epoch, payload); err != nil {
			return nil, err
		}
	}
}
