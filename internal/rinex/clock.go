package rinex

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"example.com/rnxgate/internal/gnss"
	"example.com/rnxgate/internal/grammar"
)

var clockRecordTypes = map[string]bool{
	"AR": true, "AS": true, "CR": true, "DR": true, "MS": true,
}

// decodeClock reads clock data records. A record names its type and
// target, an epoch and a value count; up to two values share the record
// line and four more fit on each continuation line. Records for
// different targets interleave at the same epoch, so records are
// grouped per epoch before insertion.
func decodeClock(h *Header, d *grammar.Dialect, src *countingSource) (*Series, error) {
	lay := d.Clock
	fail := func(line string, err error) error {
		return &RecordDecodeError{FileType: grammar.Clock, N: src.n, Line: line, Err: err}
	}

	type stamped struct {
		t   time.Time
		rec ClockRecord
	}
	var recs []stamped

	for {
		line, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		recType := strings.TrimSpace(lay.Type.Of(line))
		if !clockRecordTypes[recType] {
			return nil, fail(line, fmt.Errorf("unknown clock record type %q", recType))
		}
		name := strings.TrimSpace(lay.Name.Of(line))
		if name == "" {
			return nil, fail(line, fmt.Errorf("%w: clock record target", ErrMissingMandatoryField))
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
		count, err := gnss.ParseInt(lay.Count.Field(line))
		if err != nil || count < 1 {
			return nil, fail(line, fmt.Errorf("value count: %w", err))
		}

		rec := ClockRecord{RecordType: recType, Name: name, Values: make([]float64, 0, count)}
		for i, sp := range lay.Slots {
			if len(rec.Values) >= count {
				break
			}
			f := sp.Field(line)
			if f == "" {
				return nil, fail(line, fmt.Errorf("%w: clock value %d", ErrMissingMandatoryField, i))
			}
			v, err := gnss.ParseFloat(f)
			if err != nil {
				return nil, fail(line, fmt.Errorf("clock value %d: %w", i, err))
			}
			rec.Values = append(rec.Values, v)
		}
		for len(rec.Values) < count {
			cont, err := src.Next()
			if err != nil {
				return nil, fail(line, fmt.Errorf("record truncated after %d of %d values", len(rec.Values), count))
			}
			for _, sp := range lay.ContSlots {
				if len(rec.Values) >= count {
					break
				}
				f := sp.Field(cont)
				if f == "" {
					return nil, fail(cont, fmt.Errorf("%w: clock value %d", ErrMissingMandatoryField, len(rec.Values)))
				}
				v, err := gnss.ParseFloat(f)
				if err != nil {
					return nil, fail(cont, fmt.Errorf("clock value %d: %w", len(rec.Values), err))
				}
				rec.Values = append(rec.Values, v)
			}
		}

		recs = append(recs, stamped{t: epochTime(n[0], n[1], n[2], n[3], n[4], sec), rec: rec})
	}

	groups := make(map[time.Time]*ClockPayload)
	var times []time.Time
	for _, r := range recs {
		g, ok := groups[r.t]
		if !ok {
			g = &ClockPayload{}
			groups[r.t] = g
			times = append(times, r.t)
		}
		g.Records = append(g.Records, r.rec)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	sys := h.TimeSystem
	if sys == gnss.TimeSystemUnknown {
		sys = gnss.TimeGPS
	}
	s := NewSeries(grammar.Clock)
	for _, t := range times {
		if err := s.Insert(Epoch{Time: t, System: sys}, groups[t]); err != nil {
			return nil, err
		}
	}
	return s, nil
}
