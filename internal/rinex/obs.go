package rinex

import (
	"fmt"
	"io"
	"strings"
	"time"

	"example.com/rnxgate/internal/gnss"
	"example.com/rnxgate/internal/grammar"
)

func decodeObs(h *Header, d *grammar.Dialect, src *countingSource) (*Series, error) {
	dec := &obsDecoder{h: h, d: d, src: src, s: NewSeries(grammar.Observation)}
	if err := dec.run(); err != nil {
		return nil, err
	}
	return dec.s, nil
}

type obsDecoder struct {
	h   *Header
	d   *grammar.Dialect
	src *countingSource
	s   *Series
}

func (dec *obsDecoder) fail(line string, err error) error {
	return &RecordDecodeError{FileType: grammar.Observation, N: dec.src.n, Line: line, Err: err}
}

func (dec *obsDecoder) timeSystem() gnss.TimeSystem {
	if dec.h.TimeSystem != gnss.TimeSystemUnknown {
		return dec.h.TimeSystem
	}
	return gnss.DefaultTimeSystem(dec.h.System)
}

func (dec *obsDecoder) run() error {
	for {
		line, err := dec.src.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := dec.epoch(line); err != nil {
			return err
		}
	}
}

func (dec *obsDecoder) epoch(line string) error {
	lay := dec.d.Epoch
	if lay.Prefix != 0 && (len(line) == 0 || line[0] != lay.Prefix) {
		return dec.fail(line, fmt.Errorf("expected epoch line starting with %q", lay.Prefix))
	}
	ts, err := dec.epochTimestamp(lay, line)
	if err != nil {
		return dec.fail(line, err)
	}
	flag, err := epochFlag(lay.Flag, line)
	if err != nil {
		return dec.fail(line, err)
	}
	count, err := gnss.ParseInt(lay.Count.Field(line))
	if err != nil {
		return dec.fail(line, fmt.Errorf("satellite count: %w", err))
	}
	epoch := Epoch{Time: ts, System: dec.timeSystem(), Flag: flag}

	var payload *ObsPayload
	if flag.IsEvent() {
		payload, err = dec.eventRecords(flag, count)
	} else if lay.SatsPerLine > 0 {
		payload, err = dec.epochV2(lay, line, count)
	} else {
		payload, err = dec.epochV3(lay, line, count)
	}
	if err != nil {
		return err
	}
	return dec.s.Insert(epoch, payload)
}

func (dec *obsDecoder) epochTimestamp(lay *grammar.EpochLayout, line string) (time.Time, error) {
	var n [5]int
	spans := [5]grammar.Span{lay.Year, lay.Month, lay.Day, lay.Hour, lay.Min}
	names := [5]string{"year", "month", "day", "hour", "minute"}
	for i, sp := range spans {
		v, err := gnss.ParseInt(sp.Field(line))
		if err != nil {
			return time.Time{}, fmt.Errorf("%s: %w", names[i], err)
		}
		n[i] = v
	}
	sec, err := gnss.ParseFloat(lay.Sec.Field(line))
	if err != nil {
		return time.Time{}, fmt.Errorf("seconds: %w", err)
	}
	return epochTime(n[0], n[1], n[2], n[3], n[4], sec), nil
}

// eventRecords captures the header-style records of a special-event
// epoch verbatim. Cycle-slip blocks (flag 6) span full satellite
// records rather than single lines in version 2 layouts.
func (dec *obsDecoder) eventRecords(flag EpochFlag, count int) (*ObsPayload, error) {
	lines := count
	if flag == FlagCycleSlip && dec.d.Obs.CellsPerLine > 0 {
		lines = count * dec.linesPerSat(dec.v2Catalog())
	}
	p := &ObsPayload{EventCount: count}
	for i := 0; i < lines; i++ {
		rec, err := dec.src.Next()
		if err == io.EOF {
			return nil, dec.fail("", fmt.Errorf("event epoch truncated after %d of %d records", i, lines))
		}
		if err != nil {
			return nil, err
		}
		p.EventRecords = append(p.EventRecords, strings.TrimRight(rec, " "))
	}
	return p, nil
}

func (dec *obsDecoder) v2Catalog() []gnss.ObsCode {
	sys := dec.h.System
	if sys == gnss.Mixed || sys == gnss.ConstellationUnknown {
		sys = gnss.GPS
	}
	return dec.h.ObsCodes[sys]
}

func (dec *obsDecoder) linesPerSat(codes []gnss.ObsCode) int {
	per := dec.d.Obs.CellsPerLine
	if per <= 0 || len(codes) == 0 {
		return 1
	}
	return (len(codes) + per - 1) / per
}

func (dec *obsDecoder) epochV2(lay *grammar.EpochLayout, line string, count int) (*ObsPayload, error) {
	codes := dec.v2Catalog()
	if len(codes) == 0 {
		return nil, dec.fail(line, fmt.Errorf("no observable catalog in header"))
	}
	payload := &ObsPayload{Sats: make(map[gnss.Sat]SatObs, count)}
	if f := lay.ClockOffset.Field(line); f != "" {
		v, err := gnss.ParseFloat(f)
		if err != nil {
			return nil, dec.fail(line, fmt.Errorf("receiver clock offset: %w", err))
		}
		payload.ClockOffset = v
		payload.HasClock = true
	}

	sats := make([]gnss.Sat, 0, count)
	listLine := line
	for i := 0; i < count; i++ {
		if i > 0 && i%lay.SatsPerLine == 0 {
			next, err := dec.src.Next()
			if err != nil {
				return nil, dec.fail(listLine, &EpochSatelliteCountMismatch{Declared: count, Got: i})
			}
			listLine = next
		}
		span := grammar.Span{Start: lay.SatList.Start + 3*(i%lay.SatsPerLine), Len: 3}
		code := span.Of(listLine)
		if strings.TrimSpace(code) == "" {
			return nil, dec.fail(listLine, &EpochSatelliteCountMismatch{Declared: count, Got: i})
		}
		sat, err := gnss.ParseSat(code)
		if err != nil {
			return nil, dec.fail(listLine, err)
		}
		sats = append(sats, sat)
	}

	perSat := dec.linesPerSat(codes)
	for i, sat := range sats {
		obs := make(SatObs, len(codes))
		for li := 0; li < perSat; li++ {
			data, err := dec.src.Next()
			if err != nil {
				return nil, dec.fail("", &EpochSatelliteCountMismatch{Declared: count, Got: i})
			}
			lo := li * dec.d.Obs.CellsPerLine
			hi := lo + dec.d.Obs.CellsPerLine
			if hi > len(codes) {
				hi = len(codes)
			}
			for j := lo; j < hi; j++ {
				dec.cell(data, dec.d.Obs.CellWidth*(j-lo), codes[j], obs)
			}
		}
		if len(obs) > 0 {
			payload.Sats[sat] = obs
		}
	}
	return payload, nil
}

func (dec *obsDecoder) epochV3(lay *grammar.EpochLayout, line string, count int) (*ObsPayload, error) {
	payload := &ObsPayload{Sats: make(map[gnss.Sat]SatObs, count)}
	if f := lay.ClockOffset.Field(line); f != "" {
		v, err := gnss.ParseFloat(f)
		if err != nil {
			return nil, dec.fail(line, fmt.Errorf("receiver clock offset: %w", err))
		}
		payload.ClockOffset = v
		payload.HasClock = true
	}
	for i := 0; i < count; i++ {
		data, err := dec.src.Next()
		if err == io.EOF {
			return nil, dec.fail("", &EpochSatelliteCountMismatch{Declared: count, Got: i})
		}
		if err != nil {
			return nil, err
		}
		if len(data) > 0 && data[0] == lay.Prefix {
			return nil, dec.fail(data, &EpochSatelliteCountMismatch{Declared: count, Got: i})
		}
		sat, err := gnss.ParseSat(dec.d.Obs.SatSpan.Of(data))
		if err != nil {
			return nil, dec.fail(data, err)
		}
		codes := dec.h.ObsCodes[sat.Sys]
		if len(codes) == 0 {
			return nil, dec.fail(data, fmt.Errorf("no observable catalog for system %s", sat.Sys))
		}
		obs := make(SatObs, len(codes))
		for j := range codes {
			dec.cell(data, dec.d.Obs.DataStart+dec.d.Obs.CellWidth*j, codes[j], obs)
		}
		if len(obs) > 0 {
			payload.Sats[sat] = obs
		}
	}
	return payload, nil
}

// cell decodes one observation cell. Blank values mean the observation
// is absent, never zero.
func (dec *obsDecoder) cell(line string, pos int, code gnss.ObsCode, out SatObs) {
	w := dec.d.Obs.ValueWidth
	val := strings.TrimSpace(grammar.Span{Start: pos, Len: w}.Of(line))
	if val == "" {
		return
	}
	v, err := gnss.ParseFloat(val)
	if err != nil {
		return
	}
	o := Obs{Val: v}
	if f := (grammar.Span{Start: pos + w, Len: 1}).Field(line); f != "" {
		if n, err := gnss.ParseInt(f); err == nil {
			o.LLI = n
		}
	}
	if f := (grammar.Span{Start: pos + w + 1, Len: 1}).Field(line); f != "" {
		if n, err := gnss.ParseInt(f); err == nil {
			o.SNR = n
		}
	}
	out[code] = o
}

func epochFlag(span grammar.Span, line string) (EpochFlag, error) {
	f := span.Field(line)
	if f == "" {
		return FlagOK, nil
	}
	n, err := gnss.ParseInt(f)
	if err != nil {
		return FlagOK, fmt.Errorf("epoch flag: %w", err)
	}
	if n < 0 || n > int(FlagCycleSlip) {
		return FlagOK, fmt.Errorf("epoch flag %d out of range", n)
	}
	return EpochFlag(n), nil
}
