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

func decodeNav(h *Header, d *grammar.Dialect, src *countingSource) (*Series, error) {
	dec := &navDecoder{h: h, d: d, src: src}
	if err := dec.run(); err != nil {
		return nil, err
	}
	return dec.fold()
}

type navDecoder struct {
	h    *Header
	d    *grammar.Dialect
	src  *countingSource
	pend []string // pushed-back lines, consumed before the source
	msgs []Ephemeris
}

func (dec *navDecoder) fail(line string, err error) error {
	return &RecordDecodeError{FileType: grammar.Navigation, N: dec.src.n, Line: line, Err: err}
}

func (dec *navDecoder) next() (string, error) {
	if n := len(dec.pend); n > 0 {
		line := dec.pend[n-1]
		dec.pend = dec.pend[:n-1]
		return line, nil
	}
	return dec.src.Next()
}

func (dec *navDecoder) pushBack(line string) {
	dec.pend = append(dec.pend, line)
}

func (dec *navDecoder) run() error {
	for {
		line, err := dec.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if dec.d.Nav.Framed {
			err = dec.framedRecord(line)
		} else {
			err = dec.message(line, "")
		}
		if err != nil {
			return err
		}
	}
}

// framedRecord handles a version 4 "> TYPE sat msg" record header.
// Ephemeris records with a known body shape are decoded; everything
// else (STO, EOP, ION, modern CNAV families) is retained verbatim.
func (dec *navDecoder) framedRecord(line string) error {
	if line[0] != '>' {
		return dec.fail(line, fmt.Errorf("expected '>' record header"))
	}
	fields := strings.Fields(line[1:])
	if len(fields) < 2 {
		return dec.fail(line, fmt.Errorf("short record header"))
	}
	recType := fields[0]
	sat, err := gnss.ParseSat(fields[1])
	if err != nil {
		return dec.fail(line, err)
	}
	msg := ""
	if len(fields) > 2 {
		msg = fields[2]
	}
	if recType == "EPH" {
		if _, ok := grammar.LookupNavShape(sat.Sys, msg); ok {
			return dec.message2(sat, msg, recType)
		}
	}
	return dec.rawRecord(sat, recType, msg)
}

// rawRecord retains a record's body lines verbatim up to the next '>'
// header. The satellite/epoch line supplies the record's epoch.
func (dec *navDecoder) rawRecord(sat gnss.Sat, recType, msg string) error {
	first, err := dec.next()
	if err == io.EOF {
		return dec.fail("", fmt.Errorf("%s record truncated", recType))
	}
	if err != nil {
		return err
	}
	toc, err := dec.epochOf(first)
	if err != nil {
		return dec.fail(first, err)
	}
	e := Ephemeris{
		Sat:        sat,
		RecordType: recType,
		Message:    msg,
		Kind:       grammar.NavKindRaw,
		Toc:        toc,
		RawLines:   []string{strings.TrimRight(first, " ")},
	}
	for {
		line, err := dec.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if len(line) > 0 && line[0] == '>' {
			dec.pushBack(line)
			break
		}
		e.RawLines = append(e.RawLines, strings.TrimRight(line, " "))
	}
	dec.msgs = append(dec.msgs, e)
	return nil
}

// message decodes an unframed (version 2/3) broadcast message whose
// first line is the given satellite/epoch line.
func (dec *navDecoder) message(line, msg string) error {
	sat, err := dec.satOf(line)
	if err != nil {
		return dec.fail(line, err)
	}
	if msg == "" {
		msg = grammar.NavMessageDefault(sat.Sys)
	}
	if _, ok := grammar.LookupNavShape(sat.Sys, msg); !ok {
		return dec.fail(line, fmt.Errorf("%w: %s message %q", grammar.ErrUnsupportedDialect, sat.Sys, msg))
	}
	dec.pushBack(line)
	return dec.message2(sat, msg, "EPH")
}

// message2 decodes a shaped broadcast message: the satellite/clock line
// then the fixed number of continuation lines for the constellation.
func (dec *navDecoder) message2(sat gnss.Sat, msg, recType string) error {
	shape, _ := grammar.LookupNavShape(sat.Sys, msg)
	lay := dec.d.Nav

	line, err := dec.next()
	if err == io.EOF {
		return dec.fail("", fmt.Errorf("message truncated before clock line"))
	}
	if err != nil {
		return err
	}
	toc, err := dec.epochOf(line)
	if err != nil {
		return dec.fail(line, err)
	}
	e := Ephemeris{
		Sat:        sat,
		RecordType: recType,
		Message:    msg,
		Kind:       shape.Kind,
		Toc:        toc,
		Orbit:      make([][4]float64, shape.Cont),
		Filled:     make([][4]bool, shape.Cont),
	}
	for i, sp := range lay.Clock {
		v, err := gnss.ParseFloat(sp.Field(line))
		if err != nil {
			return dec.fail(line, fmt.Errorf("clock coefficient %d: %w", i, err))
		}
		e.Clock[i] = v
	}

	for i := 0; i < shape.Cont; i++ {
		cont, err := dec.next()
		if err == io.EOF {
			return dec.fail("", fmt.Errorf("message truncated after %d of %d continuation lines", i, shape.Cont))
		}
		if err != nil {
			return err
		}
		for j, sp := range lay.ContSlots {
			f := sp.Field(cont)
			if f == "" {
				continue
			}
			v, err := gnss.ParseFloat(f)
			if err != nil {
				return dec.fail(cont, fmt.Errorf("orbit field %d/%d: %w", i, j, err))
			}
			e.Orbit[i][j] = v
			e.Filled[i][j] = true
		}
	}

	switch shape.Kind {
	case grammar.NavKindKeplerian:
		e.Keplerian = decodeKeplerian(sat.Sys, e.Orbit)
	case grammar.NavKindStateVector:
		e.StateVector = decodeStateVector(sat.Sys, e.Orbit)
	}
	dec.msgs = append(dec.msgs, e)
	return nil
}

// satOf reads the satellite identifier opening a message line. Version
// 2 per-system files carry a bare PRN whose system comes from the file
// type.
func (dec *navDecoder) satOf(line string) (gnss.Sat, error) {
	field := dec.d.Nav.SatSpan.Of(line)
	if dec.d.Nav.SatSpan.Len == 2 {
		prn, err := gnss.ParseInt(field)
		if err != nil || prn <= 0 {
			return gnss.Sat{}, fmt.Errorf("satellite number %q", field)
		}
		sys := dec.h.System
		if sys == gnss.ConstellationUnknown || sys == gnss.Mixed {
			sys = gnss.GPS
		}
		return gnss.Sat{Sys: sys, PRN: prn}, nil
	}
	return gnss.ParseSat(field)
}

func (dec *navDecoder) epochOf(line string) (time.Time, error) {
	lay := dec.d.Nav
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

// decodeKeplerian names the broadcast orbit slots of a Keplerian-style
// message. The BeiDou week offset (BDT week 0 = GPS week 1356) is
// applied here so Week is a GPS week for every constellation; the raw
// slots stay untouched for serialization.
func decodeKeplerian(sys gnss.Constellation, o [][4]float64) *KeplerianSet {
	k := &KeplerianSet{
		IODE: o[0][0], Crs: o[0][1], DeltaN: o[0][2], M0: o[0][3],
		Cuc: o[1][0], Ecc: o[1][1], Cus: o[1][2], SqrtA: o[1][3],
		Toe: o[2][0], Cic: o[2][1], Omega0: o[2][2], Cis: o[2][3],
		I0: o[3][0], Crc: o[3][1], Omega: o[3][2], OmegaDot: o[3][3],
	}
	if len(o) > 4 {
		k.IDot = o[4][0]
		k.CodesL2 = o[4][1]
		k.Week = int(o[4][2])
		if sys == gnss.BeiDou {
			k.Week += 1356
		}
		k.L2PFlag = o[4][3]
	}
	if len(o) > 5 {
		k.Accuracy = o[5][0]
		k.Health = int(o[5][1])
		k.TGD = o[5][2]
		k.IODC = o[5][3]
	}
	if len(o) > 6 {
		k.Tot = o[6][0]
		k.FitInt = o[6][1]
	}
	return k
}

// decodeStateVector names the GLONASS/SBAS slots. File kilometers
// become meters in the decoded view.
func decodeStateVector(sys gnss.Constellation, o [][4]float64) *StateVectorSet {
	s := &StateVectorSet{}
	for i := 0; i < 3 && i < len(o); i++ {
		s.Pos[i] = o[i][0] * 1000
		s.Vel[i] = o[i][1] * 1000
		s.Acc[i] = o[i][2] * 1000
	}
	if len(o) > 2 {
		s.Health = int(o[0][3])
		if sys == gnss.GLONASS {
			s.FreqNum = int(o[1][3])
			if s.FreqNum > 128 {
				s.FreqNum -= 256
			}
			s.Age = int(o[2][3])
		} else {
			s.Accuracy = o[1][3]
			s.IODN = int(o[2][3])
		}
	}
	return s
}

// fold groups decoded messages by their epoch and inserts them in
// chronological order. Navigation files interleave constellations whose
// clock epochs are not globally sorted, so ordering is restored here
// rather than failing the append-only insert.
func (dec *navDecoder) fold() (*Series, error) {
	groups := make(map[time.Time]*NavPayload)
	var times []time.Time
	for _, m := range dec.msgs {
		g, ok := groups[m.Toc]
		if !ok {
			g = &NavPayload{}
			groups[m.Toc] = g
			times = append(times, m.Toc)
		}
		g.Msgs = append(g.Msgs, m)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	s := NewSeries(grammar.Navigation)
	for _, t := range times {
		g := groups[t]
		sys := gnss.DefaultTimeSystem(g.Msgs[0].Sat.Sys)
		if dec.h.TimeSystem != gnss.TimeSystemUnknown {
			sys = dec.h.TimeSystem
		}
		if err := s.Insert(Epoch{Time: t, System: sys}, g); err != nil {
			return nil, err
		}
	}
	return s, nil
}
