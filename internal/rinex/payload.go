// Package rinex parses RINEX text into a structured, time-indexed data
// model: a header, a sequence of typed epoch payloads and the Series
// container that holds them. Decoders consume plain text or the output
// of the hatanaka decompressor through the shared LineSource interface.
package rinex

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"example.com/rnxgate/internal/gnss"
	"example.com/rnxgate/internal/grammar"
)

// EpochFlag is the status digit of an epoch record line.
type EpochFlag int

const (
	FlagOK EpochFlag = iota
	FlagPowerFailure
	FlagAntennaMoved
	FlagNewSite
	FlagHeaderFollows
	FlagExternalEvent
	FlagCycleSlip
)

// IsEvent reports whether the flag marks a special-event epoch whose
// records are header-style lines rather than observations.
func (f EpochFlag) IsEvent() bool {
	return f >= FlagAntennaMoved
}

// Epoch keys one entry of a Series: an absolute timestamp, the time
// system it is expressed in and the record's status flag.
type Epoch struct {
	Time   time.Time
	System gnss.TimeSystem
	Flag   EpochFlag
}

// Predicate selects sub-payload members for Series.Filter. The code
// argument is empty for payloads without an observable dimension
// (navigation messages pass their message type instead).
type Predicate func(sat gnss.Sat, code gnss.ObsCode) bool

// Payload is one epoch's decoded content. The concrete type matches the
// file type of the series the payload lives in.
type Payload interface {
	Type() grammar.FileType

	// filter keeps only matching sub-payloads; ok is false when nothing
	// remains and the epoch should be dropped.
	filter(pred Predicate) (p Payload, ok bool)

	// equal reports payload content equality, used by merge policies.
	equal(other Payload) bool

	// union merges disjoint sub-payloads of two payloads for the same
	// epoch; ok is false when the payloads overlap with differing content.
	union(other Payload) (p Payload, ok bool)
}

// Obs is a single measurement cell: the value plus the loss-of-lock and
// signal-strength digits. A cell that is absent from the file simply
// does not appear in the SatObs map.
type Obs struct {
	Val float64
	LLI int
	SNR int
}

// SatObs maps observable codes to measurements for one satellite.
type SatObs map[gnss.ObsCode]Obs

// ObsPayload holds one observation epoch. Event epochs (flags 2-5)
// carry their header-style records verbatim in EventRecords and have no
// satellite entries.
type ObsPayload struct {
	Sats         map[gnss.Sat]SatObs
	ClockOffset  float64
	HasClock     bool
	EventRecords []string
	EventCount   int // declared record count of the event epoch line
}

func (p *ObsPayload) Type() grammar.FileType { return grammar.Observation }

func (p *ObsPayload) filter(pred Predicate) (Payload, bool) {
	if len(p.EventRecords) > 0 {
		return p, true
	}
	out := &ObsPayload{
		Sats:        make(map[gnss.Sat]SatObs),
		ClockOffset: p.ClockOffset,
		HasClock:    p.HasClock,
	}
	for sat, obs := range p.Sats {
		kept := make(SatObs)
		for code, o := range obs {
			if pred(sat, code) {
				kept[code] = o
			}
		}
		if len(kept) > 0 {
			out.Sats[sat] = kept
		}
	}
	if len(out.Sats) == 0 {
		return nil, false
	}
	return out, true
}

func (p *ObsPayload) equal(other Payload) bool {
	q, ok := other.(*ObsPayload)
	if !ok {
		return false
	}
	if p.HasClock != q.HasClock || (p.HasClock && p.ClockOffset != q.ClockOffset) {
		return false
	}
	if p.EventCount != q.EventCount || len(p.EventRecords) != len(q.EventRecords) {
		return false
	}
	for i := range p.EventRecords {
		if p.EventRecords[i] != q.EventRecords[i] {
			return false
		}
	}
	if len(p.Sats) != len(q.Sats) {
		return false
	}
	for sat, obs := range p.Sats {
		qobs, ok := q.Sats[sat]
		if !ok || len(obs) != len(qobs) {
			return false
		}
		for code, o := range obs {
			if qo, ok := qobs[code]; !ok || qo != o {
				return false
			}
		}
	}
	return true
}

func (p *ObsPayload) union(other Payload) (Payload, bool) {
	q, ok := other.(*ObsPayload)
	if !ok {
		return nil, false
	}
	out := &ObsPayload{
		Sats:         make(map[gnss.Sat]SatObs, len(p.Sats)+len(q.Sats)),
		ClockOffset:  p.ClockOffset,
		HasClock:     p.HasClock,
		EventRecords: p.EventRecords,
		EventCount:   p.EventCount,
	}
	for sat, obs := range p.Sats {
		out.Sats[sat] = obs
	}
	for sat, obs := range q.Sats {
		have, exists := out.Sats[sat]
		if !exists {
			out.Sats[sat] = obs
			continue
		}
		for code, o := range obs {
			if ho, ok := have[code]; ok && ho != o {
				return nil, false
			}
		}
		merged := make(SatObs, len(have)+len(obs))
		for code, o := range have {
			merged[code] = o
		}
		for code, o := range obs {
			merged[code] = o
		}
		out.Sats[sat] = merged
	}
	return out, true
}

// KeplerianSet holds the broadcast orbit of a GPS/Galileo/BeiDou/QZSS/
// NavIC style message.
type KeplerianSet struct {
	IODE     float64
	Crs      float64
	DeltaN   float64
	M0       float64
	Cuc      float64
	Ecc      float64
	Cus      float64
	SqrtA    float64
	Toe      float64
	Cic      float64
	Omega0   float64
	Cis      float64
	I0       float64
	Crc      float64
	Omega    float64
	OmegaDot float64
	IDot     float64
	CodesL2  float64
	Week     int
	L2PFlag  float64
	Accuracy float64
	Health   int
	TGD      float64
	IODC     float64
	Tot      float64
	FitInt   float64
}

// StateVectorSet holds a GLONASS or SBAS state-vector message. Position,
// velocity and acceleration are in meters (the file's kilometers are
// scaled on decode).
type StateVectorSet struct {
	Pos      [3]float64
	Vel      [3]float64
	Acc      [3]float64
	Health   int
	FreqNum  int // GLONASS frequency channel
	Age      int // GLONASS age of operation
	Accuracy float64
	IODN     int // SBAS issue of data
}

// Ephemeris is one navigation message, tagged by constellation and
// message type. Keplerian and StateVector are the decoded views; the
// Orbit slots retain every continuation field in file order so the
// writer reproduces the record exactly. Version 4 non-ephemeris records
// (STO, EOP, ION) keep their body lines verbatim in RawLines.
type Ephemeris struct {
	Sat        gnss.Sat
	RecordType string // EPH for broadcast messages, else STO/EOP/ION
	Message    string // LNAV, INAV, FNAV, D1, D2, FDMA, SBAS, CNAV...
	Kind       grammar.NavKind
	Toc        time.Time
	Clock      [3]float64

	Orbit  [][4]float64
	Filled [][4]bool

	Keplerian   *KeplerianSet
	StateVector *StateVectorSet

	RawLines []string
}

func (e *Ephemeris) equalOrbit(o *Ephemeris) bool {
	if len(e.Orbit) != len(o.Orbit) {
		return false
	}
	for i := range e.Orbit {
		if e.Orbit[i] != o.Orbit[i] || e.Filled[i] != o.Filled[i] {
			return false
		}
	}
	return true
}

func (e *Ephemeris) equal(o *Ephemeris) bool {
	if e.Sat != o.Sat || e.RecordType != o.RecordType || e.Message != o.Message ||
		e.Kind != o.Kind || !e.Toc.Equal(o.Toc) || e.Clock != o.Clock {
		return false
	}
	if len(e.RawLines) != len(o.RawLines) {
		return false
	}
	for i := range e.RawLines {
		if e.RawLines[i] != o.RawLines[i] {
			return false
		}
	}
	return e.equalOrbit(o)
}

// NavPayload holds every navigation message sharing one epoch.
type NavPayload struct {
	Msgs []Ephemeris
}

func (p *NavPayload) Type() grammar.FileType { return grammar.Navigation }

func (p *NavPayload) filter(pred Predicate) (Payload, bool) {
	out := &NavPayload{}
	for _, m := range p.Msgs {
		if pred(m.Sat, gnss.ObsCode(m.Message)) {
			out.Msgs = append(out.Msgs, m)
		}
	}
	if len(out.Msgs) == 0 {
		return nil, false
	}
	return out, true
}

func (p *NavPayload) equal(other Payload) bool {
	q, ok := other.(*NavPayload)
	if !ok || len(p.Msgs) != len(q.Msgs) {
		return false
	}
	for i := range p.Msgs {
		if !p.Msgs[i].equal(&q.Msgs[i]) {
			return false
		}
	}
	return true
}

func (p *NavPayload) union(other Payload) (Payload, bool) {
	q, ok := other.(*NavPayload)
	if !ok {
		return nil, false
	}
	out := &NavPayload{Msgs: append([]Ephemeris(nil), p.Msgs...)}
	for _, m := range q.Msgs {
		dup := false
		for i := range out.Msgs {
			if out.Msgs[i].Sat == m.Sat && out.Msgs[i].Message == m.Message &&
				out.Msgs[i].RecordType == m.RecordType {
				if !out.Msgs[i].equal(&m) {
					return nil, false
				}
				dup = true
				break
			}
		}
		if !dup {
			out.Msgs = append(out.Msgs, m)
		}
	}
	return out, true
}

// MetPayload maps sensor observation codes (PR, TD, HR, ...) to the
// scalar readings of one epoch.
type MetPayload map[string]float64

func (p MetPayload) Type() grammar.FileType { return grammar.Meteo }

func (p MetPayload) filter(pred Predicate) (Payload, bool) {
	out := make(MetPayload)
	for code, v := range p {
		if pred(gnss.Sat{}, gnss.ObsCode(code)) {
			out[code] = v
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func (p MetPayload) equal(other Payload) bool {
	q, ok := other.(MetPayload)
	if !ok || len(p) != len(q) {
		return false
	}
	for code, v := range p {
		if qv, ok := q[code]; !ok || qv != v {
			return false
		}
	}
	return true
}

func (p MetPayload) union(other Payload) (Payload, bool) {
	q, ok := other.(MetPayload)
	if !ok {
		return nil, false
	}
	out := make(MetPayload, len(p)+len(q))
	for code, v := range p {
		out[code] = v
	}
	for code, v := range q {
		if have, ok := out[code]; ok && have != v {
			return nil, false
		}
		out[code] = v
	}
	return out, true
}

// ClockRecord is one clock file record: the record type (AR, AS, CR,
// DR, MS), the clock identifier and the declared data values in file
// order (bias, bias sigma, rate, rate sigma, accel, accel sigma).
type ClockRecord struct {
	RecordType string
	Name       string
	Values     []float64
}

func (r ClockRecord) equal(o ClockRecord) bool {
	if r.RecordType != o.RecordType || r.Name != o.Name || len(r.Values) != len(o.Values) {
		return false
	}
	for i := range r.Values {
		if r.Values[i] != o.Values[i] {
			return false
		}
	}
	return true
}

// ClockPayload holds every clock record sharing one epoch.
type ClockPayload struct {
	Records []ClockRecord
}

func (p *ClockPayload) Type() grammar.FileType { return grammar.Clock }

func (p *ClockPayload) filter(pred Predicate) (Payload, bool) {
	out := &ClockPayload{}
	for _, r := range p.Records {
		sat, err := gnss.ParseSat(r.Name)
		if err != nil {
			sat = gnss.Sat{}
		}
		if pred(sat, gnss.ObsCode(r.RecordType)) {
			out.Records = append(out.Records, r)
		}
	}
	if len(out.Records) == 0 {
		return nil, false
	}
	return out, true
}

func (p *ClockPayload) equal(other Payload) bool {
	q, ok := other.(*ClockPayload)
	if !ok || len(p.Records) != len(q.Records) {
		return false
	}
	for i := range p.Records {
		if !p.Records[i].equal(q.Records[i]) {
			return false
		}
	}
	return true
}

func (p *ClockPayload) union(other Payload) (Payload, bool) {
	q, ok := other.(*ClockPayload)
	if !ok {
		return nil, false
	}
	out := &ClockPayload{Records: append([]ClockRecord(nil), p.Records...)}
	for _, r := range q.Records {
		dup := false
		for i := range out.Records {
			if out.Records[i].RecordType == r.RecordType && out.Records[i].Name == r.Name {
				if !out.Records[i].equal(r) {
					return nil, false
				}
				dup = true
				break
			}
		}
		if !dup {
			out.Records = append(out.Records, r)
		}
	}
	return out, true
}

// IonexPayload holds the TEC maps of one epoch, one dense (lat row, lon
// col) matrix per height layer, exponent-scaled to TECU. Cells the file
// marks 9999 are NaN. RMS holds the matching error maps when present.
type IonexPayload struct {
	TEC map[int]*mat.Dense
	RMS map[int]*mat.Dense
}

func (p *IonexPayload) Type() grammar.FileType { return grammar.Ionex }

func (p *IonexPayload) filter(pred Predicate) (Payload, bool) {
	// TEC grids have no satellite or observable dimension to filter on.
	return p, true
}

func gridEqual(a, b map[int]*mat.Dense) bool {
	if len(a) != len(b) {
		return false
	}
	for layer, ga := range a {
		gb, ok := b[layer]
		if !ok {
			return false
		}
		ra, ca := ga.Dims()
		rb, cb := gb.Dims()
		if ra != rb || ca != cb {
			return false
		}
		for i := 0; i < ra; i++ {
			for j := 0; j < ca; j++ {
				va, vb := ga.At(i, j), gb.At(i, j)
				if math.IsNaN(va) && math.IsNaN(vb) {
					continue
				}
				if va != vb {
					return false
				}
			}
		}
	}
	return true
}

func (p *IonexPayload) equal(other Payload) bool {
	q, ok := other.(*IonexPayload)
	if !ok {
		return false
	}
	return gridEqual(p.TEC, q.TEC) && gridEqual(p.RMS, q.RMS)
}

func (p *IonexPayload) union(other Payload) (Payload, bool) {
	q, ok := other.(*IonexPayload)
	if !ok {
		return nil, false
	}
	if !p.equal(q) {
		return nil, false
	}
	return p, true
}
