package rinex

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"example.com/rnxgate/internal/gnss"
	"example.com/rnxgate/internal/grammar"
)

// MetSensor describes one meteorological sensor declared in the header.
type MetSensor struct {
	Code     string
	Model    string
	Type     string
	Accuracy float64
}

// IonexGrid is the TEC grid definition from an Ionex header.
type IonexGrid struct {
	Lat1, Lat2, DLat float64
	Lon1, Lon2, DLon float64
	Hgt1, Hgt2, DHgt float64
	Exponent         int
	BaseRadius       float64
	MapDim           int
	NumMaps          int
	MappingFunction  string
}

// Rows returns the number of latitude rows of one map.
func (g *IonexGrid) Rows() int {
	return gridSteps(g.Lat1, g.Lat2, g.DLat)
}

// Cols returns the number of longitude columns of one map.
func (g *IonexGrid) Cols() int {
	return gridSteps(g.Lon1, g.Lon2, g.DLon)
}

// Layers returns the number of height layers.
func (g *IonexGrid) Layers() int {
	return gridSteps(g.Hgt1, g.Hgt2, g.DHgt)
}

func gridSteps(a, b, d float64) int {
	if d == 0 {
		return 1
	}
	return int(math.Floor((b-a)/d+0.5)) + 1
}

// Header is the structured form of a RINEX file header. Unmodeled
// labels are retained verbatim in Extra so serialization loses nothing.
type Header struct {
	VersionMajor int
	VersionMinor int
	Type         grammar.FileType
	System       gnss.Constellation

	Pgm, RunBy, Date string
	Comments         []string

	MarkerName, MarkerNumber, MarkerType          string
	Observer, Agency                              string
	ReceiverNumber, ReceiverType, ReceiverVersion string
	AntennaNumber, AntennaType                    string
	Position                                      [3]float64 // geocentric XYZ [m]
	AntennaDelta                                  [3]float64 // H, E, N [m]

	ObsCodes           map[gnss.Constellation][]gnss.ObsCode
	SignalStrengthUnit string
	Interval           float64
	TimeOfFirstObs     time.Time
	TimeOfLastObs      time.Time
	TimeSystem         gnss.TimeSystem
	LeapSeconds        int
	NSatellites        int

	Sensors []MetSensor // meteo sensor order, fixes body value order

	ClockDataTypes []string // clock file record types (AR, AS, ...)
	AnalysisCenter string

	Ionex *IonexGrid

	Extra []string
}

// Version renders the header's format version, e.g. "3.04".
func (h *Header) Version() string {
	return fmt.Sprintf("%d.%02d", h.VersionMajor, h.VersionMinor)
}

// Dialect resolves the grammar for the header's version and type.
func (h *Header) Dialect() (*grammar.Dialect, error) {
	return grammar.Lookup(h.VersionMajor, h.Type)
}

// CatalogHas reports whether code is declared for the constellation.
func (h *Header) CatalogHas(sys gnss.Constellation, code gnss.ObsCode) bool {
	for _, c := range h.ObsCodes[sys] {
		if c == code {
			return true
		}
	}
	return false
}

type headerParser struct {
	h       *Header
	n       int // current 1-based line number
	lastSys gnss.Constellation
	done    bool
}

func (p *headerParser) malformed(label string, err error) error {
	return &MalformedHeaderLineError{Label: label, N: p.n, Err: err}
}

// ParseHeader consumes lines up to END OF HEADER and returns the
// structured header. The first line must be a version/type line; the
// version+type pair must resolve in the grammar registry before any
// body line is touched.
func ParseHeader(src LineSource) (*Header, error) {
	p := &headerParser{h: &Header{ObsCodes: make(map[gnss.Constellation][]gnss.ObsCode)}}
	first := true
	for {
		line, err := src.Next()
		if err == io.EOF {
			if first {
				return nil, fmt.Errorf("%w: empty input", ErrMissingMandatoryField)
			}
			return nil, fmt.Errorf("%w: END OF HEADER", ErrMissingMandatoryField)
		}
		if err != nil {
			return nil, err
		}
		p.n++
		if len(line) < 61 {
			line += strings.Repeat(" ", 61-len(line))
		}
		label := strings.TrimSpace(line[60:])
		val := line[:60]
		if first {
			if label != "RINEX VERSION / TYPE" && label != "IONEX VERSION / TYPE" {
				return nil, fmt.Errorf("%w: RINEX VERSION / TYPE", ErrMissingMandatoryField)
			}
			if err := p.versionType(val); err != nil {
				return nil, err
			}
			first = false
			continue
		}
		if err := p.line(label, val, line); err != nil {
			return nil, err
		}
		if p.done {
			break
		}
	}
	if p.h.Type == grammar.Observation && len(p.h.ObsCodes) == 0 {
		return nil, fmt.Errorf("%w: observable catalog", ErrMissingMandatoryField)
	}
	if p.h.Type == grammar.Meteo && len(p.h.Sensors) == 0 {
		return nil, fmt.Errorf("%w: sensor list", ErrMissingMandatoryField)
	}
	return p.h, nil
}

func (p *headerParser) versionType(val string) error {
	const label = "RINEX VERSION / TYPE"
	ver, err := gnss.ParseFloat(val[:20])
	if err != nil {
		return p.malformed(label, err)
	}
	h := p.h
	h.VersionMajor = int(ver)
	h.VersionMinor = int(ver*100+0.5) - h.VersionMajor*100
	typeChar := byte(' ')
	if t := strings.TrimSpace(val[20:40]); t != "" {
		typeChar = t[0]
	}
	ftype, implied, err := grammar.FileTypeFromChar(typeChar)
	if err != nil {
		return err
	}
	h.Type = ftype
	if implied != gnss.ConstellationUnknown {
		h.System = implied
	}
	if sysField := strings.TrimSpace(val[40:41]); sysField != "" {
		sys, err := gnss.ConstellationFromLetter(sysField[0])
		if err != nil {
			return p.malformed(label, err)
		}
		h.System = sys
	} else if h.System == gnss.ConstellationUnknown && h.Type == grammar.Observation {
		h.System = gnss.GPS
	}
	// Fail before any body line when the dialect is unknown.
	if _, err := grammar.Lookup(h.VersionMajor, h.Type); err != nil {
		return err
	}
	if h.Type == grammar.Ionex {
		h.Ionex = &IonexGrid{Exponent: -1}
	}
	return nil
}

func (p *headerParser) line(label, val, raw string) error {
	h := p.h
	switch label {
	case "END OF HEADER":
		p.done = true
	case "PGM / RUN BY / DATE":
		h.Pgm = strings.TrimSpace(val[:20])
		h.RunBy = strings.TrimSpace(val[20:40])
		h.Date = strings.TrimSpace(val[40:])
	case "COMMENT":
		h.Comments = append(h.Comments, strings.TrimRight(val, " "))
	case "MARKER NAME":
		h.MarkerName = strings.TrimSpace(val)
	case "MARKER NUMBER":
		h.MarkerNumber = strings.TrimSpace(val[:20])
	case "MARKER TYPE":
		h.MarkerType = strings.TrimSpace(val[:20])
	case "OBSERVER / AGENCY":
		h.Observer = strings.TrimSpace(val[:20])
		h.Agency = strings.TrimSpace(val[20:])
	case "REC # / TYPE / VERS":
		h.ReceiverNumber = strings.TrimSpace(val[:20])
		h.ReceiverType = strings.TrimSpace(val[20:40])
		h.ReceiverVersion = strings.TrimSpace(val[40:])
	case "ANT # / TYPE":
		h.AntennaNumber = strings.TrimSpace(val[:20])
		h.AntennaType = strings.TrimSpace(val[20:40])
	case "APPROX POSITION XYZ":
		return p.threeFloats(label, val, &h.Position)
	case "ANTENNA: DELTA H/E/N":
		return p.threeFloats(label, val, &h.AntennaDelta)
	case "SYS / # / OBS TYPES":
		return p.sysObsTypes(val)
	case "# / TYPES OF OBSERV":
		return p.typesOfObserv(val)
	case "SENSOR MOD/TYPE/ACC":
		return p.sensorModType(val)
	case "SIGNAL STRENGTH UNIT":
		h.SignalStrengthUnit = strings.TrimSpace(val[:20])
	case "INTERVAL":
		v, err := gnss.ParseFloat(val[:10])
		if err != nil {
			return p.malformed(label, err)
		}
		h.Interval = v
	case "TIME OF FIRST OBS":
		return p.obsTime(label, val, &h.TimeOfFirstObs)
	case "TIME OF LAST OBS":
		return p.obsTime(label, val, &h.TimeOfLastObs)
	case "LEAP SECONDS":
		v, err := gnss.ParseInt(val[:6])
		if err != nil {
			return p.malformed(label, err)
		}
		h.LeapSeconds = v
	case "# OF SATELLITES":
		v, err := gnss.ParseInt(val[:6])
		if err != nil {
			return p.malformed(label, err)
		}
		h.NSatellites = v
	case "# / TYPES OF DATA":
		h.ClockDataTypes = strings.Fields(val[6:])
	case "ANALYSIS CENTER":
		h.AnalysisCenter = strings.TrimSpace(val[:3])
	case "BASE RADIUS":
		return p.ionexFloat(label, val[:8], func(g *IonexGrid, v float64) { g.BaseRadius = v })
	case "MAP DIMENSION":
		v, err := gnss.ParseInt(val[:6])
		if err != nil {
			return p.malformed(label, err)
		}
		if h.Ionex != nil {
			h.Ionex.MapDim = v
		}
	case "# OF MAPS IN FILE":
		v, err := gnss.ParseInt(val[:6])
		if err != nil {
			return p.malformed(label, err)
		}
		if h.Ionex != nil {
			h.Ionex.NumMaps = v
		}
	case "MAPPING FUNCTION":
		if h.Ionex != nil {
			h.Ionex.MappingFunction = strings.TrimSpace(val)
		}
	case "EXPONENT":
		v, err := gnss.ParseInt(val[:6])
		if err != nil {
			return p.malformed(label, err)
		}
		if h.Ionex != nil {
			h.Ionex.Exponent = v
		}
	case "HGT1 / HGT2 / DHGT":
		return p.ionexTriple(label, val, func(g *IonexGrid, a, b, c float64) { g.Hgt1, g.Hgt2, g.DHgt = a, b, c })
	case "LAT1 / LAT2 / DLAT":
		return p.ionexTriple(label, val, func(g *IonexGrid, a, b, c float64) { g.Lat1, g.Lat2, g.DLat = a, b, c })
	case "LON1 / LON2 / DLON":
		return p.ionexTriple(label, val, func(g *IonexGrid, a, b, c float64) { g.Lon1, g.Lon2, g.DLon = a, b, c })
	default:
		// Vendor extensions and labels the model does not cover are
		// retained for round-trip, never errors.
		h.Extra = append(h.Extra, strings.TrimRight(raw, " "))
	}
	return nil
}

func (p *headerParser) threeFloats(label, val string, dst *[3]float64) error {
	fields := strings.Fields(val)
	if len(fields) < 3 {
		return p.malformed(label, fmt.Errorf("want 3 fields, got %d", len(fields)))
	}
	for i := 0; i < 3; i++ {
		v, err := gnss.ParseFloat(fields[i])
		if err != nil {
			return p.malformed(label, err)
		}
		dst[i] = v
	}
	return nil
}

func (p *headerParser) sysObsTypes(val string) error {
	const label = "SYS / # / OBS TYPES"
	sys := p.lastSys
	if val[0] != ' ' {
		s, err := gnss.ConstellationFromLetter(val[0])
		if err != nil {
			return p.malformed(label, err)
		}
		sys = s
		p.lastSys = s
	} else if sys == gnss.ConstellationUnknown {
		return p.malformed(label, fmt.Errorf("continuation before first system line"))
	}
	for _, f := range strings.Fields(val[7:]) {
		p.h.ObsCodes[sys] = append(p.h.ObsCodes[sys], gnss.ObsCode(f))
	}
	return nil
}

// typesOfObserv handles the version 2 observable list for observation
// files and the sensor list for meteo files, which share a label.
func (p *headerParser) typesOfObserv(val string) error {
	if p.h.Type == grammar.Meteo {
		for _, f := range strings.Fields(val[6:]) {
			p.h.Sensors = append(p.h.Sensors, MetSensor{Code: f})
		}
		return nil
	}
	sys := p.h.System
	if sys == gnss.Mixed || sys == gnss.ConstellationUnknown {
		sys = gnss.GPS
	}
	for _, f := range strings.Fields(val[6:]) {
		p.h.ObsCodes[sys] = append(p.h.ObsCodes[sys], gnss.ObsCode(f))
	}
	return nil
}

func (p *headerParser) sensorModType(val string) error {
	const label = "SENSOR MOD/TYPE/ACC"
	if len(val) < 60 {
		val += strings.Repeat(" ", 60-len(val))
	}
	model := strings.TrimSpace(val[:20])
	styp := strings.TrimSpace(val[20:40])
	acc, err := gnss.ParseFloat(val[40:47])
	if err != nil {
		return p.malformed(label, err)
	}
	code := strings.TrimSpace(val[57:59])
	for i := range p.h.Sensors {
		if p.h.Sensors[i].Code == code {
			p.h.Sensors[i].Model = model
			p.h.Sensors[i].Type = styp
			p.h.Sensors[i].Accuracy = acc
			return nil
		}
	}
	p.h.Sensors = append(p.h.Sensors, MetSensor{Code: code, Model: model, Type: styp, Accuracy: acc})
	return nil
}

func (p *headerParser) obsTime(label, val string, dst *time.Time) error {
	fields := strings.Fields(val[:43])
	if len(fields) < 6 {
		return p.malformed(label, fmt.Errorf("want 6 date fields, got %d", len(fields)))
	}
	var n [5]int
	for i := 0; i < 5; i++ {
		v, err := gnss.ParseInt(fields[i])
		if err != nil {
			return p.malformed(label, err)
		}
		n[i] = v
	}
	sec, err := gnss.ParseFloat(fields[5])
	if err != nil {
		return p.malformed(label, err)
	}
	*dst = epochTime(n[0], n[1], n[2], n[3], n[4], sec)
	if len(val) >= 51 {
		if ts := gnss.ParseTimeSystem(val[48:51]); ts != gnss.TimeSystemUnknown {
			p.h.TimeSystem = ts
		}
	}
	return nil
}

func (p *headerParser) ionexFloat(label, field string, set func(*IonexGrid, float64)) error {
	v, err := gnss.ParseFloat(field)
	if err != nil {
		return p.malformed(label, err)
	}
	if p.h.Ionex != nil {
		set(p.h.Ionex, v)
	}
	return nil
}

func (p *headerParser) ionexTriple(label, val string, set func(*IonexGrid, float64, float64, float64)) error {
	var v [3]float64
	for i := 0; i < 3; i++ {
		f, err := gnss.ParseFloat(grammar.Span{Start: 2 + 6*i, Len: 6}.Of(val))
		if err != nil {
			return p.malformed(label, err)
		}
		v[i] = f
	}
	if p.h.Ionex != nil {
		set(p.h.Ionex, v[0], v[1], v[2])
	}
	return nil
}

// epochTime assembles a timestamp from RINEX date fields. Fractional
// seconds survive to nanosecond precision.
func epochTime(year, month, day, hour, min int, sec float64) time.Time {
	year = gnss.FullYear(year)
	s := int(sec)
	ns := int(math.Round((sec - float64(s)) * 1e9))
	return time.Date(year, time.Month(month), day, hour, min, s, ns, time.UTC)
}
