// Package grammar is the static registry of RINEX line layouts. Given a
// format version and file type it returns the column rules the decoders
// need; combinations absent from the table fail with ErrUnsupportedDialect
// before any body line is consumed.
package grammar

import (
	"errors"
	"fmt"
	"strings"

	"example.com/rnxgate/internal/gnss"
)

var ErrUnsupportedDialect = errors.New("unsupported dialect")

// FileType enumerates the RINEX file families the engine decodes.
type FileType int

const (
	FileTypeUnknown FileType = iota
	Observation
	Navigation
	Meteo
	Clock
	Ionex
)

func (t FileType) String() string {
	switch t {
	case Observation:
		return "observation"
	case Navigation:
		return "navigation"
	case Meteo:
		return "meteo"
	case Clock:
		return "clock"
	case Ionex:
		return "ionex"
	}
	return "unknown"
}

// FileTypeFromChar resolves the type character of a version header line.
// The second result is the constellation implied by version 2 per-system
// navigation types ('G' GLONASS, 'H' GEO, 'N' GPS), or Unknown.
func FileTypeFromChar(b byte) (FileType, gnss.Constellation, error) {
	switch b {
	case 'O':
		return Observation, gnss.ConstellationUnknown, nil
	case 'N':
		return Navigation, gnss.GPS, nil
	case 'G':
		return Navigation, gnss.GLONASS, nil
	case 'H':
		return Navigation, gnss.SBAS, nil
	case 'L':
		return Navigation, gnss.Galileo, nil
	case 'M':
		return Meteo, gnss.ConstellationUnknown, nil
	case 'C':
		return Clock, gnss.ConstellationUnknown, nil
	case 'I':
		return Ionex, gnss.ConstellationUnknown, nil
	}
	return FileTypeUnknown, gnss.ConstellationUnknown, fmt.Errorf("%w: file type %q", ErrUnsupportedDialect, b)
}

// Span is a fixed column range within an 80-character record line.
type Span struct {
	Start, Len int
}

// Of slices the span out of line, tolerating short lines.
func (s Span) Of(line string) string {
	if s.Start >= len(line) {
		return ""
	}
	end := s.Start + s.Len
	if end > len(line) {
		end = len(line)
	}
	return line[s.Start:end]
}

// Field returns the trimmed span content.
func (s Span) Field(line string) string {
	return strings.TrimSpace(s.Of(line))
}

// EpochLayout positions the fields of an epoch record line.
type EpochLayout struct {
	Prefix        byte // '>' introduces version 3/4 observation epochs
	Year          Span
	Month         Span
	Day           Span
	Hour          Span
	Min           Span
	Sec           Span
	FourDigitYear bool
	Flag          Span
	Count         Span
	SatList       Span // version 2: satellite codes on the epoch line
	SatsPerLine   int
	ClockOffset   Span
}

// ObsLayout positions observation data cells.
type ObsLayout struct {
	SatSpan      Span // version 3: satellite code opening each data line
	DataStart    int
	CellWidth    int
	ValueWidth   int
	CellsPerLine int // 0 means all cells on one line
}

// NavLayout positions navigation record fields.
type NavLayout struct {
	SatSpan       Span
	Year          Span
	Month         Span
	Day           Span
	Hour          Span
	Min           Span
	Sec           Span
	FourDigitYear bool
	Clock         [3]Span
	ContSlots     [4]Span
	Framed        bool // version 4 '>' record headers
}

// MetLayout positions meteorological records.
type MetLayout struct {
	Year          Span
	Month         Span
	Day           Span
	Hour          Span
	Min           Span
	Sec           Span
	FourDigitYear bool
	ValueStart    int
	ValueWidth    int
	PerLine       int
	ContStart     int
}

// ClockLayout positions clock records.
type ClockLayout struct {
	Type      Span
	Name      Span
	Year      Span
	Month     Span
	Day       Span
	Hour      Span
	Min       Span
	Sec       Span
	Count     Span
	Slots     [2]Span
	ContSlots [4]Span
}

// IonexLayout positions TEC map blocks.
type IonexLayout struct {
	Epoch         [6]Span
	Lat           Span
	Lon1          Span
	Lon2          Span
	DLon          Span
	Height        Span
	ValueWidth    int
	ValuesPerLine int
}

// Dialect bundles the layouts active for one (version, file type) pair.
// Only the layouts meaningful for the file type are non-nil.
type Dialect struct {
	Version int
	Type    FileType
	Epoch   *EpochLayout
	Obs     *ObsLayout
	Nav     *NavLayout
	Met     *MetLayout
	Clock   *ClockLayout
	Ionex   *IonexLayout
}

type dialectKey struct {
	version int
	ftype   FileType
}

var dialects = map[dialectKey]*Dialect{
	{2, Observation}: {
		Version: 2,
		Type:    Observation,
		Epoch: &EpochLayout{
			Year:        Span{1, 2},
			Month:       Span{4, 2},
			Day:         Span{7, 2},
			Hour:        Span{10, 2},
			Min:         Span{13, 2},
			Sec:         Span{15, 11},
			Flag:        Span{28, 1},
			Count:       Span{29, 3},
			SatList:     Span{32, 36},
			SatsPerLine: 12,
			ClockOffset: Span{68, 12},
		},
		Obs: &ObsLayout{
			DataStart:    0,
			CellWidth:    16,
			ValueWidth:   14,
			CellsPerLine: 5,
		},
	},
	{3, Observation}: {
		Version: 3,
		Type:    Observation,
		Epoch:   v3ObsEpoch(),
		Obs:     v3ObsLayout(),
	},
	{4, Observation}: {
		Version: 4,
		Type:    Observation,
		Epoch:   v3ObsEpoch(),
		Obs:     v3ObsLayout(),
	},
	{2, Navigation}: {
		Version: 2,
		Type:    Navigation,
		Nav: &NavLayout{
			SatSpan: Span{0, 2},
			Year:    Span{3, 2},
			Month:   Span{6, 2},
			Day:     Span{9, 2},
			Hour:    Span{12, 2},
			Min:     Span{15, 2},
			Sec:     Span{17, 5},
			Clock:   [3]Span{{22, 19}, {41, 19}, {60, 19}},
			ContSlots: [4]Span{
				{3, 19}, {22, 19}, {41, 19}, {60, 19},
			},
		},
	},
	{3, Navigation}: {
		Version: 3,
		Type:    Navigation,
		Nav:     v3NavLayout(false),
	},
	{4, Navigation}: {
		Version: 4,
		Type:    Navigation,
		Nav:     v3NavLayout(true),
	},
	{2, Meteo}: {
		Version: 2,
		Type:    Meteo,
		Met: &MetLayout{
			Year:       Span{1, 2},
			Month:      Span{4, 2},
			Day:        Span{7, 2},
			Hour:       Span{10, 2},
			Min:        Span{13, 2},
			Sec:        Span{16, 2},
			ValueStart: 18,
			ValueWidth: 7,
			PerLine:    8,
			ContStart:  4,
		},
	},
	{3, Meteo}: {
		Version: 3,
		Type:    Meteo,
		Met:     v3MetLayout(),
	},
	{4, Meteo}: {
		Version: 4,
		Type:    Meteo,
		Met:     v3MetLayout(),
	},
	{2, Clock}: {
		Version: 2,
		Type:    Clock,
		Clock:   clockLayout(),
	},
	{3, Clock}: {
		Version: 3,
		Type:    Clock,
		Clock:   clockLayout(),
	},
	{1, Ionex}: {
		Version: 1,
		Type:    Ionex,
		Ionex: &IonexLayout{
			Epoch: [6]Span{
				{0, 6}, {6, 6}, {12, 6}, {18, 6}, {24, 6}, {30, 6},
			},
			Lat:           Span{2, 6},
			Lon1:          Span{8, 6},
			Lon2:          Span{14, 6},
			DLon:          Span{20, 6},
			Height:        Span{26, 6},
			ValueWidth:    5,
			ValuesPerLine: 16,
		},
	},
}

func v3ObsEpoch() *EpochLayout {
	return &EpochLayout{
		Prefix:        '>',
		Year:          Span{2, 4},
		Month:         Span{7, 2},
		Day:           Span{10, 2},
		Hour:          Span{13, 2},
		Min:           Span{16, 2},
		Sec:           Span{19, 11},
		FourDigitYear: true,
		Flag:          Span{31, 1},
		Count:         Span{32, 3},
		ClockOffset:   Span{41, 15},
	}
}

func v3ObsLayout() *ObsLayout {
	return &ObsLayout{
		SatSpan:    Span{0, 3},
		DataStart:  3,
		CellWidth:  16,
		ValueWidth: 14,
	}
}

func v3NavLayout(framed bool) *NavLayout {
	return &NavLayout{
		SatSpan:       Span{0, 3},
		Year:          Span{4, 4},
		Month:         Span{9, 2},
		Day:           Span{12, 2},
		Hour:          Span{15, 2},
		Min:           Span{18, 2},
		Sec:           Span{21, 2},
		FourDigitYear: true,
		Clock:         [3]Span{{23, 19}, {42, 19}, {61, 19}},
		ContSlots: [4]Span{
			{4, 19}, {23, 19}, {42, 19}, {61, 19},
		},
		Framed: framed,
	}
}

func v3MetLayout() *MetLayout {
	return &MetLayout{
		Year:          Span{1, 4},
		Month:         Span{6, 2},
		Day:           Span{9, 2},
		Hour:          Span{12, 2},
		Min:           Span{15, 2},
		Sec:           Span{18, 2},
		FourDigitYear: true,
		ValueStart:    20,
		ValueWidth:    7,
		PerLine:       8,
		ContStart:     4,
	}
}

func clockLayout() *ClockLayout {
	return &ClockLayout{
		Type:      Span{0, 2},
		Name:      Span{3, 4},
		Year:      Span{8, 4},
		Month:     Span{13, 2},
		Day:       Span{16, 2},
		Hour:      Span{19, 2},
		Min:       Span{22, 2},
		Sec:       Span{24, 10},
		Count:     Span{34, 3},
		Slots:     [2]Span{{40, 19}, {60, 19}},
		ContSlots: [4]Span{{0, 19}, {20, 19}, {40, 19}, {60, 19}},
	}
}

// Lookup resolves the dialect for a version major and file type.
func Lookup(version int, t FileType) (*Dialect, error) {
	d, ok := dialects[dialectKey{version, t}]
	if !ok {
		return nil, fmt.Errorf("%w: version %d %s", ErrUnsupportedDialect, version, t)
	}
	return d, nil
}

// NavKind tells a navigation decoder which field map a message follows.
type NavKind int

const (
	NavKindRaw NavKind = iota
	NavKindKeplerian
	NavKindStateVector
)

func (k NavKind) String() string {
	switch k {
	case NavKindKeplerian:
		return "keplerian"
	case NavKindStateVector:
		return "state-vector"
	}
	return "raw"
}

// NavShape describes one navigation message body: its decode kind and the
// number of continuation lines after the satellite/clock line.
type NavShape struct {
	Kind NavKind
	Cont int
}

type navShapeKey struct {
	sys gnss.Constellation
	msg string
}

var navShapes = map[navShapeKey]NavShape{
	{gnss.GPS, "LNAV"}:     {NavKindKeplerian, 7},
	{gnss.QZSS, "LNAV"}:    {NavKindKeplerian, 7},
	{gnss.NavIC, "LNAV"}:   {NavKindKeplerian, 7},
	{gnss.Galileo, "INAV"}: {NavKindKeplerian, 7},
	{gnss.Galileo, "FNAV"}: {NavKindKeplerian, 7},
	{gnss.BeiDou, "D1"}:    {NavKindKeplerian, 7},
	{gnss.BeiDou, "D2"}:    {NavKindKeplerian, 7},
	{gnss.GLONASS, "FDMA"}: {NavKindStateVector, 3},
	{gnss.SBAS, "SBAS"}:    {NavKindStateVector, 3},
}

// NavMessageDefault names the legacy broadcast message implied when a
// version 2/3 file carries no message-type tag.
func NavMessageDefault(sys gnss.Constellation) string {
	switch sys {
	case gnss.GPS, gnss.QZSS, gnss.NavIC:
		return "LNAV"
	case gnss.Galileo:
		return "INAV"
	case gnss.BeiDou:
		return "D1"
	case gnss.GLONASS:
		return "FDMA"
	case gnss.SBAS:
		return "SBAS"
	}
	return ""
}

// LookupNavShape resolves the body shape for a constellation and message
// type. Message types outside the table (modern CNAV families) are not an
// error here; callers framed by version 4 records capture them raw.
func LookupNavShape(sys gnss.Constellation, msg string) (NavShape, bool) {
	s, ok := navShapes[navShapeKey{sys, msg}]
	return s, ok
}
