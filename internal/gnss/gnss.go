// Package gnss holds the satellite-system primitives shared by every
// layer of the engine: constellations, satellite identifiers, observation
// codes and the numeric conventions of RINEX text fields.
package gnss

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Constellation identifies a GNSS satellite system.
type Constellation int

const (
	ConstellationUnknown Constellation = iota
	GPS
	GLONASS
	Galileo
	BeiDou
	QZSS
	NavIC
	SBAS
	Mixed
)

var ErrUnknownConstellation = errors.New("unknown constellation")

// Letter returns the single-character system code used throughout RINEX.
func (c Constellation) Letter() byte {
	switch c {
	case GPS:
		return 'G'
	case GLONASS:
		return 'R'
	case Galileo:
		return 'E'
	case BeiDou:
		return 'C'
	case QZSS:
		return 'J'
	case NavIC:
		return 'I'
	case SBAS:
		return 'S'
	case Mixed:
		return 'M'
	}
	return '?'
}

func (c Constellation) String() string {
	switch c {
	case GPS:
		return "GPS"
	case GLONASS:
		return "GLONASS"
	case Galileo:
		return "Galileo"
	case BeiDou:
		return "BeiDou"
	case QZSS:
		return "QZSS"
	case NavIC:
		return "NavIC"
	case SBAS:
		return "SBAS"
	case Mixed:
		return "Mixed"
	}
	return "Unknown"
}

// ConstellationFromLetter resolves a RINEX system character. A blank
// defaults to GPS, matching version 2 files that omit the system column.
func ConstellationFromLetter(b byte) (Constellation, error) {
	switch b {
	case 'G', ' ':
		return GPS, nil
	case 'R':
		return GLONASS, nil
	case 'E':
		return Galileo, nil
	case 'C':
		return BeiDou, nil
	case 'J':
		return QZSS, nil
	case 'I':
		return NavIC, nil
	case 'S':
		return SBAS, nil
	case 'M':
		return Mixed, nil
	}
	return ConstellationUnknown, fmt.Errorf("%w: %q", ErrUnknownConstellation, b)
}

// Sat identifies one satellite within a constellation.
type Sat struct {
	Sys Constellation
	PRN int
}

// String renders the three-character RINEX satellite code, e.g. "G01".
func (s Sat) String() string {
	return fmt.Sprintf("%c%02d", s.Sys.Letter(), s.PRN)
}

// ParseSat reads a satellite code such as "G01", "R 7" or, in version 2
// observation files, a bare " 5" whose system defaults to GPS.
func ParseSat(s string) (Sat, error) {
	if len(s) < 2 {
		return Sat{}, fmt.Errorf("satellite code %q too short", s)
	}
	sys, err := ConstellationFromLetter(s[0])
	if err != nil {
		return Sat{}, err
	}
	prn, err := strconv.Atoi(strings.TrimSpace(s[1:]))
	if err != nil {
		return Sat{}, fmt.Errorf("satellite code %q: %w", s, err)
	}
	if prn <= 0 {
		return Sat{}, fmt.Errorf("satellite code %q: PRN out of range", s)
	}
	return Sat{Sys: sys, PRN: prn}, nil
}

// TimeSystem tags the reference time scale of an epoch.
type TimeSystem int

const (
	TimeSystemUnknown TimeSystem = iota
	TimeGPS
	TimeGLO
	TimeGAL
	TimeBDT
	TimeQZS
	TimeIRN
	TimeUTC
)

func (t TimeSystem) String() string {
	switch t {
	case TimeGPS:
		return "GPS"
	case TimeGLO:
		return "GLO"
	case TimeGAL:
		return "GAL"
	case TimeBDT:
		return "BDT"
	case TimeQZS:
		return "QZS"
	case TimeIRN:
		return "IRN"
	case TimeUTC:
		return "UTC"
	}
	return "???"
}

// ParseTimeSystem reads the three-letter time system tag from a header
// field. Blank input resolves to the unknown system, not an error, since
// the tag is optional on most header lines that carry it.
func ParseTimeSystem(s string) TimeSystem {
	switch strings.TrimSpace(s) {
	case "GPS":
		return TimeGPS
	case "GLO":
		return TimeGLO
	case "GAL":
		return TimeGAL
	case "BDT":
		return TimeBDT
	case "QZS":
		return TimeQZS
	case "IRN":
		return TimeIRN
	case "UTC":
		return TimeUTC
	}
	return TimeSystemUnknown
}

// DefaultTimeSystem returns the native time scale of a constellation.
func DefaultTimeSystem(c Constellation) TimeSystem {
	switch c {
	case GPS, SBAS:
		return TimeGPS
	case GLONASS:
		return TimeGLO
	case Galileo:
		return TimeGAL
	case BeiDou:
		return TimeBDT
	case QZSS:
		return TimeQZS
	case NavIC:
		return TimeIRN
	}
	return TimeSystemUnknown
}

// ObsCode is a RINEX observation code: a measurement kind character
// (C pseudorange, L carrier phase, D doppler, S signal strength), a
// frequency band digit and, in version 3, a tracking attribute.
type ObsCode string

// Kind returns the measurement kind character, or 0 for malformed codes.
func (c ObsCode) Kind() byte {
	if len(c) == 0 {
		return 0
	}
	return c[0]
}

// Band returns the frequency band digit, or 0 when absent.
func (c ObsCode) Band() int {
	if len(c) < 2 || c[1] < '0' || c[1] > '9' {
		return 0
	}
	return int(c[1] - '0')
}

// Attribute returns the version 3 tracking attribute, or 0 for two-character
// version 2 codes.
func (c ObsCode) Attribute() byte {
	if len(c) < 3 {
		return 0
	}
	return c[2]
}

// FullYear widens a two-digit RINEX year: values below 80 belong to the
// 2000s, the rest to the 1900s.
func FullYear(yy int) int {
	if yy >= 100 {
		return yy
	}
	if yy < 80 {
		return yy + 2000
	}
	return yy + 1900
}

// ParseFloat reads a RINEX floating-point field. Blank fields decode to
// zero and Fortran D exponents are accepted.
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if i := strings.IndexAny(s, "Dd"); i >= 0 {
		s = s[:i] + "E" + s[i+1:]
	}
	return strconv.ParseFloat(s, 64)
}

// ParseInt reads a RINEX integer field, treating blanks as zero.
func ParseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
