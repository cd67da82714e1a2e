package rinex

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"example.com/rnxgate/internal/gnss"
	"example.com/rnxgate/internal/grammar"
)

// Write renders the header and series as RINEX text in canonical column
// layout. The output parses back to a semantically equal header and
// container; byte layout of the input is not preserved.
func Write(w io.Writer, h *Header, s *Series) error {
	d, err := h.Dialect()
	if err != nil {
		return err
	}
	fw := &fileWriter{w: bufio.NewWriterSize(w, 64*1024), h: h, d: d}
	fw.header()
	switch h.Type {
	case grammar.Observation:
		fw.obsBody(s)
	case grammar.Navigation:
		fw.navBody(s)
	case grammar.Meteo:
		fw.metBody(s)
	case grammar.Clock:
		fw.clockBody(s)
	case grammar.Ionex:
		fw.ionexBody(s)
	}
	if fw.err != nil {
		return fw.err
	}
	return fw.w.Flush()
}

// WriteFile writes the header and series to path, replacing any
// existing file.
func WriteFile(path string, h *Header, s *Series) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, h, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type fileWriter struct {
	w   *bufio.Writer
	h   *Header
	d   *grammar.Dialect
	err error
}

// put writes one body line, trimming trailing blanks.
func (fw *fileWriter) put(line string) {
	if fw.err != nil {
		return
	}
	_, fw.err = fw.w.WriteString(strings.TrimRight(line, " ") + "\n")
}

// hline writes one header line: a 60-column value field and the label.
func (fw *fileWriter) hline(value, label string) {
	fw.put(fmt.Sprintf("%-60.60s%s", value, label))
}

func (fw *fileWriter) header() {
	h := fw.h
	fw.versionLine()
	if h.Pgm != "" || h.RunBy != "" || h.Date != "" {
		fw.hline(fmt.Sprintf("%-20.20s%-20.20s%-20.20s", h.Pgm, h.RunBy, h.Date), "PGM / RUN BY / DATE")
	}
	for _, c := range h.Comments {
		fw.hline(c, "COMMENT")
	}
	if h.MarkerName != "" {
		fw.hline(h.MarkerName, "MARKER NAME")
	}
	if h.MarkerNumber != "" {
		fw.hline(h.MarkerNumber, "MARKER NUMBER")
	}
	if h.MarkerType != "" {
		fw.hline(h.MarkerType, "MARKER TYPE")
	}
	if h.Observer != "" || h.Agency != "" {
		fw.hline(fmt.Sprintf("%-20.20s%-40.40s", h.Observer, h.Agency), "OBSERVER / AGENCY")
	}
	if h.ReceiverNumber != "" || h.ReceiverType != "" || h.ReceiverVersion != "" {
		fw.hline(fmt.Sprintf("%-20.20s%-20.20s%-20.20s", h.ReceiverNumber, h.ReceiverType, h.ReceiverVersion), "REC # / TYPE / VERS")
	}
	if h.AntennaNumber != "" || h.AntennaType != "" {
		fw.hline(fmt.Sprintf("%-20.20s%-20.20s", h.AntennaNumber, h.AntennaType), "ANT # / TYPE")
	}
	if h.Position != [3]float64{} {
		fw.hline(fmt.Sprintf("%14.4f%14.4f%14.4f", h.Position[0], h.Position[1], h.Position[2]), "APPROX POSITION XYZ")
	}
	if h.Type == grammar.Observation || h.AntennaDelta != [3]float64{} {
		fw.hline(fmt.Sprintf("%14.4f%14.4f%14.4f", h.AntennaDelta[0], h.AntennaDelta[1], h.AntennaDelta[2]), "ANTENNA: DELTA H/E/N")
	}
	fw.catalog()
	if h.SignalStrengthUnit != "" {
		fw.hline(h.SignalStrengthUnit, "SIGNAL STRENGTH UNIT")
	}
	if h.Interval > 0 {
		fw.hline(fmt.Sprintf("%10.3f", h.Interval), "INTERVAL")
	}
	if !h.TimeOfFirstObs.IsZero() {
		fw.obsTimeLine(h.TimeOfFirstObs, "TIME OF FIRST OBS")
	}
	if !h.TimeOfLastObs.IsZero() {
		fw.obsTimeLine(h.TimeOfLastObs, "TIME OF LAST OBS")
	}
	if h.LeapSeconds != 0 {
		fw.hline(fmt.Sprintf("%6d", h.LeapSeconds), "LEAP SECONDS")
	}
	if h.NSatellites != 0 {
		fw.hline(fmt.Sprintf("%6d", h.NSatellites), "# OF SATELLITES")
	}
	if len(h.ClockDataTypes) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "%6d", len(h.ClockDataTypes))
		for _, t := range h.ClockDataTypes {
			fmt.Fprintf(&b, "%6s", t)
		}
		fw.hline(b.String(), "# / TYPES OF DATA")
	}
	if h.AnalysisCenter != "" {
		fw.hline(fmt.Sprintf("%-3s", h.AnalysisCenter), "ANALYSIS CENTER")
	}
	fw.ionexHeader()
	for _, raw := range h.Extra {
		fw.put(raw)
	}
	fw.hline("", "END OF HEADER")
}

func (fw *fileWriter) versionLine() {
	h := fw.h
	ver := float64(h.VersionMajor) + float64(h.VersionMinor)/100

	label := "RINEX VERSION / TYPE"
	var desc string
	switch h.Type {
	case grammar.Observation:
		desc = "OBSERVATION DATA"
	case grammar.Navigation:
		if h.VersionMajor >= 3 {
			desc = "N: GNSS NAV DATA"
		} else {
			switch h.System {
			case gnss.GLONASS:
				desc = "GLONASS NAV DATA"
			case gnss.SBAS:
				desc = "H: GEO NAV MSG DATA"
			default:
				desc = "NAVIGATION DATA"
			}
		}
	case grammar.Meteo:
		desc = "METEOROLOGICAL DATA"
	case grammar.Clock:
		desc = "CLOCK DATA"
	case grammar.Ionex:
		desc = "IONOSPHERE MAPS"
		label = "IONEX VERSION / TYPE"
	}
	sys := ""
	if h.System != gnss.ConstellationUnknown {
		sys = fmt.Sprintf("%c: %s", h.System.Letter(), h.System)
	}
	fw.hline(fmt.Sprintf("%9.2f%11s%-20.20s%-20.20s", ver, "", desc, sys), label)
}

// catalog writes the observable or sensor declarations of the header.
func (fw *fileWriter) catalog() {
	h := fw.h
	switch {
	case h.Type == grammar.Meteo:
		var b strings.Builder
		fmt.Fprintf(&b, "%6d", len(h.Sensors))
		for _, s := range h.Sensors {
			fmt.Fprintf(&b, "%6s", s.Code)
		}
		fw.hline(b.String(), "# / TYPES OF OBSERV")
		for _, s := range h.Sensors {
			fw.hline(fmt.Sprintf("%-20.20s%-20.20s%7.1f%10s%-2s", s.Model, s.Type, s.Accuracy, "", s.Code), "SENSOR MOD/TYPE/ACC")
		}
	case h.Type != grammar.Observation:
		return
	case fw.d.Epoch != nil && fw.d.Epoch.SatsPerLine > 0:
		// Version 2 carries a single shared catalog.
		sys := h.System
		if sys == gnss.Mixed || sys == gnss.ConstellationUnknown {
			sys = gnss.GPS
		}
		codes := h.ObsCodes[sys]
		var b strings.Builder
		fmt.Fprintf(&b, "%6d", len(codes))
		for i, c := range codes {
			if i > 0 && i%9 == 0 {
				fw.hline(b.String(), "# / TYPES OF OBSERV")
				b.Reset()
				b.WriteString("      ")
			}
			fmt.Fprintf(&b, "%6s", string(c))
		}
		fw.hline(b.String(), "# / TYPES OF OBSERV")
	default:
		for _, sys := range sortedSystems(h.ObsCodes) {
			codes := h.ObsCodes[sys]
			var b strings.Builder
			fmt.Fprintf(&b, "%c  %3d", sys.Letter(), len(codes))
			for i, c := range codes {
				if i > 0 && i%13 == 0 {
					fw.hline(b.String(), "SYS / # / OBS TYPES")
					b.Reset()
					b.WriteString("      ")
				}
				fmt.Fprintf(&b, " %3s", string(c))
			}
			fw.hline(b.String(), "SYS / # / OBS TYPES")
		}
	}
}

func (fw *fileWriter) obsTimeLine(t time.Time, label string) {
	sec := float64(t.Second()) + float64(t.Nanosecond())/1e9
	sys := ""
	if fw.h.TimeSystem != gnss.TimeSystemUnknown {
		sys = fw.h.TimeSystem.String()
	}
	fw.hline(fmt.Sprintf("%6d%6d%6d%6d%6d%13.7f%5s%3s",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), sec, "", sys), label)
}

func (fw *fileWriter) ionexHeader() {
	g := fw.h.Ionex
	if g == nil {
		return
	}
	if g.Exponent != -1 {
		fw.hline(fmt.Sprintf("%6d", g.Exponent), "EXPONENT")
	}
	if g.NumMaps != 0 {
		fw.hline(fmt.Sprintf("%6d", g.NumMaps), "# OF MAPS IN FILE")
	}
	if g.MappingFunction != "" {
		fw.hline(fmt.Sprintf("  %-4s", g.MappingFunction), "MAPPING FUNCTION")
	}
	if g.BaseRadius != 0 {
		fw.hline(fmt.Sprintf("%8.1f", g.BaseRadius), "BASE RADIUS")
	}
	if g.MapDim != 0 {
		fw.hline(fmt.Sprintf("%6d", g.MapDim), "MAP DIMENSION")
	}
	fw.hline(fmt.Sprintf("  %6.1f%6.1f%6.1f", g.Hgt1, g.Hgt2, g.DHgt), "HGT1 / HGT2 / DHGT")
	fw.hline(fmt.Sprintf("  %6.1f%6.1f%6.1f", g.Lat1, g.Lat2, g.DLat), "LAT1 / LAT2 / DLAT")
	fw.hline(fmt.Sprintf("  %6.1f%6.1f%6.1f", g.Lon1, g.Lon2, g.DLon), "LON1 / LON2 / DLON")
}

func sortedSystems(m map[gnss.Constellation][]gnss.ObsCode) []gnss.Constellation {
	out := make([]gnss.Constellation, 0, len(m))
	for sys := range m {
		out = append(out, sys)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedSats(m map[gnss.Sat]SatObs) []gnss.Sat {
	out := make([]gnss.Sat, 0, len(m))
	for sat := range m {
		out = append(out, sat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sys != out[j].Sys {
			return out[i].Sys < out[j].Sys
		}
		return out[i].PRN < out[j].PRN
	})
	return out
}

func (fw *fileWriter) obsBody(s *Series) {
	v2 := fw.d.Epoch.SatsPerLine > 0
	cur := s.Epochs()
	for {
		e, ok := cur.Next()
		if !ok {
			return
		}
		p := e.Payload.(*ObsPayload)
		if e.Epoch.Flag.IsEvent() {
			fw.put(fw.epochPrefix(e.Epoch, p.EventCount, v2))
			for _, rec := range p.EventRecords {
				fw.put(rec)
			}
			continue
		}
		sats := sortedSats(p.Sats)
		clock := ""
		if p.HasClock {
			if v2 {
				clock = fmt.Sprintf("%12.9f", p.ClockOffset)
			} else {
				clock = fmt.Sprintf("%15.12f", p.ClockOffset)
			}
		}
		if v2 {
			fw.obsEpochV2(e.Epoch, sats, clock)
			fw.obsDataV2(p, sats)
		} else {
			head := fw.epochPrefix(e.Epoch, len(sats), false)
			if clock != "" {
				head = fmt.Sprintf("%-41s%s", head, clock)
			}
			fw.put(head)
			fw.obsDataV3(p, sats)
		}
	}
}

// epochPrefix renders the timestamp/flag/count part of an epoch line.
func (fw *fileWriter) epochPrefix(e Epoch, count int, v2 bool) string {
	t := e.Time
	sec := float64(t.Second()) + float64(t.Nanosecond())/1e9
	if v2 {
		return fmt.Sprintf(" %02d %2d %2d %2d %2d%11.7f  %d%3d",
			t.Year()%100, int(t.Month()), t.Day(), t.Hour(), t.Minute(), sec, int(e.Flag), count)
	}
	return fmt.Sprintf("> %4d %02d %02d %02d %02d %11.7f  %d%3d",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), sec, int(e.Flag), count)
}

func (fw *fileWriter) obsEpochV2(e Epoch, sats []gnss.Sat, clock string) {
	lay := fw.d.Epoch
	head := fw.epochPrefix(e, len(sats), true)
	var b strings.Builder
	b.WriteString(head)
	for i, sat := range sats {
		if i > 0 && i%lay.SatsPerLine == 0 {
			if i == lay.SatsPerLine && clock != "" {
				fw.put(b.String() + clock)
			} else {
				fw.put(b.String())
			}
			b.Reset()
			b.WriteString(strings.Repeat(" ", lay.SatList.Start))
		}
		b.WriteString(sat.String())
	}
	line := b.String()
	if clock != "" && len(sats) <= lay.SatsPerLine {
		line = fmt.Sprintf("%-68s%s", line, clock)
	}
	fw.put(line)
}

func (fw *fileWriter) obsCell(b *strings.Builder, o Obs, ok bool) {
	if !ok {
		b.WriteString(strings.Repeat(" ", fw.d.Obs.CellWidth))
		return
	}
	fmt.Fprintf(b, "%14.3f", o.Val)
	writeDigit(b, o.LLI)
	writeDigit(b, o.SNR)
}

func writeDigit(b *strings.Builder, n int) {
	if n == 0 {
		b.WriteByte(' ')
		return
	}
	fmt.Fprintf(b, "%d", n)
}

func (fw *fileWriter) obsDataV2(p *ObsPayload, sats []gnss.Sat) {
	codes := fw.v2WriteCatalog()
	per := fw.d.Obs.CellsPerLine
	for _, sat := range sats {
		obs := p.Sats[sat]
		var b strings.Builder
		for i, code := range codes {
			if i > 0 && i%per == 0 {
				fw.put(b.String())
				b.Reset()
			}
			o, ok := obs[code]
			fw.obsCell(&b, o, ok)
		}
		fw.put(b.String())
	}
}

func (fw *fileWriter) v2WriteCatalog() []gnss.ObsCode {
	sys := fw.h.System
	if sys == gnss.Mixed || sys == gnss.ConstellationUnknown {
		sys = gnss.GPS
	}
	return fw.h.ObsCodes[sys]
}

func (fw *fileWriter) obsDataV3(p *ObsPayload, sats []gnss.Sat) {
	for _, sat := range sats {
		obs := p.Sats[sat]
		var b strings.Builder
		b.WriteString(sat.String())
		for _, code := range fw.h.ObsCodes[sat.Sys] {
			o, ok := obs[code]
			fw.obsCell(&b, o, ok)
		}
		fw.put(b.String())
	}
}

func (fw *fileWriter) navBody(s *Series) {
	cur := s.Epochs()
	for {
		e, ok := cur.Next()
		if !ok {
			return
		}
		p := e.Payload.(*NavPayload)
		for i := range p.Msgs {
			fw.navMessage(&p.Msgs[i])
		}
	}
}

func (fw *fileWriter) navMessage(m *Ephemeris) {
	lay := fw.d.Nav
	if lay.Framed {
		fw.put(fmt.Sprintf("> %s %s %s", m.RecordType, m.Sat, m.Message))
	}
	if m.Kind == grammar.NavKindRaw {
		for _, line := range m.RawLines {
			fw.put(line)
		}
		return
	}

	t := m.Toc
	var b strings.Builder
	if lay.SatSpan.Len == 2 {
		fmt.Fprintf(&b, "%2d %02d %2d %2d %2d %2d%5.1f",
			m.Sat.PRN, t.Year()%100, int(t.Month()), t.Day(), t.Hour(), t.Minute(),
			float64(t.Second())+float64(t.Nanosecond())/1e9)
	} else {
		fmt.Fprintf(&b, "%s %4d %02d %02d %02d %02d %02d",
			m.Sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	}
	for _, c := range m.Clock {
		fmt.Fprintf(&b, "%19.12E", c)
	}
	fw.put(b.String())

	indent := strings.Repeat(" ", lay.ContSlots[0].Start)
	for i := range m.Orbit {
		var c strings.Builder
		c.WriteString(indent)
		for j := range m.Orbit[i] {
			if m.Filled[i][j] {
				fmt.Fprintf(&c, "%19.12E", m.Orbit[i][j])
			} else {
				c.WriteString(strings.Repeat(" ", 19))
			}
		}
		fw.put(c.String())
	}
}

func (fw *fileWriter) metBody(s *Series) {
	lay := fw.d.Met
	cur := s.Epochs()
	for {
		e, ok := cur.Next()
		if !ok {
			return
		}
		p := e.Payload.(MetPayload)
		t := e.Epoch.Time
		var b strings.Builder
		if lay.FourDigitYear {
			fmt.Fprintf(&b, " %4d %02d %02d %02d %02d %02d",
				t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
		} else {
			fmt.Fprintf(&b, " %02d %2d %2d %2d %2d %2d",
				t.Year()%100, int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
		}
		for b.Len() < lay.ValueStart {
			b.WriteByte(' ')
		}
		for i, sensor := range fw.h.Sensors {
			if i > 0 && i%lay.PerLine == 0 {
				fw.put(b.String())
				b.Reset()
				b.WriteString(strings.Repeat(" ", lay.ContStart))
			}
			if v, ok := p[sensor.Code]; ok {
				fmt.Fprintf(&b, "%7.1f", v)
			} else {
				b.WriteString(strings.Repeat(" ", lay.ValueWidth))
			}
		}
		fw.put(b.String())
	}
}

func (fw *fileWriter) clockBody(s *Series) {
	cur := s.Epochs()
	for {
		e, ok := cur.Next()
		if !ok {
			return
		}
		p := e.Payload.(*ClockPayload)
		t := e.Epoch.Time
		sec := float64(t.Second()) + float64(t.Nanosecond())/1e9
		for _, r := range p.Records {
			var b strings.Builder
			fmt.Fprintf(&b, "%-2s %-4s %4d %02d %02d %02d %02d%10.6f%3d",
				r.RecordType, r.Name, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), sec, len(r.Values))
			b.WriteString("   ")
			for i, v := range r.Values {
				if i == 2 {
					fw.put(b.String())
					b.Reset()
				} else if i > 2 && (i-2)%4 == 0 {
					fw.put(b.String())
					b.Reset()
				}
				fmt.Fprintf(&b, "%19.12E", v)
				b.WriteByte(' ')
			}
			fw.put(b.String())
		}
	}
}

func (fw *fileWriter) ionexBody(s *Series) {
	num := 0
	cur := s.Epochs()
	for {
		e, ok := cur.Next()
		if !ok {
			break
		}
		num++
		p := e.Payload.(*IonexPayload)
		fw.ionexMap("TEC", num, e.Epoch.Time, p.TEC)
	}
	num = 0
	cur.Reset()
	for {
		e, ok := cur.Next()
		if !ok {
			break
		}
		num++
		p := e.Payload.(*IonexPayload)
		if len(p.RMS) > 0 {
			fw.ionexMap("RMS", num, e.Epoch.Time, p.RMS)
		}
	}
	fw.hline("", "END OF FILE")
}

func (fw *fileWriter) ionexMap(kind string, num int, t time.Time, layers map[int]*mat.Dense) {
	g := fw.h.Ionex
	scale := math.Pow(10, float64(g.Exponent))
	fw.hline(fmt.Sprintf("%6d", num), fmt.Sprintf("START OF %s MAP", kind))
	fw.hline(fmt.Sprintf("%6d%6d%6d%6d%6d%6d",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second()), "EPOCH OF CURRENT MAP")

	idx := make([]int, 0, len(layers))
	for layer := range layers {
		idx = append(idx, layer)
	}
	sort.Ints(idx)
	for _, layer := range idx {
		grid := layers[layer]
		rows, cols := grid.Dims()
		hgt := g.Hgt1 + float64(layer)*g.DHgt
		for r := 0; r < rows; r++ {
			lat := g.Lat1 + float64(r)*g.DLat
			fw.hline(fmt.Sprintf("  %6.1f%6.1f%6.1f%6.1f%6.1f", lat, g.Lon1, g.Lon2, g.DLon, hgt),
				"LAT/LON1/LON2/DLON/H")
			var b strings.Builder
			for c := 0; c < cols; c++ {
				if c > 0 && c%fw.d.Ionex.ValuesPerLine == 0 {
					fw.put(b.String())
					b.Reset()
				}
				v := grid.At(r, c)
				if math.IsNaN(v) {
					b.WriteString(" 9999")
				} else {
					fmt.Fprintf(&b, "%5d", int(math.Round(v/scale)))
				}
			}
			fw.put(b.String())
		}
	}
	fw.hline(fmt.Sprintf("%6d", num), fmt.Sprintf("END OF %s MAP", kind))
}
