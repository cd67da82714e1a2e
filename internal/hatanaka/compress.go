package hatanaka

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// reinitAbs is the difference magnitude past which the compressor restarts
// an arc instead of emitting an oversized token.
const reinitAbs = 100_000_000

var (
	ErrNotObservation = errors.New("compact RINEX encodes observation files only")
	ErrTruncatedEpoch = errors.New("input ended inside an epoch record")
)

// Compressor turns plain RINEX observation text into CRINEX 1.0 (for
// version 2 input) or CRINEX 3.0 (version 3/4) text. Lines are pushed one
// at a time; the preamble is derived from the first header line.
type Compressor struct {
	w          *bufio.Writer
	crxVer     int
	rnxVer     int
	started    bool
	headerDone bool
	numObs     map[byte]int
	epoch      string
	clock      *arc
	sats       map[string]*satState
	buf        []string
	need       int
	lineNo     int
}

func NewCompressor(w io.Writer) *Compressor {
	return &Compressor{
		w:      bufio.NewWriter(w),
		numObs: make(map[byte]int),
		sats:   make(map[string]*satState),
	}
}

func (c *Compressor) out(line string) error {
	_, err := c.w.WriteString(line + "\n")
	return err
}

// WriteLine consumes the next plain RINEX line.
func (c *Compressor) WriteLine(line string) error {
	c.lineNo++
	line = strings.TrimRight(line, "\r\n")
	if !c.started {
		return c.begin(line)
	}
	if !c.headerDone {
		c.scanHeaderLine(line)
		return c.out(line)
	}
	c.buf = append(c.buf, line)
	if len(c.buf) == 1 {
		need, err := c.epochLineCount(line)
		if err != nil {
			return err
		}
		c.need = need
	}
	if len(c.buf) < c.need {
		return nil
	}
	buf := c.buf
	c.buf = nil
	c.need = 0
	return c.encodeEpoch(buf)
}

// Close flushes the compressed stream. It fails if the input stopped in
// the middle of an epoch record.
func (c *Compressor) Close() error {
	if len(c.buf) > 0 {
		return fmt.Errorf("%w: %d of %d lines at line %d", ErrTruncatedEpoch, len(c.buf), c.need, c.lineNo)
	}
	return c.w.Flush()
}

func (c *Compressor) begin(line string) error {
	if len(line) < 61 || strings.TrimSpace(line[60:]) != "RINEX VERSION / TYPE" {
		return fmt.Errorf("line %d: first line is not RINEX VERSION / TYPE", c.lineNo)
	}
	ver, err := strconv.ParseFloat(strings.TrimSpace(line[:20]), 64)
	if err != nil {
		return fmt.Errorf("line %d: bad version field: %w", c.lineNo, err)
	}
	if tf := strings.TrimSpace(sliceAt(line, 20, 20)); tf != "" && tf[0] != 'O' {
		return fmt.Errorf("%w: type %q", ErrNotObservation, tf[0])
	}
	c.rnxVer = int(ver)
	c.crxVer = 3
	crxText := "3.0"
	if c.rnxVer == 2 {
		c.crxVer = 1
		crxText = "1.0"
	}
	c.started = true
	if err := c.out(padTo(crxText, 20) + padTo("COMPACT RINEX FORMAT", 40) + "CRINEX VERS   / TYPE"); err != nil {
		return err
	}
	if err := c.out(padTo("rnxgate rnx2crx", 60) + "CRINEX PROG / DATE"); err != nil {
		return err
	}
	return c.out(line)
}

func (c *Compressor) scanHeaderLine(line string) {
	if len(line) < 61 {
		return
	}
	switch strings.TrimSpace(line[60:]) {
	case "# / TYPES OF OBSERV":
		if n, err := strconv.Atoi(strings.TrimSpace(line[:6])); err == nil && n > 0 {
			c.numObs[0] = n
		}
	case "SYS / # / OBS TYPES":
		if line[0] != ' ' {
			if n, err := strconv.Atoi(strings.TrimSpace(line[3:6])); err == nil && n > 0 {
				c.numObs[line[0]] = n
			}
		}
	case "END OF HEADER":
		c.headerDone = true
	}
}

func (c *Compressor) epochFlagCount(line string) (flag, count int, err error) {
	flagPos, countPos := v2FlagPos, v2CountPos
	if c.crxVer >= 3 {
		flagPos, countPos = v3FlagPos, v3CountPos
	}
	if len(line) > flagPos && line[flagPos] != ' ' {
		if line[flagPos] < '0' || line[flagPos] > '9' {
			return 0, 0, fmt.Errorf("line %d: bad epoch flag %q", c.lineNo, line[flagPos])
		}
		flag = int(line[flagPos] - '0')
	}
	count, err = strconv.Atoi(strings.TrimSpace(sliceAt(line, countPos, 3)))
	if err != nil {
		return 0, 0, fmt.Errorf("line %d: unreadable count on epoch line", c.lineNo)
	}
	return flag, count, nil
}

// epochLineCount computes how many plain lines the epoch record opened by
// line occupies in total.
func (c *Compressor) epochLineCount(line string) (int, error) {
	flag, count, err := c.epochFlagCount(line)
	if err != nil {
		return 0, err
	}
	if flag > 1 {
		lines := count
		if flag == 6 {
			lines = count * c.linesPerSat()
		}
		return 1 + lines, nil
	}
	if c.crxVer >= 3 {
		return 1 + count, nil
	}
	listLines := (count + v2SatsPerLine - 1) / v2SatsPerLine
	if listLines < 1 {
		listLines = 1
	}
	return listLines + count*c.linesPerSat(), nil
}

func (c *Compressor) linesPerSat() int {
	if c.crxVer >= 3 {
		return 1
	}
	n := c.numObs[0]
	if n <= 0 {
		return 1
	}
	return (n + 4) / 5
}

func (c *Compressor) encodeEpoch(buf []string) error {
	flag, count, err := c.epochFlagCount(buf[0])
	if err != nil {
		return err
	}
	if flag > 1 {
		return c.encodeEvent(buf)
	}
	if c.crxVer >= 3 {
		return c.encodeEpochV3(buf, count)
	}
	return c.encodeEpochV2(buf, count)
}

// encodeEvent stores a special-event epoch as an initialization line plus
// verbatim records and restarts every arc.
func (c *Compressor) encodeEvent(buf []string) error {
	c.epoch = buf[0]
	initLine := buf[0]
	if c.crxVer < 3 {
		if initLine == "" {
			initLine = " "
		}
		initLine = "&" + initLine[1:]
	}
	if err := c.out(strings.TrimRight(initLine, " ")); err != nil {
		return err
	}
	for _, rec := range buf[1:] {
		if err := c.out(strings.TrimRight(rec, " ")); err != nil {
			return err
		}
	}
	c.sats = make(map[string]*satState)
	c.clock = nil
	return nil
}

func (c *Compressor) encodeEpochV2(buf []string, count int) error {
	listLines := (count + v2SatsPerLine - 1) / v2SatsPerLine
	if listLines < 1 {
		listLines = 1
	}
	sats := make([]string, 0, count)
	for i := 0; i < count; i++ {
		src := buf[i/v2SatsPerLine]
		code := sliceAt(src, v2SatListPos+3*(i%v2SatsPerLine), 3)
		sats = append(sats, padTo(code, 3))
	}
	clockField := strings.TrimSpace(sliceAt(buf[0], v2ClockPos, 12))

	epochText := padTo(sliceAt(buf[0], 0, v2SatListPos), v2SatListPos) + strings.Join(sats, "")
	if err := c.emitEpochLine(epochText, false); err != nil {
		return err
	}
	if err := c.emitClockLine(clockField, 9); err != nil {
		return err
	}

	perSat := c.linesPerSat()
	nobs := c.numObs[0]
	if nobs <= 0 {
		return fmt.Errorf("line %d: no # / TYPES OF OBSERV in header", c.lineNo)
	}
	for i, sat := range sats {
		cells := make([]string, nobs)
		for j := 0; j < nobs; j++ {
			src := buf[listLines+i*perSat+j/5]
			cells[j] = padTo(sliceAt(src, cellWidth*(j%5), cellWidth), cellWidth)
		}
		if err := c.emitDataLine(sat, cells); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compressor) encodeEpochV3(buf []string, count int) error {
	sats := make([]string, 0, count)
	cellsBySat := make([][]string, 0, count)
	for i := 0; i < count; i++ {
		line := buf[1+i]
		sat := padTo(sliceAt(line, 0, 3), 3)
		nobs := c.numObs[sat[0]]
		if nobs <= 0 {
			return fmt.Errorf("line %d: no SYS / # / OBS TYPES for system %q", c.lineNo, sat[0])
		}
		cells := make([]string, nobs)
		for j := 0; j < nobs; j++ {
			cells[j] = padTo(sliceAt(line, 3+cellWidth*j, cellWidth), cellWidth)
		}
		sats = append(sats, sat)
		cellsBySat = append(cellsBySat, cells)
	}
	clockField := strings.TrimSpace(sliceAt(buf[0], v3ClockPos, 15))

	epochText := padTo(sliceAt(buf[0], 0, 35), 35) + strings.Repeat(" ", v3SatListPos-35) + strings.Join(sats, "")
	if err := c.emitEpochLine(epochText, true); err != nil {
		return err
	}
	if err := c.emitClockLine(clockField, 12); err != nil {
		return err
	}
	for i, sat := range sats {
		if err := c.emitDataLine(sat, cellsBySat[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compressor) emitEpochLine(text string, v3 bool) error {
	if c.epoch == "" {
		c.epoch = text
		initLine := text
		if !v3 {
			initLine = "&" + text[1:]
		}
		return c.out(strings.TrimRight(initLine, " "))
	}
	diff := diffLine(c.epoch, text)
	c.epoch = patchLine(c.epoch, diff)
	return c.out(diff)
}

func (c *Compressor) emitClockLine(field string, frac int) error {
	if field == "" {
		c.clock = nil
		return c.out("")
	}
	v, err := scaleParsed(field, frac)
	if err != nil {
		return fmt.Errorf("line %d: clock offset: %w", c.lineNo, err)
	}
	if c.clock == nil {
		c.clock = newArc(defaultArcOrder, v)
		return c.out(fmt.Sprintf("%d&%d", defaultArcOrder, v))
	}
	e := c.clock.emit(v)
	if e > reinitAbs || e < -reinitAbs {
		c.clock = newArc(defaultArcOrder, v)
		return c.out(fmt.Sprintf("%d&%d", defaultArcOrder, v))
	}
	return c.out(strconv.FormatInt(e, 10))
}

func (c *Compressor) emitDataLine(sat string, cells []string) error {
	nobs := len(cells)
	st := c.sats[sat]
	if st == nil {
		st = &satState{arcs: make([]*arc, nobs)}
		c.sats[sat] = st
	}
	if len(st.arcs) != nobs {
		st.arcs = make([]*arc, nobs)
		st.flags = ""
	}

	tokens := make([]string, nobs)
	newFlags := make([]byte, 0, 2*nobs)
	for j, cell := range cells {
		value := strings.TrimSpace(cell[:valueWidth])
		if value == "" {
			st.arcs[j] = nil
			tokens[j] = ""
			newFlags = append(newFlags, ' ', ' ')
			continue
		}
		v, err := scaleParsed(value, 3)
		if err != nil {
			return fmt.Errorf("line %d, sat %s: %w", c.lineNo, strings.TrimSpace(sat), err)
		}
		if st.arcs[j] == nil {
			st.arcs[j] = newArc(defaultArcOrder, v)
			tokens[j] = fmt.Sprintf("%d&%d", defaultArcOrder, v)
		} else {
			e := st.arcs[j].emit(v)
			if e > reinitAbs || e < -reinitAbs {
				st.arcs[j] = newArc(defaultArcOrder, v)
				tokens[j] = fmt.Sprintf("%d&%d", defaultArcOrder, v)
			} else {
				tokens[j] = strconv.FormatInt(e, 10)
			}
		}
		newFlags = append(newFlags, cell[valueWidth], cell[valueWidth+1])
	}

	flagDiff := diffLine(st.flags, string(newFlags))
	st.flags = patchLine(st.flags, flagDiff)
	if len(st.flags) < 2*nobs {
		st.flags += strings.Repeat(" ", 2*nobs-len(st.flags))
	} else if len(st.flags) > 2*nobs {
		st.flags = st.flags[:2*nobs]
	}

	line := strings.Join(tokens, " ")
	if flagDiff != "" {
		line += " " + flagDiff
	}
	return c.out(strings.TrimRight(line, " "))
}

// Compress drains plain RINEX observation text into CRINEX form.
func Compress(dst io.Writer, src io.Reader) error {
	c := NewCompressor(dst)
	r := bufio.NewReaderSize(src, 64*1024)
	for {
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		if line != "" {
			if werr := c.WriteLine(strings.TrimRight(line, "\r\n")); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			break
		}
	}
	return c.Close()
}
