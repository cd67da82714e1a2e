// Package hatanaka implements the Hatanaka (Compact RINEX) text codec:
// a streaming decompressor reconstructing plain RINEX observation text
// from CRINEX 1.0/3.0 differential encoding, and the matching compressor.
// One Decompressor owns the differencing state of exactly one stream.
package hatanaka

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	v2SatListPos  = 32
	v2SatsPerLine = 12
	v2FlagPos     = 28
	v2CountPos    = 29
	v2ClockPos    = 68

	v3SatListPos = 41
	v3FlagPos    = 31
	v3CountPos   = 32
	v3ClockPos   = 41

	cellWidth  = 16
	valueWidth = 14
)

var (
	ErrNotCRINEX = errors.New("not a compact RINEX stream")
)

// DesyncError reports an unrecoverable loss of alignment between the
// differencing state and the compressed stream. The stream cannot be
// resumed past it.
type DesyncError struct {
	N      int    // 1-based line number in the compressed stream
	Sat    string // satellite code when the failure is satellite-scoped
	Reason string
}

func (e *DesyncError) Error() string {
	if e.Sat != "" {
		return fmt.Sprintf("crinex desync at line %d, sat %s: %s", e.N, e.Sat, e.Reason)
	}
	return fmt.Sprintf("crinex desync at line %d: %s", e.N, e.Reason)
}

// IsCRINEX reports whether the buffer opens a Compact RINEX stream. It
// needs at least the first 80 bytes to see the label columns.
func IsCRINEX(prefix []byte) bool {
	end := len(prefix)
	if i := strings.IndexByte(string(prefix), '\n'); i >= 0 && i < end {
		end = i
	}
	line := string(prefix[:end])
	if len(line) < 61 {
		return false
	}
	return strings.Contains(line[60:], "CRINEX VERS")
}

type satState struct {
	arcs  []*arc
	flags string
}

// Decompressor reconstructs plain RINEX lines from a CRINEX stream, one
// pull at a time.
type Decompressor struct {
	r       *bufio.Reader
	crxVer  int
	rnxVer  int
	lineNo  int
	header  bool
	numObs  map[byte]int
	epoch   string
	clock   *arc
	sats    map[string]*satState
	pending []string
	err     error
}

// NewDecompressor validates the CRINEX preamble and returns a ready
// decompressor. The two CRINEX-specific header lines are consumed here;
// every line the stream yields afterwards is plain RINEX.
func NewDecompressor(r io.Reader) (*Decompressor, error) {
	d := &Decompressor{
		r:      bufio.NewReaderSize(r, 64*1024),
		header: true,
		numObs: make(map[byte]int),
		sats:   make(map[string]*satState),
	}
	line, err := d.readLine()
	if err != nil {
		return nil, ErrNotCRINEX
	}
	if len(line) < 61 || !strings.Contains(line[60:], "CRINEX VERS") {
		return nil, ErrNotCRINEX
	}
	ver, err := strconv.ParseFloat(strings.TrimSpace(line[:20]), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad version field", ErrNotCRINEX)
	}
	d.crxVer = int(ver)
	if d.crxVer != 1 && d.crxVer != 3 {
		return nil, fmt.Errorf("%w: version %.1f", ErrNotCRINEX, ver)
	}
	if _, err := d.readLine(); err != nil {
		return nil, fmt.Errorf("%w: missing PROG / DATE line", ErrNotCRINEX)
	}
	return d, nil
}

// Version returns the CRINEX major version of the stream (1 or 3).
func (d *Decompressor) Version() int {
	return d.crxVer
}

func (d *Decompressor) readLine() (string, error) {
	line, err := d.r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			d.lineNo++
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	d.lineNo++
	return strings.TrimRight(line, "\r\n"), nil
}

func (d *Decompressor) desync(sat, reason string) error {
	return &DesyncError{N: d.lineNo, Sat: sat, Reason: reason}
}

// Next returns the next reconstructed plain RINEX line. io.EOF marks the
// clean end of the stream; a DesyncError is terminal.
func (d *Decompressor) Next() (string, error) {
	for len(d.pending) == 0 {
		if d.err != nil {
			return "", d.err
		}
		if err := d.fill(); err != nil {
			d.err = err
			return "", err
		}
	}
	line := d.pending[0]
	d.pending = d.pending[1:]
	return line, nil
}

func (d *Decompressor) fill() error {
	line, err := d.readLine()
	if err != nil {
		return err
	}
	if d.header {
		d.scanHeaderLine(line)
		d.pending = append(d.pending, line)
		return nil
	}
	return d.fillEpoch(line)
}

func (d *Decompressor) scanHeaderLine(line string) {
	if len(line) < 61 {
		return
	}
	switch strings.TrimSpace(line[60:]) {
	case "RINEX VERSION / TYPE":
		if v, err := strconv.ParseFloat(strings.TrimSpace(line[:20]), 64); err == nil {
			d.rnxVer = int(v)
		}
	case "# / TYPES OF OBSERV":
		if n, err := strconv.Atoi(strings.TrimSpace(line[:6])); err == nil && n > 0 {
			d.numObs[0] = n
		}
	case "SYS / # / OBS TYPES":
		if line[0] != ' ' {
			if n, err := strconv.Atoi(strings.TrimSpace(line[3:6])); err == nil && n > 0 {
				d.numObs[line[0]] = n
			}
		}
	case "END OF HEADER":
		d.header = false
	}
}

// fillEpoch consumes one whole epoch record from the compressed stream
// and queues its plain-text rendition.
func (d *Decompressor) fillEpoch(line string) error {
	v3 := d.crxVer >= 3
	init := false
	if v3 {
		init = len(line) > 0 && line[0] == '>'
	} else {
		init = len(line) > 0 && line[0] == '&'
	}
	if init {
		if !v3 {
			line = " " + line[1:]
		}
		d.epoch = line
	} else {
		if d.epoch == "" {
			return d.desync("", "differential epoch line before any initialization")
		}
		d.epoch = patchLine(d.epoch, line)
	}

	flagPos, countPos := v2FlagPos, v2CountPos
	if v3 {
		flagPos, countPos = v3FlagPos, v3CountPos
	}
	flag := 0
	if len(d.epoch) > flagPos && d.epoch[flagPos] != ' ' {
		if d.epoch[flagPos] < '0' || d.epoch[flagPos] > '9' {
			return d.desync("", fmt.Sprintf("bad epoch flag %q", d.epoch[flagPos]))
		}
		flag = int(d.epoch[flagPos] - '0')
	}
	count, err := strconv.Atoi(strings.TrimSpace(sliceAt(d.epoch, countPos, 3)))
	if err != nil {
		return d.desync("", "unreadable satellite count on epoch line")
	}

	if flag > 1 {
		return d.fillEvent(flag, count)
	}

	clockLine, err := d.readLine()
	if err != nil {
		return d.desync("", "missing clock offset line")
	}
	clockTok := strings.TrimSpace(clockLine)
	haveClock := false
	var clockVal int64
	if clockTok != "" {
		isInit, order, v, err := parseToken(clockTok)
		if err != nil {
			return d.desync("", err.Error())
		}
		if isInit {
			d.clock = newArc(order, v)
			clockVal = v
		} else {
			if d.clock == nil {
				return d.desync("", "clock offset difference with no live arc")
			}
			clockVal = d.clock.push(v)
		}
		haveClock = true
	} else {
		d.clock = nil
	}

	listPos := v2SatListPos
	if v3 {
		listPos = v3SatListPos
	}
	sats := make([]string, 0, count)
	for i := 0; i < count; i++ {
		code := sliceAt(d.epoch, listPos+3*i, 3)
		if strings.TrimSpace(code) == "" {
			return d.desync("", fmt.Sprintf("epoch line lists %d satellites, slot %d empty", count, i+1))
		}
		if len(code) < 3 {
			code += strings.Repeat(" ", 3-len(code))
		}
		sats = append(sats, code)
	}

	dataLines := make([][]string, 0, count)
	for _, sat := range sats {
		raw, err := d.readLine()
		if err != nil {
			return d.desync(sat, "data line missing")
		}
		cells, err := d.decodeDataLine(sat, raw)
		if err != nil {
			return err
		}
		dataLines = append(dataLines, cells)
	}

	d.queueEpoch(v3, sats, dataLines, haveClock, clockVal)
	return nil
}

// fillEvent copies the records of a special-event epoch (flag 2..6)
// verbatim and resets every differencing arc.
func (d *Decompressor) fillEvent(flag, count int) error {
	d.pending = append(d.pending, strings.TrimRight(d.epoch, " "))

	lines := count
	if flag == 6 {
		lines = count * d.linesPerSatRecord()
	}
	for i := 0; i < lines; i++ {
		raw, err := d.readLine()
		if err != nil {
			return d.desync("", "event record line missing")
		}
		d.pending = append(d.pending, strings.TrimRight(raw, " "))
	}
	d.sats = make(map[string]*satState)
	d.clock = nil
	return nil
}

// linesPerSatRecord is the plain-text line count one satellite record
// occupies, used for flag-6 cycle-slip blocks.
func (d *Decompressor) linesPerSatRecord() int {
	if d.crxVer >= 3 {
		return 1
	}
	n := d.numObs[0]
	if n <= 0 {
		return 1
	}
	return (n + 4) / 5
}

func (d *Decompressor) numObsFor(sat string) int {
	if d.crxVer < 3 {
		return d.numObs[0]
	}
	return d.numObs[sat[0]]
}

// decodeDataLine reconstructs one satellite's observation cells. The
// returned slice holds one 16-character cell per observable; absent
// observations are blank cells.
func (d *Decompressor) decodeDataLine(sat, line string) ([]string, error) {
	nobs := d.numObsFor(sat)
	if nobs <= 0 {
		return nil, d.desync(sat, "no observable catalog for satellite system")
	}
	st := d.sats[sat]
	if st == nil {
		st = &satState{arcs: make([]*arc, nobs)}
		d.sats[sat] = st
	}
	if len(st.arcs) != nobs {
		st.arcs = make([]*arc, nobs)
		st.flags = ""
	}

	parts := strings.SplitN(line, " ", nobs+1)
	vals := make([]int64, nobs)
	present := make([]bool, nobs)
	for j := 0; j < nobs; j++ {
		tok := ""
		if j < len(parts) {
			tok = parts[j]
		}
		if tok == "" {
			st.arcs[j] = nil
			continue
		}
		isInit, order, v, err := parseToken(tok)
		if err != nil {
			return nil, d.desync(sat, err.Error())
		}
		if isInit {
			st.arcs[j] = newArc(order, v)
			vals[j] = v
		} else {
			if st.arcs[j] == nil {
				return nil, d.desync(sat, fmt.Sprintf("difference for observable %d with no live arc", j+1))
			}
			vals[j] = st.arcs[j].push(v)
		}
		present[j] = true
	}

	flagDiff := ""
	if len(parts) > nobs {
		flagDiff = parts[nobs]
	}
	flags := patchLine(st.flags, flagDiff)
	if len(flags) < 2*nobs {
		flags += strings.Repeat(" ", 2*nobs-len(flags))
	} else if len(flags) > 2*nobs {
		flags = flags[:2*nobs]
	}
	st.flags = flags

	cells := make([]string, nobs)
	for j := 0; j < nobs; j++ {
		if !present[j] {
			cells[j] = strings.Repeat(" ", cellWidth)
			continue
		}
		cells[j] = formatScaled(vals[j], 3, valueWidth) + flags[2*j:2*j+2]
	}
	return cells, nil
}

// queueEpoch renders one reconstructed epoch in plain RINEX layout.
func (d *Decompressor) queueEpoch(v3 bool, sats []string, data [][]string, haveClock bool, clock int64) {
	if v3 {
		line := sliceAt(d.epoch, 0, 35)
		line = padTo(line, 35)
		if haveClock {
			line = padTo(line, v3ClockPos) + formatScaled(clock, 12, 15)
		}
		d.pending = append(d.pending, strings.TrimRight(line, " "))
		for i, sat := range sats {
			d.pending = append(d.pending, strings.TrimRight(sat+strings.Join(data[i], ""), " "))
		}
		return
	}

	head := padTo(sliceAt(d.epoch, 0, v2SatListPos), v2SatListPos)
	if len(sats) == 0 {
		d.pending = append(d.pending, strings.TrimRight(head, " "))
	}
	for i := 0; i < len(sats); i += v2SatsPerLine {
		end := i + v2SatsPerLine
		if end > len(sats) {
			end = len(sats)
		}
		line := head + strings.Join(sats[i:end], "")
		if i == 0 && haveClock {
			line = padTo(line, v2ClockPos) + formatScaled(clock, 9, 12)
		}
		d.pending = append(d.pending, strings.TrimRight(line, " "))
		head = strings.Repeat(" ", v2SatListPos)
	}
	for _, cells := range data {
		for i := 0; i < len(cells); i += 5 {
			end := i + 5
			if end > len(cells) {
				end = len(cells)
			}
			d.pending = append(d.pending, strings.TrimRight(strings.Join(cells[i:end], ""), " "))
		}
	}
}

func sliceAt(s string, start, n int) string {
	if start >= len(s) {
		return ""
	}
	end := start + n
	if end > len(s) {
		end = len(s)
	}
	return s[start:end]
}

func padTo(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}

// Decompress drains a whole CRINEX stream into plain RINEX text.
func Decompress(dst io.Writer, src io.Reader) error {
	d, err := NewDecompressor(src)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(dst)
	for {
		line, err := d.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if _, err := w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}
