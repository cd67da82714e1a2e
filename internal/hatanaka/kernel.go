package hatanaka

import (
	"fmt"
	"strconv"
	"strings"
)

// maxArcOrder caps the differencing depth accepted from init tokens. The
// format allows a single digit.
const maxArcOrder = 9

// defaultArcOrder is the differencing depth the compressor starts arcs at,
// matching the reference tools.
const defaultArcOrder = 3

// arc is the accumulator chain for one differenced number series. s[k]
// holds the latest k-th difference, so s[order] is the latest absolute
// value. A new arc starts from an init token and ages with every sample:
// the first samples after init carry ramping difference orders until the
// arc reaches its full order.
type arc struct {
	s     []int64
	order int
	age   int
}

func newArc(order int, v int64) *arc {
	a := &arc{s: make([]int64, order+1), order: order}
	a.s[order] = v
	a.age = 1
	return a
}

// push integrates the next difference token and returns the reconstructed
// absolute value.
func (a *arc) push(v int64) int64 {
	j := a.age
	if j > a.order {
		j = a.order
	}
	idx := a.order - j
	a.s[idx] = v
	for i := idx + 1; i <= a.order; i++ {
		a.s[i] += a.s[i-1]
	}
	a.age++
	return a.s[a.order]
}

// emit differences the next absolute value and returns the token value the
// compressor writes. The state update mirrors push.
func (a *arc) emit(x int64) int64 {
	j := a.age
	if j > a.order {
		j = a.order
	}
	d := x
	for k := 1; k <= j; k++ {
		idx := a.order - k + 1
		nd := d - a.s[idx]
		a.s[idx] = d
		d = nd
	}
	a.s[a.order-j] = d
	a.age++
	return d
}

// value returns the latest absolute value of the arc.
func (a *arc) value() int64 {
	return a.s[a.order]
}

// parseToken reads one space-delimited data field: "m&v" starts an arc of
// order m at value v, a bare integer is the next difference. The empty
// token means the observation is absent this epoch.
func parseToken(tok string) (init bool, order int, v int64, err error) {
	if i := strings.IndexByte(tok, '&'); i >= 0 {
		if i != 1 || tok[0] < '0' || tok[0] > '9' {
			return false, 0, 0, fmt.Errorf("malformed init token %q", tok)
		}
		order = int(tok[0] - '0')
		if order > maxArcOrder {
			return false, 0, 0, fmt.Errorf("arc order %d out of range", order)
		}
		v, err = strconv.ParseInt(tok[2:], 10, 64)
		if err != nil {
			return false, 0, 0, fmt.Errorf("malformed init token %q: %w", tok, err)
		}
		return true, order, v, nil
	}
	v, err = strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return false, 0, 0, fmt.Errorf("malformed difference token %q", tok)
	}
	return false, 0, v, nil
}

// patchLine applies a character-wise differential line to the previous
// text: space keeps the previous character, '&' forces a blank, anything
// else replaces. Characters of the previous text beyond the patch carry
// over unchanged.
func patchLine(prev, diff string) string {
	n := len(diff)
	if len(prev) > n {
		n = len(prev)
	}
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		var p byte = ' '
		if i < len(prev) {
			p = prev[i]
		}
		if i >= len(diff) {
			b[i] = p
			continue
		}
		switch diff[i] {
		case ' ':
			b[i] = p
		case '&':
			b[i] = ' '
		default:
			b[i] = diff[i]
		}
	}
	return string(b)
}

// diffLine produces the character-wise differential of next against prev,
// the inverse of patchLine. Blanks that overwrite a previous non-blank
// are encoded as '&'.
func diffLine(prev, next string) string {
	b := make([]byte, len(next))
	for i := 0; i < len(next); i++ {
		var p byte = ' '
		if i < len(prev) {
			p = prev[i]
		}
		c := next[i]
		switch {
		case c == p:
			b[i] = ' '
		case c == ' ':
			b[i] = '&'
		default:
			b[i] = c
		}
	}
	return strings.TrimRight(string(b), " ")
}

// formatScaled renders a scaled integer as a fixed-point decimal with the
// given number of fraction digits, right-aligned to width. The scale is
// 10^frac, so formatScaled(23629347915, 3, 14) yields "  23629347.915".
func formatScaled(v int64, frac, width int) string {
	pow := int64(1)
	for i := 0; i < frac; i++ {
		pow *= 10
	}
	neg := v < 0
	a := v
	if neg {
		a = -a
	}
	s := fmt.Sprintf("%d.%0*d", a/pow, frac, a%pow)
	if neg {
		s = "-" + s
	}
	if len(s) < width {
		s = strings.Repeat(" ", width-len(s)) + s
	}
	return s
}

// scaleParsed converts a plain-text fixed-point field into the scaled
// integer the arcs work in. The field must carry at most frac fraction
// digits.
func scaleParsed(field string, frac int) (int64, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return 0, fmt.Errorf("empty numeric field")
	}
	neg := false
	switch field[0] {
	case '-':
		neg = true
		field = field[1:]
	case '+':
		field = field[1:]
	}
	whole := field
	fracPart := ""
	if i := strings.IndexByte(field, '.'); i >= 0 {
		whole = field[:i]
		fracPart = field[i+1:]
	}
	if len(fracPart) > frac {
		return 0, fmt.Errorf("field %q exceeds %d fraction digits", field, frac)
	}
	for len(fracPart) < frac {
		fracPart += "0"
	}
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, err
	}
	f := int64(0)
	if frac > 0 {
		f, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return 0, err
		}
	}
	pow := int64(1)
	for i := 0; i < frac; i++ {
		pow *= 10
	}
	v := w*pow + f
	if neg {
		v = -v
	}
	return v, nil
}
