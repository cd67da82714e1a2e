package rinex

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"example.com/rnxgate/internal/gnss"
	"example.com/rnxgate/internal/grammar"
)

// decodeIonex reads TEC and RMS map blocks into dense grids, one grid
// per height layer. The missing-value marker 9999 becomes NaN and every
// stored cell carries the block exponent scaling.
func decodeIonex(h *Header, d *grammar.Dialect, src *countingSource) (*Series, error) {
	grid := h.Ionex
	if grid == nil {
		return nil, fmt.Errorf("%w: ionex grid definition", ErrMissingMandatoryField)
	}
	dec := &ionexDecoder{h: h, lay: d.Ionex, src: src, grid: grid, exp: grid.Exponent}
	if err := dec.run(); err != nil {
		return nil, err
	}
	return dec.fold()
}

type ionexDecoder struct {
	h    *Header
	lay  *grammar.IonexLayout
	src  *countingSource
	grid *IonexGrid
	exp  int

	groups map[time.Time]*IonexPayload
	times  []time.Time
}

func (dec *ionexDecoder) fail(line string, err error) error {
	return &RecordDecodeError{FileType: grammar.Ionex, N: dec.src.n, Line: line, Err: err}
}

func (dec *ionexDecoder) run() error {
	dec.groups = make(map[time.Time]*IonexPayload)
	for {
		line, err := dec.src.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch label := ionexLabel(line); label {
		case "START OF TEC MAP":
			err = dec.mapBlock("TEC")
		case "START OF RMS MAP":
			err = dec.mapBlock("RMS")
		case "START OF HEIGHT MAP":
			err = dec.mapBlock("HGT")
		case "EXPONENT":
			v, perr := gnss.ParseInt(line[:6])
			if perr != nil {
				return dec.fail(line, perr)
			}
			dec.exp = v
		case "END OF FILE":
			return nil
		case "":
			if strings.TrimSpace(line) != "" {
				return dec.fail(line, fmt.Errorf("data line outside map block"))
			}
		}
		if err != nil {
			return err
		}
	}
}

// mapBlock consumes one START..END block: the epoch line, then row
// blocks of a latitude header followed by its value lines.
func (dec *ionexDecoder) mapBlock(kind string) error {
	var (
		epoch  time.Time
		haveT  bool
		layers = make(map[int]*mat.Dense)
	)
	rows, cols := dec.grid.Rows(), dec.grid.Cols()

	for {
		line, err := dec.src.Next()
		if err == io.EOF {
			return dec.fail("", fmt.Errorf("%s map truncated", kind))
		}
		if err != nil {
			return err
		}
		switch label := ionexLabel(line); label {
		case "END OF TEC MAP", "END OF RMS MAP", "END OF HEIGHT MAP":
			if !haveT {
				return dec.fail(line, fmt.Errorf("%w: epoch of current map", ErrMissingMandatoryField))
			}
			dec.store(kind, epoch, layers)
			return nil
		case "EPOCH OF CURRENT MAP":
			var n [6]int
			for i, sp := range dec.lay.Epoch {
				v, err := gnss.ParseInt(sp.Field(line))
				if err != nil {
					return dec.fail(line, fmt.Errorf("map epoch field %d: %w", i, err))
				}
				n[i] = v
			}
			epoch = epochTime(n[0], n[1], n[2], n[3], n[4], float64(n[5]))
			haveT = true
		case "EXPONENT":
			v, err := gnss.ParseInt(line[:6])
			if err != nil {
				return dec.fail(line, err)
			}
			dec.exp = v
		case "LAT/LON1/LON2/DLON/H":
			if err := dec.rowBlock(line, rows, cols, layers); err != nil {
				return err
			}
		default:
			return dec.fail(line, fmt.Errorf("unexpected label %q in %s map", label, kind))
		}
	}
}

// rowBlock reads one latitude row: the header gives the row's latitude
// and height layer, the following lines carry cols values, sixteen per
// line.
func (dec *ionexDecoder) rowBlock(head string, rows, cols int, layers map[int]*mat.Dense) error {
	lat, err := gnss.ParseFloat(dec.lay.Lat.Of(head))
	if err != nil {
		return dec.fail(head, fmt.Errorf("row latitude: %w", err))
	}
	hgt, err := gnss.ParseFloat(dec.lay.Height.Of(head))
	if err != nil {
		return dec.fail(head, fmt.Errorf("row height: %w", err))
	}
	row := gridIndex(lat, dec.grid.Lat1, dec.grid.DLat)
	layer := gridIndex(hgt, dec.grid.Hgt1, dec.grid.DHgt)
	if row < 0 || row >= rows {
		return dec.fail(head, fmt.Errorf("latitude %.1f outside grid", lat))
	}
	g, ok := layers[layer]
	if !ok {
		g = mat.NewDense(rows, cols, nil)
		layers[layer] = g
	}

	scale := math.Pow(10, float64(dec.exp))
	got := 0
	for got < cols {
		line, err := dec.src.Next()
		if err != nil {
			return dec.fail(head, fmt.Errorf("row truncated after %d of %d values", got, cols))
		}
		for j := 0; j < dec.lay.ValuesPerLine && got < cols; j++ {
			f := grammar.Span{Start: j * dec.lay.ValueWidth, Len: dec.lay.ValueWidth}.Field(line)
			if f == "" {
				return dec.fail(line, fmt.Errorf("row truncated after %d of %d values", got, cols))
			}
			v, err := gnss.ParseInt(f)
			if err != nil {
				return dec.fail(line, fmt.Errorf("map value %d: %w", got, err))
			}
			if v == 9999 {
				g.Set(row, got, math.NaN())
			} else {
				g.Set(row, got, float64(v)*scale)
			}
			got++
		}
	}
	return nil
}

func (dec *ionexDecoder) store(kind string, t time.Time, layers map[int]*mat.Dense) {
	p, ok := dec.groups[t]
	if !ok {
		p = &IonexPayload{TEC: make(map[int]*mat.Dense), RMS: make(map[int]*mat.Dense)}
		dec.groups[t] = p
		dec.times = append(dec.times, t)
	}
	dst := p.TEC
	if kind == "RMS" {
		dst = p.RMS
	} else if kind == "HGT" {
		// Height maps are rare and carry no TEC semantics; folding them
		// into the TEC layer map would corrupt it, so they are dropped.
		return
	}
	for layer, g := range layers {
		dst[layer] = g
	}
}

func (dec *ionexDecoder) fold() (*Series, error) {
	sort.Slice(dec.times, func(i, j int) bool { return dec.times[i].Before(dec.times[j]) })
	s := NewSeries(grammar.Ionex)
	for _, t := range dec.times {
		if err := s.Insert(Epoch{Time: t, System: gnss.TimeUTC}, dec.groups[t]); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func ionexLabel(line string) string {
	if len(line) <= 60 {
		return ""
	}
	return strings.TrimSpace(line[60:])
}

// gridIndex locates a coordinate on a start+step axis.
func gridIndex(v, start, step float64) int {
	if step == 0 {
		return 0
	}
	return int(math.Floor((v-start)/step + 0.5))
}
