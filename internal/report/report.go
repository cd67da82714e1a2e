// Package report builds scan summaries of parsed RINEX files and
// renders them as PDF documents with an embedded content-digest QR
// code. Locale strings come from embedded JSON tables.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"example.com/rnxgate/internal/common"
	"example.com/rnxgate/internal/gnss"
	"example.com/rnxgate/internal/rinex"
)

// CodeCount tallies one record dimension of the scanned file: an
// observable code per constellation, a navigation message type, a meteo
// sensor or a clock record type, depending on the file type.
type CodeCount struct {
	System string `json:"system,omitempty"`
	Code   string `json:"code"`
	Count  int    `json:"count"`
}

// Summary is the flattened scan result of one file.
type Summary struct {
	File    string `json:"file,omitempty"`
	Sha256  string `json:"sha256,omitempty"`
	Bytes   int64  `json:"bytes,omitempty"`
	Format  string `json:"format"`
	Version string `json:"version"`
	System  string `json:"system,omitempty"`
	Marker  string `json:"marker,omitempty"`

	First  time.Time `json:"first,omitempty"`
	Last   time.Time `json:"last,omitempty"`
	Epochs int       `json:"epochs"`
	Events int       `json:"events"`

	Codes   []CodeCount   `json:"codes,omitempty"`
	Sensors []SensorStats `json:"sensors,omitempty"`
}

// SensorStats condenses the sampled values of one meteo sensor.
type SensorStats struct {
	Code string  `json:"code"`
	N    int     `json:"n"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// BuildSummary condenses a parsed header and container into a Summary.
// When path names a readable file its SHA-256 digest and size are
// included; an empty path skips the digest.
func BuildSummary(h *rinex.Header, s *rinex.Series, path string) (Summary, error) {
	sum := Summary{
		File:    path,
		Format:  h.Type.String(),
		Version: h.Version(),
		Marker:  h.MarkerName,
		Epochs:  s.Len(),
	}
	if h.System != gnss.ConstellationUnknown {
		sum.System = h.System.String()
	}
	if path != "" {
		digest, size, err := common.Sha256OfFile(path)
		if err != nil {
			return Summary{}, fmt.Errorf("digest %s: %w", path, err)
		}
		sum.Sha256 = digest
		sum.Bytes = size
	}
	if e, ok := s.First(); ok {
		sum.First = e.Time
	}
	if e, ok := s.Last(); ok {
		sum.Last = e.Time
	}

	counts := make(map[CodeCount]int)
	sensorVals := make(map[string][]float64)
	cur := s.Epochs()
	for {
		entry, ok := cur.Next()
		if !ok {
			break
		}
		if entry.Epoch.Flag.IsEvent() {
			sum.Events++
		}
		tally(counts, entry.Payload)
		if met, ok := entry.Payload.(rinex.MetPayload); ok {
			for code, v := range met {
				sensorVals[code] = append(sensorVals[code], v)
			}
		}
	}
	sum.Sensors = sensorStats(sensorVals)
	for key, n := range counts {
		key.Count = n
		sum.Codes = append(sum.Codes, key)
	}
	sort.Slice(sum.Codes, func(i, j int) bool {
		if sum.Codes[i].System != sum.Codes[j].System {
			return sum.Codes[i].System < sum.Codes[j].System
		}
		return sum.Codes[i].Code < sum.Codes[j].Code
	})
	return sum, nil
}

func tally(counts map[CodeCount]int, p rinex.Payload) {
	switch v := p.(type) {
	case *rinex.ObsPayload:
		for sat, obs := range v.Sats {
			for code := range obs {
				counts[CodeCount{System: string(sat.Sys.Letter()), Code: string(code)}]++
			}
		}
	case *rinex.NavPayload:
		for _, m := range v.Msgs {
			counts[CodeCount{System: string(m.Sat.Sys.Letter()), Code: m.Message}]++
		}
	case rinex.MetPayload:
		for code := range v {
			counts[CodeCount{Code: code}]++
		}
	case *rinex.ClockPayload:
		for _, r := range v.Records {
			counts[CodeCount{Code: r.RecordType}]++
		}
	case *rinex.IonexPayload:
		counts[CodeCount{Code: "TEC"}] += len(v.TEC)
		counts[CodeCount{Code: "RMS"}] += len(v.RMS)
	}
}

func sensorStats(vals map[string][]float64) []SensorStats {
	var stats []SensorStats
	for code, v := range vals {
		if len(v) == 0 {
			continue
		}
		stats = append(stats, SensorStats{
			Code: code,
			N:    len(v),
			Min:  floats.Min(v),
			Max:  floats.Max(v),
			Mean: floats.Sum(v) / float64(len(v)),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Code < stats[j].Code })
	return stats
}

// SaveJSON writes a summary as indented JSON.
func SaveJSON(sum Summary, out string) error {
	b, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

// LoadJSON reads a summary previously written with SaveJSON.
func LoadJSON(path string) (Summary, error) {
	var sum Summary
	b, err := os.ReadFile(path)
	if err != nil {
		return sum, err
	}
	err = json.Unmarshal(b, &sum)
	return sum, err
}
