package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"example.com/rnxgate/internal/common"
	"example.com/rnxgate/internal/hatanaka"
	"example.com/rnxgate/internal/rinex"
)

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Convert between plain RINEX and Hatanaka-compressed form",
	Long:  "convert parses the input (gzip and CRINEX layers are detected from content) and rewrites it as plain RINEX or CRINEX.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := args[0]
		out, _ := cmd.Flags().GetString("out")
		to, _ := cmd.Flags().GetString("to")
		progress, _ := cmd.Flags().GetBool("progress")

		if to != "rinex" && to != "crinex" {
			return fmt.Errorf("unknown target format %q (want rinex or crinex)", to)
		}
		if out == "" {
			dir := filepath.Dir(in)
			if to == "crinex" {
				out = filepath.Join(dir, crinexName(in))
			} else {
				out = filepath.Join(dir, common.OutputName(in))
			}
		}

		f, err := os.Open(in)
		if err != nil {
			return err
		}
		defer f.Close()

		var reader io.Reader = f
		var metrics *common.Metrics
		var stopProgress func()
		if progress {
			metrics = common.NewMetrics()
			if info, err := f.Stat(); err == nil {
				metrics.SetTotalBytes(info.Size())
			}
			reader = &countingReader{r: f, m: metrics}
			metrics.Start()
			stopProgress = common.StartProgressPrinter(os.Stderr, metrics, 500*time.Millisecond)
		}

		h, s, err := rinex.Parse(reader)
		if stopProgress != nil {
			stopProgress()
			metrics.Stop()
		}
		if err != nil {
			return fmt.Errorf("parse %s: %w", in, err)
		}

		if to == "rinex" {
			if err := rinex.WriteFile(out, h, s); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
		} else if err := writeCRINEX(out, h, s); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		fmt.Printf("Wrote %s (%d epochs)\n", out, s.Len())
		return nil
	},
}

func writeCRINEX(path string, h *rinex.Header, s *rinex.Series) error {
	var plain bytes.Buffer
	if err := rinex.Write(&plain, h, s); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := hatanaka.Compress(w, &plain); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

// crinexName mirrors common.OutputName in the compressing direction.
func crinexName(name string) string {
	base := filepath.Base(name)
	if strings.HasSuffix(strings.ToLower(base), ".gz") {
		base = base[:len(base)-3]
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	lower := strings.ToLower(ext)
	switch {
	case lower == ".rnx":
		return stem + ".crx"
	case len(lower) == 4 && lower[3] == 'o':
		return stem + ext[:3] + "d"
	case lower == "":
		return base + ".crx"
	}
	return base
}

type countingReader struct {
	r io.Reader
	m *common.Metrics
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.m.AddBytes(int64(n))
	return n, err
}

func init() {
	convertCmd.Flags().String("out", "", "output path (default derived from the input name)")
	convertCmd.Flags().String("to", "rinex", "target format: rinex or crinex")
	convertCmd.Flags().Bool("progress", false, "display progress on stderr")
	rootCmd.AddCommand(convertCmd)
}
