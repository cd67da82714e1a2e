package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"example.com/rnxgate/internal/rinex"
)

var decimateCmd = &cobra.Command{
	Use:   "decimate <file>",
	Short: "Thin a file to one epoch per interval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		interval, _ := cmd.Flags().GetDuration("interval")
		if out == "" {
			return fmt.Errorf("required: --out")
		}
		if interval <= 0 {
			return fmt.Errorf("--interval must be positive, got %s", interval)
		}

		h, s, err := rinex.ParseFile(args[0])
		if err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}
		thinned := s.Decimate(interval)
		if h.Interval > 0 && interval.Seconds() > h.Interval {
			h.Interval = interval.Seconds()
		}
		if err := rinex.WriteFile(out, h, thinned); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		fmt.Printf("Wrote %s (%d of %d epochs at %s)\n", out, thinned.Len(), s.Len(), interval)
		return nil
	},
}

func init() {
	decimateCmd.Flags().String("out", "", "decimated output path")
	decimateCmd.Flags().Duration("interval", 30*time.Second, "bucket interval, e.g. 30s or 5m")
	rootCmd.AddCommand(decimateCmd)
}
