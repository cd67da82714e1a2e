package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"example.com/rnxgate/internal/dict"
	"example.com/rnxgate/internal/report"
	"example.com/rnxgate/internal/rinex"
)

var scanCmd = &cobra.Command{
	Use:   "scan <file>",
	Short: "Parse a file and print its structure",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dictPath, _ := cmd.Flags().GetString("dict")
		jsonOut, _ := cmd.Flags().GetString("json")

		h, s, err := rinex.ParseFile(args[0])
		if err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}
		sum, err := report.BuildSummary(h, s, args[0])
		if err != nil {
			return err
		}
		printSummary(os.Stdout, sum)

		store, err := dict.Load(dictPath)
		if err != nil {
			return err
		}
		findings := store.Check(h)
		if len(findings) > 0 {
			fmt.Println()
			fmt.Printf("Dictionary findings (%d):\n", len(findings))
			for _, f := range findings {
				fmt.Printf("  %s\n", f)
			}
		}

		if jsonOut != "" {
			if err := report.SaveJSON(sum, jsonOut); err != nil {
				return fmt.Errorf("write %s: %w", jsonOut, err)
			}
			fmt.Println("Wrote", jsonOut)
		}
		return nil
	},
}

func printSummary(out *os.File, sum report.Summary) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "File:\t%s\n", sum.File)
	if sum.Sha256 != "" {
		fmt.Fprintf(w, "SHA-256:\t%s\n", sum.Sha256)
	}
	format := sum.Format
	if sum.System != "" {
		format += " (" + sum.System + ")"
	}
	fmt.Fprintf(w, "Format:\t%s %s\n", format, sum.Version)
	if sum.Marker != "" {
		fmt.Fprintf(w, "Marker:\t%s\n", sum.Marker)
	}
	if !sum.First.IsZero() {
		fmt.Fprintf(w, "Span:\t%s .. %s\n",
			sum.First.Format("2006-01-02 15:04:05"), sum.Last.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(w, "Epochs:\t%d\n", sum.Epochs)
	if sum.Events > 0 {
		fmt.Fprintf(w, "Events:\t%d\n", sum.Events)
	}
	w.Flush()

	if len(sum.Codes) == 0 {
		return
	}
	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYS\tCODE\tCOUNT")
	for _, c := range sum.Codes {
		sys := c.System
		if sys == "" {
			sys = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\n", sys, c.Code, c.Count)
	}
	w.Flush()
}

func init() {
	scanCmd.Flags().String("dict", "", "observable dictionary YAML (default embedded)")
	scanCmd.Flags().String("json", "", "also write the summary as JSON")
	rootCmd.AddCommand(scanCmd)
}
