package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"example.com/rnxgate/internal/dict"
	"example.com/rnxgate/internal/rinex"
)

var dictCmd = &cobra.Command{
	Use:   "dict [file...]",
	Short: "Validate the observable dictionary and check files against it",
	Long:  "dict loads the observable dictionary (the embedded default or --dict), prints its contents and, when files are given, lists their header declarations the dictionary does not know.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dictPath, _ := cmd.Flags().GetString("dict")
		store, err := dict.Load(dictPath)
		if err != nil {
			return err
		}
		source := dictPath
		if source == "" {
			source = "embedded default"
		}
		fmt.Printf("Dictionary %s: OK\n", source)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SYS\tCODES")
		for _, sys := range store.Systems() {
			codes := store.Codes(sys)
			names := make([]string, len(codes))
			for i, c := range codes {
				names[i] = string(c)
			}
			fmt.Fprintf(w, "%c\t%s\n", sys.Letter(), strings.Join(names, " "))
		}
		w.Flush()

		failed := false
		for _, path := range args {
			h, _, err := rinex.ParseFile(path)
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			findings := store.Check(h)
			if len(findings) == 0 {
				fmt.Printf("%s: OK\n", path)
				continue
			}
			failed = true
			fmt.Printf("%s: %d findings\n", path, len(findings))
			for _, f := range findings {
				fmt.Printf("  %s\n", f)
			}
		}
		if failed {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	dictCmd.Flags().String("dict", "", "observable dictionary YAML (default embedded)")
	rootCmd.AddCommand(dictCmd)
}
