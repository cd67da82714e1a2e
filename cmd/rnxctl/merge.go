package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"example.com/rnxgate/internal/rinex"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <file> <file> [file...]",
	Short: "Merge two or more files of the same type into one",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		policyName, _ := cmd.Flags().GetString("policy")
		policy, err := rinex.ParseMergePolicy(policyName)
		if err != nil {
			return err
		}
		if out == "" {
			return fmt.Errorf("required: --out")
		}

		h, merged, err := rinex.ParseFile(args[0])
		if err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}
		for _, path := range args[1:] {
			_, s, err := rinex.ParseFile(path)
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			merged, err = merged.Merge(s, policy)
			if err != nil {
				return fmt.Errorf("merge %s: %w", path, err)
			}
		}

		if err := rinex.WriteFile(out, h, merged); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		fmt.Printf("Wrote %s (%d epochs from %d inputs, %s)\n", out, merged.Len(), len(args), policy)
		return nil
	},
}

func init() {
	mergeCmd.Flags().String("out", "", "merged output path")
	mergeCmd.Flags().String("policy", "fail-on-conflict", "conflict policy: fail-on-conflict, last-wins or first-wins")
	rootCmd.AddCommand(mergeCmd)
}
