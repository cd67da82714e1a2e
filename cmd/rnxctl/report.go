package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"example.com/rnxgate/internal/report"
	"example.com/rnxgate/internal/rinex"
)

var reportCmd = &cobra.Command{
	Use:   "report <file>",
	Short: "Render a PDF scan report with a content-digest QR code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pdfOut, _ := cmd.Flags().GetString("pdf")
		jsonOut, _ := cmd.Flags().GetString("json")
		langFlag, _ := cmd.Flags().GetString("lang")
		if pdfOut == "" && jsonOut == "" {
			return fmt.Errorf("required: --pdf or --json")
		}
		lang, err := report.ParseLanguage(langFlag)
		if err != nil {
			return err
		}

		h, s, err := rinex.ParseFile(args[0])
		if err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}
		sum, err := report.BuildSummary(h, s, args[0])
		if err != nil {
			return err
		}

		if jsonOut != "" {
			if err := report.SaveJSON(sum, jsonOut); err != nil {
				return fmt.Errorf("write %s: %w", jsonOut, err)
			}
			fmt.Println("Wrote", jsonOut)
		}
		if pdfOut != "" {
			if err := report.SavePDF(sum, lang, pdfOut); err != nil {
				return fmt.Errorf("write %s: %w", pdfOut, err)
			}
			fmt.Println("Wrote", pdfOut)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().String("pdf", "", "output PDF path")
	reportCmd.Flags().String("json", "", "output JSON path")
	reportCmd.Flags().String("lang", "en", "report language: en or de")
	rootCmd.AddCommand(reportCmd)
}
