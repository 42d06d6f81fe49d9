package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/grantline/proposal-cli/internal/export"
	"github.com/grantline/proposal-cli/internal/ledger"
)

var exportCmd = &cobra.Command{
	Use:   "export <project-id>",
	Short: "Assemble the proposal document",
	Long:  "Writes the summary-first proposal (coverage and eligibility before content) as markdown or HTML, optionally with a coverage matrix worksheet.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		projectID := args[0]

		asHTML, _ := cmd.Flags().GetBool("html")
		outPath, _ := cmd.Flags().GetString("out")
		matrixPath, _ := cmd.Flags().GetString("matrix")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		exp := export.New(st, ledger.New(st))

		if matrixPath != "" {
			if err := exp.CoverageMatrix(ctx, projectID, matrixPath); err != nil {
				return eris.Wrap(err, "export")
			}
			fmt.Fprintf(os.Stderr, "coverage matrix written to %s\n", matrixPath)
		}

		var doc string
		if asHTML {
			doc, err = exp.HTML(ctx, projectID)
		} else {
			doc, err = exp.Markdown(ctx, projectID)
		}
		if err != nil {
			return eris.Wrap(err, "export")
		}

		if outPath == "" {
			fmt.Print(doc)
			return nil
		}
		if err := os.WriteFile(outPath, []byte(doc), 0o644); err != nil {
			return eris.Wrapf(err, "export: write %s", outPath)
		}
		fmt.Fprintf(os.Stderr, "proposal written to %s\n", outPath)
		return nil
	},
}

func init() {
	exportCmd.Flags().Bool("html", false, "render HTML instead of markdown")
	exportCmd.Flags().String("out", "", "write the document to a file instead of stdout")
	exportCmd.Flags().String("matrix", "", "also write the coverage matrix XLSX to this path")
	rootCmd.AddCommand(exportCmd)
}
