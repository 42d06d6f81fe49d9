package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/grantline/proposal-cli/internal/compliance"
	"github.com/grantline/proposal-cli/internal/model"
)

var tightenCmd = &cobra.Command{
	Use:   "tighten <project-id> <section-key>",
	Short: "Trim a section to its format limits and re-simulate",
	Long:  "Applies a single-shot truncation to the hard word limit, re-runs the compliance simulator, and persists the new content with its settings and result.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		projectID, key := args[0], args[1]

		words, _ := cmd.Flags().GetInt("words")
		pages, _ := cmd.Flags().GetFloat64("pages")
		spacing, _ := cmd.Flags().GetString("spacing")
		fontSize, _ := cmd.Flags().GetFloat64("font-size")
		margins, _ := cmd.Flags().GetString("margins")

		overrides := model.ComplianceSettings{
			HardWordLimit: words,
			SoftPageLimit: pages,
			Spacing:       spacing,
			FontSize:      fontSize,
			Margins:       margins,
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		tightener := compliance.NewTightener(compliance.NewSimulator(cfg.Compliance), st)
		runner := initRunner(st)

		input, _ := json.Marshal(map[string]any{"section": key, "overrides": overrides})
		outcome, err := runner.Execute(ctx, projectID, "tighten", input, func(ctx context.Context) (json.RawMessage, error) {
			result, err := tightener.Tighten(ctx, projectID, key, overrides)
			if err != nil {
				return nil, err
			}
			return json.Marshal(result)
		})
		if err != nil {
			return eris.Wrap(err, "tighten")
		}

		fmt.Fprintf(os.Stderr, "run %s %s (via %s)\n", outcome.Run.ID, outcome.Run.Status, outcome.Via)
		os.Stdout.Write(outcome.Result)
		fmt.Println()
		return nil
	},
}

func init() {
	tightenCmd.Flags().Int("words", 0, "hard word limit override")
	tightenCmd.Flags().Float64("pages", 0, "soft page limit override")
	tightenCmd.Flags().String("spacing", "", "spacing override (single, 1.5, double)")
	tightenCmd.Flags().Float64("font-size", 0, "font size override in points")
	tightenCmd.Flags().String("margins", "", "margins override (normal, narrow, wide)")
	rootCmd.AddCommand(tightenCmd)
}
