package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/grantline/proposal-cli/internal/coverage"
	"github.com/grantline/proposal-cli/internal/draft"
	"github.com/grantline/proposal-cli/internal/model"
	"github.com/grantline/proposal-cli/internal/schema"
	"github.com/grantline/proposal-cli/internal/store"
)

var coverageCmd = &cobra.Command{
	Use:   "coverage <project-id>",
	Short: "Recompute coverage and the fix-next list",
	Long:  "Scores every requirement, ranks fix suggestions by value/effort, and persists the snapshot. --slots scores against the per-section slot registry instead of content presence.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		projectID := args[0]
		useSlots, _ := cmd.Flags().GetBool("slots")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		scorer := coverage.NewScorer(cfg.Coverage, st)
		runner := initRunner(st)

		outcome, err := runner.Execute(ctx, projectID, "coverage", nil, func(ctx context.Context) (json.RawMessage, error) {
			var doc *schema.Coverage
			var err error
			if useSlots {
				doc, err = scoreWithSlots(ctx, st, scorer, projectID)
			} else {
				doc, err = scorer.Score(ctx, projectID)
			}
			if err != nil {
				return nil, err
			}
			return json.Marshal(doc)
		})
		if err != nil {
			return eris.Wrap(err, "coverage")
		}

		fmt.Fprintf(os.Stderr, "run %s %s (via %s)\n", outcome.Run.ID, outcome.Run.Status, outcome.Via)
		os.Stdout.Write(outcome.Result)
		fmt.Println()
		return nil
	},
}

func scoreWithSlots(ctx context.Context, st store.Store, scorer *coverage.Scorer, projectID string) (*schema.Coverage, error) {
	sections, err := st.ListSections(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var factList []model.Fact
	raw, _, err := st.GetDocField(ctx, projectID, model.DocFacts)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		doc := &schema.Facts{SchemaVersion: schema.Version}
		if err := schema.Unmarshal(raw, doc); err != nil {
			return nil, eris.Wrap(err, "coverage: stored facts invalid")
		}
		factList = doc.Facts
	}

	slots := draft.RegistrySlots(sections, cfg.Draft.MaxSlots)
	return scorer.ScoreWithSlots(ctx, projectID, slots, factList)
}

func init() {
	coverageCmd.Flags().Bool("slots", false, "score against the per-section slot registry")
	rootCmd.AddCommand(coverageCmd)
}
