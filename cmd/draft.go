package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/grantline/proposal-cli/internal/draft"
)

var draftCmd = &cobra.Command{
	Use:   "draft <project-id> [section-key...]",
	Short: "Draft section content slot by slot",
	Long:  "Generates content for the named sections (or all of them), grounding each slot in mined facts. Failed slots degrade to placeholders instead of failing the section.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		projectID := args[0]
		keys := args[1:]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		drafter := draft.New(st, initContentGen(), initKB(), cfg.Draft)
		runner := initRunner(st)

		input, _ := json.Marshal(map[string]any{"sections": keys})
		outcome, err := runner.Execute(ctx, projectID, "draft", input, func(ctx context.Context) (json.RawMessage, error) {
			drafts, err := drafter.DraftAll(ctx, projectID, keys)
			if err != nil {
				return nil, err
			}
			return json.Marshal(drafts)
		})
		if err != nil {
			return eris.Wrap(err, "draft")
		}

		fmt.Fprintf(os.Stderr, "run %s %s (via %s)\n", outcome.Run.ID, outcome.Run.Status, outcome.Via)
		os.Stdout.Write(outcome.Result)
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(draftCmd)
}
