package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/grantline/proposal-cli/internal/facts"
)

var factsCmd = &cobra.Command{
	Use:   "facts <project-id>",
	Short: "Mine reusable facts from the bundle",
	Long:  "Runs the metadata pass over provenance and, when a generation backend is configured, the model-backed slot extraction pass with evidence verification.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		projectID := args[0]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		miner := facts.New(st, initContentGen(), cfg.Facts)
		runner := initRunner(st)

		outcome, err := runner.Execute(ctx, projectID, "facts", nil, func(ctx context.Context) (json.RawMessage, error) {
			doc, err := miner.Mine(ctx, projectID)
			if err != nil {
				return nil, err
			}
			return json.Marshal(doc)
		})
		if err != nil {
			return eris.Wrap(err, "facts")
		}

		fmt.Fprintf(os.Stderr, "run %s %s (via %s)\n", outcome.Run.ID, outcome.Run.Status, outcome.Via)
		os.Stdout.Write(outcome.Result)
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(factsCmd)
}
