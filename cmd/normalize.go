package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/grantline/proposal-cli/internal/ledger"
	"github.com/grantline/proposal-cli/internal/normalize"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <project-id>",
	Short: "Rebuild the canonical requirement document from the bundle",
	Long:  "Extracts sections, submission limits, and eligibility conditions from every bundle document, oldest first, recording disagreements in the conflict ledger.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		projectID := args[0]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		norm := normalize.New(st, ledger.New(st))
		runner := initRunner(st)

		outcome, err := runner.Execute(ctx, projectID, "normalize", nil, func(ctx context.Context) (json.RawMessage, error) {
			doc, err := norm.Normalize(ctx, projectID)
			if err != nil {
				return nil, err
			}
			return json.Marshal(doc)
		})
		if err != nil {
			return eris.Wrap(err, "normalize")
		}

		fmt.Fprintf(os.Stderr, "run %s %s (via %s)\n", outcome.Run.ID, outcome.Run.Status, outcome.Via)
		os.Stdout.Write(outcome.Result)
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
}
