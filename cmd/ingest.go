package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/grantline/proposal-cli/internal/ingest"
	"github.com/grantline/proposal-cli/internal/ledger"
	"github.com/grantline/proposal-cli/internal/model"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <project-id>",
	Short: "Add documents to a project's bundle",
	Long:  "Ingests files and URLs, detects version conflicts against earlier documents on the same topic, and recomputes superseded flags.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		projectID := args[0]

		files, _ := cmd.Flags().GetStringSlice("file")
		urls, _ := cmd.Flags().GetStringSlice("url")
		if len(files) == 0 && len(urls) == 0 {
			return eris.New("at least one --file or --url is required")
		}

		var inputs []ingest.Input
		for _, f := range files {
			inputs = append(inputs, ingest.Input{Kind: model.SourceFile, Path: f})
		}
		for _, u := range urls {
			inputs = append(inputs, ingest.Input{Kind: model.SourceURL, URL: u})
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		led := ledger.New(st)
		ing := initIngester(st, led)
		runner := initRunner(st)

		input, _ := json.Marshal(map[string]any{"inputs": inputs})
		outcome, err := runner.Execute(ctx, projectID, "ingest", input, func(ctx context.Context) (json.RawMessage, error) {
			result, err := ing.Ingest(ctx, projectID, inputs)
			if err != nil {
				return nil, err
			}
			return json.Marshal(result)
		})
		if err != nil {
			return eris.Wrap(err, "ingest")
		}

		fmt.Fprintf(os.Stderr, "run %s %s (via %s)\n", outcome.Run.ID, outcome.Run.Status, outcome.Via)
		os.Stdout.Write(outcome.Result)
		fmt.Println()
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringSlice("file", nil, "path to a document to ingest (repeatable)")
	ingestCmd.Flags().StringSlice("url", nil, "URL to fetch and ingest (repeatable)")
	rootCmd.AddCommand(ingestCmd)
}
