package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/grantline/proposal-cli/internal/ledger"
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Inspect and resolve the conflict ledger",
}

var conflictsListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List recorded conflicts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := ledger.New(st).List(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "conflicts list")
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No conflicts recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tKIND\tSTATUS\tPREVIOUS\tNEXT")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Key, e.Kind, e.Status, e.Previous.Name, e.Next.Name)
		}
		return w.Flush()
	},
}

var conflictsResolveCmd = &cobra.Command{
	Use:   "resolve <project-id> <key>",
	Short: "Mark a conflict resolved",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		note, _ := cmd.Flags().GetString("note")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return eris.Wrap(ledger.New(st).Resolve(ctx, args[0], args[1], note), "conflicts resolve")
	},
}

func init() {
	conflictsResolveCmd.Flags().String("note", "", "resolution note")
	conflictsCmd.AddCommand(conflictsListCmd)
	conflictsCmd.AddCommand(conflictsResolveCmd)
	rootCmd.AddCommand(conflictsCmd)
}
