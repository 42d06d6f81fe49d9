package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/grantline/proposal-cli/internal/ledger"
	"github.com/grantline/proposal-cli/internal/normalize"
)

var eligibilityCmd = &cobra.Command{
	Use:   "eligibility",
	Short: "Inspect and override eligibility conditions",
}

var eligibilityListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List extracted eligibility conditions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		items, err := normalize.New(st, ledger.New(st)).Eligibility(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "eligibility list")
		}
		if len(items) == 0 {
			fmt.Fprintln(os.Stderr, "No eligibility conditions extracted.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFATAL\tOVERRIDE\tTEXT")
		for _, item := range items {
			override := "-"
			if item.Override != nil {
				override = fmt.Sprintf("fatal=%v", item.Override.Fatal)
			}
			fmt.Fprintf(w, "%s\t%v\t%s\t%s\n", item.ID, item.EffectiveFatal(), override, item.Text)
		}
		return w.Flush()
	},
}

var eligibilityOverrideCmd = &cobra.Command{
	Use:   "override <project-id> <item-id>",
	Short: "Record an operator decision on an eligibility item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		clear, _ := cmd.Flags().GetBool("clear")
		fatal, _ := cmd.Flags().GetBool("fatal")
		note, _ := cmd.Flags().GetString("note")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		norm := normalize.New(st, ledger.New(st))
		if clear {
			return eris.Wrap(norm.ClearOverride(ctx, args[0], args[1]), "eligibility override")
		}
		return eris.Wrap(norm.Override(ctx, args[0], args[1], fatal, note), "eligibility override")
	},
}

func init() {
	eligibilityOverrideCmd.Flags().Bool("fatal", false, "mark the condition as fatal")
	eligibilityOverrideCmd.Flags().Bool("clear", false, "remove an existing override")
	eligibilityOverrideCmd.Flags().String("note", "", "reason for the override")
	eligibilityCmd.AddCommand(eligibilityListCmd)
	eligibilityCmd.AddCommand(eligibilityOverrideCmd)
	rootCmd.AddCommand(eligibilityCmd)
}
