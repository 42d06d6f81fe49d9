package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage proposal projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new proposal project",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			return eris.New("--name is required")
		}
		meta, _ := cmd.Flags().GetStringToString("meta")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		project, err := st.CreateProject(ctx, name, meta)
		if err != nil {
			return eris.Wrap(err, "project create")
		}

		fmt.Println(project.ID)
		return nil
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <project-id>",
	Short: "Show a project and its bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		project, err := st.GetProject(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "project show")
		}
		bundle, err := st.ListBundle(ctx, args[0])
		if err != nil {
			return err
		}

		out := map[string]any{
			"project": project,
			"bundle":  bundle,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	projectCreateCmd.Flags().String("name", "", "project name")
	projectCreateCmd.Flags().StringToString("meta", nil, "project metadata key=value pairs")
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectShowCmd)
	rootCmd.AddCommand(projectCmd)
}
