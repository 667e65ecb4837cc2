package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset <session-id>",
	Short: "Delete a session and its trials from the database",
	Long: `Reset removes a session with its trials, block checkpoints and stored
exports. Files already written by the export sinks are left alone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, repo, err := sessionRepo(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		if _, err := repo.GetSession(ctx, args[0]); err != nil {
			return err
		}
		if err := repo.DeleteSession(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
		return nil
	},
}
