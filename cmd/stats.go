package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/revlearn/internal/score"
)

var statsCmd = &cobra.Command{
	Use:   "stats [session-id]",
	Short: "List sessions or show a session's scores",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, repo, err := sessionRepo(cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		out := cmd.OutOrStdout()

		if len(args) == 0 {
			limit, _ := cmd.Flags().GetInt("limit")
			sessions, err := repo.ListSessions(ctx, limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions yet.")
				return nil
			}
			fmt.Fprintln(out, sessionTable(sessions))
			return nil
		}

		info, err := repo.GetSession(ctx, args[0])
		if err != nil {
			return err
		}
		records, err := repo.Records(ctx, info.ID)
		if err != nil {
			return err
		}
		blocks, err := repo.CompletedBlocks(ctx, info.ID)
		if err != nil {
			return err
		}

		status := "unfinished"
		if info.Finished() {
			status = "finished"
		}
		fmt.Fprintf(out, "Session %s\nSubject %s, file %s, %s, %d of its blocks completed\n",
			info.ID, info.Subject, info.FileName, status, len(blocks))
		if len(records) == 0 {
			fmt.Fprintln(out, "No trials recorded.")
			return nil
		}
		fmt.Fprintln(out, scoreTable(score.ByBlock(records)))
		return nil
	},
}

func init() {
	statsCmd.Flags().Int("limit", 20, "Maximum number of sessions to list")
}
