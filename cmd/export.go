package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/revlearn/internal/export"
	"github.com/abhisek/revlearn/internal/session"
	"github.com/abhisek/revlearn/internal/trial"
)

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Write a stored session's data files again",
	Long: `Export rebuilds the data files of a session from the database: one
file per completed block and one for the whole session.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		formatName, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")

		format, err := export.ParseFormat(formatName)
		if err != nil {
			return err
		}

		st, repo, err := sessionRepo(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

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

		sink := &export.DirSink{Dir: out}
		write := func(scope string, recs []trial.Record) error {
			blob, err := export.Encode(format, scope, recs)
			if err != nil {
				return err
			}
			if err := sink.Save(ctx, blob); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d trials)\n", blob.Name, len(recs))
			return nil
		}

		for _, b := range blocks {
			if err := write(session.BlockScope(info.FileName, b.BlockID), trial.FilterBlock(records, b.BlockID)); err != nil {
				return err
			}
		}
		return write(info.FileName, records)
	},
}

func init() {
	exportCmd.Flags().String("format", "csv", "Output format: csv or json")
	exportCmd.Flags().String("out", "data", "Directory to write files to")
}
