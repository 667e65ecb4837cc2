package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/revlearn/internal/schedule"
	"github.com/abhisek/revlearn/internal/stimseq"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the timeline a sequence produces",
	Long: `Plan loads a stimulus sequence, checks it against the task settings
and prints every step of the session timeline.`,
	Example: `  revlearn plan --sequence seq.csv
  revlearn plan --sequence seq.csv --block 3`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		seqPath, _ := cmd.Flags().GetString("sequence")
		blockID, _ := cmd.Flags().GetInt("block")

		seq, err := stimseq.LoadFile(seqPath)
		if err != nil {
			return err
		}
		if err := seq.Validate(len(cfg.Task.Keys)); err != nil {
			return err
		}
		steps, err := schedule.PlanSession(seq, cfg.Session().Schedule)
		if err != nil {
			return err
		}
		return printPlan(cmd.OutOrStdout(), steps, blockID)
	},
}

func init() {
	planCmd.Flags().String("sequence", "", "Stimulus sequence file (.csv, .json or .yaml)")
	planCmd.Flags().Int("block", 0, "Only show steps of this block")
	_ = planCmd.MarkFlagRequired("sequence")
}

// printPlan writes steps as a table followed by a trial count per block.
func printPlan(w io.Writer, steps []schedule.Step, blockID int) error {
	t := newTable("#", "Kind", "Block", "Trial", "Detail")
	trials := make(map[int]int)
	var order []int
	for _, st := range steps {
		if st.IsTrial() {
			if _, ok := trials[st.BlockID]; !ok {
				order = append(order, st.BlockID)
			}
			trials[st.BlockID]++
		}
		if blockID != 0 && st.BlockID != blockID {
			continue
		}
		trial := ""
		if st.IsTrial() {
			trial = strconv.Itoa(st.Trial + 1)
		}
		block := ""
		if st.BlockID != 0 {
			block = strconv.Itoa(st.BlockID)
		}
		t.Row(strconv.Itoa(st.Index), string(st.Kind), block, trial, stepDetail(st))
	}
	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}

	parts := make([]string, len(order))
	for i, id := range order {
		parts[i] = fmt.Sprintf("block %d: %d", id, trials[id])
	}
	_, err := fmt.Fprintf(w, "%d steps; trials per %s\n", len(steps), strings.Join(parts, ", "))
	return err
}

func stepDetail(st schedule.Step) string {
	switch st.Kind {
	case schedule.KindTrial:
		d := fmt.Sprintf("image %d/%d %s", st.Stimulus.Folder, st.Stimulus.ID, st.Mode)
		if st.Slot == schedule.NoSlot {
			d += fmt.Sprintf(" key=%d", st.FixedResponse)
		} else {
			d += fmt.Sprintf(" slot=%d", st.Slot)
		}
		if st.Phase > 0 {
			d += fmt.Sprintf(" phase=%d", st.Phase)
		}
		return d
	case schedule.KindPreview:
		label := st.Label
		if label == "" {
			label = "practice"
		}
		return fmt.Sprintf("%s, %d images", label, len(st.Images))
	case schedule.KindGate:
		return string(st.Gate) + " gate, wait " + st.Wait.String()
	case schedule.KindSummary, schedule.KindSaving:
		d := "wait " + st.Wait.String()
		if st.ExportBlock != 0 {
			d += fmt.Sprintf(", export block %d", st.ExportBlock)
		}
		return d
	case schedule.KindInstructions:
		switch st.Slides {
		case schedule.SlidesIntro:
			return "intro slides"
		case schedule.SlidesReversal:
			return "reversal slides"
		case schedule.SlidesMainTask:
			return "main task slides"
		}
	}
	return ""
}
