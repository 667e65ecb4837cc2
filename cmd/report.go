package cmd

import (
	"fmt"
	"strconv"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/abhisek/revlearn/internal/score"
	"github.com/abhisek/revlearn/internal/store"
	"github.com/abhisek/revlearn/internal/ui/theme"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.Border)).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(theme.Primary).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

// scoreTable renders per-block scores with a total row.
func scoreTable(scores []score.BlockScore) string {
	t := newTable("Block", "Trials", "Points", "Accuracy", "Timeouts", "Reversals")
	var total score.BlockScore
	for _, s := range scores {
		t.Row(
			strconv.Itoa(s.BlockID),
			strconv.Itoa(s.Trials),
			strconv.Itoa(s.Points),
			fmt.Sprintf("%.0f%%", s.Accuracy()*100),
			strconv.Itoa(s.Timeouts),
			strconv.Itoa(s.Reversals),
		)
		total.Trials += s.Trials
		total.Points += s.Points
		total.Timeouts += s.Timeouts
		total.Reversals += s.Reversals
	}
	t.Row(
		"All",
		strconv.Itoa(total.Trials),
		strconv.Itoa(total.Points),
		fmt.Sprintf("%.0f%%", total.Accuracy()*100),
		strconv.Itoa(total.Timeouts),
		strconv.Itoa(total.Reversals),
	)
	return t.Render()
}

// sessionTable renders a session listing.
func sessionTable(sessions []store.SessionInfo) string {
	t := newTable("Session", "Subject", "File", "Started", "Status")
	for _, s := range sessions {
		status := "unfinished"
		if s.Finished() {
			status = "finished " + s.FinishedAt.Local().Format(time.DateTime)
		}
		t.Row(s.ID, s.Subject, s.FileName, s.StartedAt.Local().Format(time.DateTime), status)
	}
	return t.Render()
}
