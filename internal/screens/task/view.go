package task

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/revlearn/internal/schedule"
	"github.com/abhisek/revlearn/internal/stimseq"
	"github.com/abhisek/revlearn/internal/ui/components"
	"github.com/abhisek/revlearn/internal/ui/theme"
)

// Feedback texts.
const (
	CorrectText         = "+1"
	IncorrectText       = "0"
	PracticeCorrectText = "Correct! +1"
	PracticeWrongText   = "Incorrect. 0"
	TimeoutText         = "Too slow! Please respond faster."
	ForceCorrectText    = "Press the correct key to continue."

	continueText = "Press space to continue"
)

// previewPerRow is how many images a preview lays out per row.
const previewPerRow = 3

func (s *Screen) View(width, height int) string {
	if s.err != nil {
		return center(width, height, theme.Incorrect.Render("Something went wrong.")+"\n\n"+
			theme.Hint.Render(s.err.Error()))
	}
	if s.idx >= len(s.steps) {
		return ""
	}

	st := s.Step()
	switch st.Kind {
	case schedule.KindInstructions:
		return s.viewSlide(width, height)
	case schedule.KindPreview:
		return s.viewPreview(width, height, st)
	case schedule.KindFixation:
		return center(width, height, theme.Fixation.Render("+"))
	case schedule.KindTrial:
		if s.feedback != nil {
			return s.viewFeedback(width, height, st)
		}
		return s.viewTrial(width, height, st)
	case schedule.KindGate:
		headline, body := s.cue.Message.Text()
		return center(width, height, theme.Title.Render(headline)+"\n\n"+
			theme.Body.Render(body)+"\n\n"+hint(continueText))
	case schedule.KindSummary:
		return s.viewSummary(width, height, st)
	case schedule.KindSaving:
		return center(width, height, theme.Body.Render(
			"Saving data... please do not close this window. This will take a few seconds."))
	case schedule.KindEnd:
		return s.viewEnd(width, height)
	}
	return ""
}

func (s *Screen) viewSlide(width, height int) string {
	if s.slide >= len(s.slides) {
		return ""
	}
	body := lipgloss.NewStyle().
		Width(min(width-8, 90)).
		Foreground(theme.Text).
		Render(s.slides[s.slide])
	pos := theme.Hint.Render(fmt.Sprintf("%d / %d", s.slide+1, len(s.slides)))
	return center(width, height, body+"\n\n"+hint(continueText)+"   "+pos)
}

func (s *Screen) viewPreview(width, height int, st schedule.Step) string {
	var b strings.Builder
	if st.Label != "" {
		b.WriteString(theme.Title.Render(st.Label + "."))
		b.WriteString("\n\n")
	}
	b.WriteString(theme.Body.Render("Take some time to identify the images below:"))
	b.WriteString("\n\n")
	b.WriteString(s.previewGrid(st.Images))
	b.WriteString("\n\n")
	b.WriteString(hint(continueText))
	return center(width, height, b.String())
}

// previewGrid lays images out previewPerRow to a row.
func (s *Screen) previewGrid(images []stimseq.Stimulus) string {
	var rows []string
	for start := 0; start < len(images); start += previewPerRow {
		end := min(start+previewPerRow, len(images))
		var cells []string
		for _, img := range images[start:end] {
			cells = append(cells, theme.Thumbnail.Render(img.ImagePath(s.opts.ImageRoot)))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Center, rows...)
}

func (s *Screen) viewTrial(width, height int, st schedule.Step) string {
	stim := theme.Stimulus.Render(st.Stimulus.ImagePath(s.opts.ImageRoot))

	caps := make([]string, len(s.respond))
	for i, b := range s.respond {
		caps[i] = theme.KeyCap.Render(b.Help().Key)
	}
	keys := lipgloss.JoinHorizontal(lipgloss.Center, caps...)

	content := stim + "\n\n" + keys
	if total := s.blockTrials(st.BlockID); total > 0 {
		bar := components.NewProgressBar(st.Trial+1, total, min(width-8, 40))
		content += "\n\n" + bar.View()
	}
	return center(width, height, content)
}

func (s *Screen) viewFeedback(width, height int, st schedule.Step) string {
	rec := s.feedback
	var text string
	switch {
	case rec.TimedOut():
		text = theme.Incorrect.Render(TimeoutText)
	case rec.Correct && st.Practice:
		text = theme.Correct.Render(PracticeCorrectText)
	case rec.Correct:
		text = theme.Correct.Render(CorrectText)
	case st.Practice:
		text = theme.Incorrect.Render(PracticeWrongText)
	default:
		text = theme.Incorrect.Render(IncorrectText)
	}
	if s.holding {
		text += "\n\n" + hint(ForceCorrectText)
	}
	return center(width, height, text)
}

func (s *Screen) viewSummary(width, height int, st schedule.Step) string {
	msg := theme.Title.Render(fmt.Sprintf("End of block - you earned %s points!",
		theme.Points.Render(fmt.Sprint(s.cue.BlockPoints))))
	var wait string
	if st.Wait > 0 {
		wait = fmt.Sprintf("You have a %s break before the next block begins, but you can press space to continue now.",
			breakLength(st.Wait.Minutes()))
	} else {
		wait = continueText + "."
	}
	return center(width, height, msg+"\n\n"+theme.Body.Render(wait))
}

func (s *Screen) viewEnd(width, height int) string {
	text := theme.Title.Render("Data saved.")
	if s.cue.EndLink != "" {
		text += "\n\n" + theme.Body.Render("Open the link below to proceed to the next task:") +
			"\n\n" + theme.Points.Render(s.cue.EndLink)
	}
	return center(width, height, text+"\n\n"+hint("Press space to exit"))
}

// blockTrials counts the trials of a block in the timeline.
func (s *Screen) blockTrials(blockID int) int {
	n := 0
	for _, st := range s.steps {
		if st.IsTrial() && st.BlockID == blockID {
			n++
		}
	}
	return n
}

func breakLength(minutes float64) string {
	if minutes >= 1 && minutes == float64(int(minutes)) {
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minute", int(minutes))
	}
	return fmt.Sprintf("%.0f second", minutes*60)
}

func hint(s string) string {
	return theme.Hint.Render(s)
}

func center(width, height int, content string) string {
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		lipgloss.NewStyle().Align(lipgloss.Center).Render(content))
}
