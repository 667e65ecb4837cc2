package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/revlearn/internal/app"
	"github.com/abhisek/revlearn/internal/logging"
	"github.com/abhisek/revlearn/internal/screen"
	"github.com/abhisek/revlearn/internal/screens/intake"
	"github.com/abhisek/revlearn/internal/screens/task"
	"github.com/abhisek/revlearn/internal/store"
)

// exportDrainTimeout bounds how long run waits for pending uploads on exit.
const exportDrainTimeout = 2 * time.Minute

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the task for a participant",
	Long: `Run plays the full task in the terminal.

Without --subject the participant id is asked for on screen. An interrupted
session continues from its last completed block with --resume <session-id>.`,
	Example: `  revlearn run --sequence seq.csv --subject P01
  revlearn run --resume 3f6c0d1e-...`,
	RunE: runTask,
}

func init() {
	runCmd.Flags().String("sequence", "", "Stimulus sequence file (.csv, .json or .yaml)")
	runCmd.Flags().String("subject", "", "Participant id")
	runCmd.Flags().String("resume", "", "Resume an unfinished session by id")
}

func runTask(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	seqPath, _ := cmd.Flags().GetString("sequence")
	subject, _ := cmd.Flags().GetString("subject")
	resumeID, _ := cmd.Flags().GetString("resume")

	if resumeID == "" && seqPath == "" {
		return errors.New("--sequence is required for a new session")
	}

	// The terminal belongs to the task; logs go to the file only.
	log, flush, err := logging.New(cfg.Log, nil)
	if err != nil {
		return err
	}
	defer flush()

	st, err := openStore(cmd)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	repo := st.Sessions()

	var (
		sess *prepared
		ts   *task.Screen
	)
	start := func(subject string) (screen.Screen, error) {
		p, err := newSession(ctx, repo, seqPath, subject, log)
		if err != nil {
			return nil, err
		}
		sess = p
		ts = newTaskScreen(cmd, p, log)
		return ts, nil
	}

	var initial screen.Screen
	switch {
	case resumeID != "":
		sess, err = resumeSession(ctx, repo, resumeID, log)
		if err != nil {
			return err
		}
		ts = newTaskScreen(cmd, sess, log)
		initial = ts
	case subject != "":
		initial, err = start(subject)
		if err != nil {
			return err
		}
	default:
		initial = intake.New(start)
	}

	runErr := app.Run(initial)
	if sess == nil {
		return runErr
	}

	drainErr := sess.drain(exportDrainTimeout)
	if drainErr != nil {
		log.Error("Export drain failed", zap.Error(drainErr))
	}

	switch {
	case ts.Err() != nil:
		fmt.Fprintf(os.Stderr, "Task stopped: %v\n", ts.Err())
		printResumeHint(sess)
	case !ts.Done():
		printResumeHint(sess)
	default:
		fmt.Printf("Session %s complete: %d points.\n", sess.engine.ID(), sess.engine.Points())
	}
	return errors.Join(runErr, drainErr)
}

func newTaskScreen(cmd *cobra.Command, p *prepared, log *zap.Logger) *task.Screen {
	t := cfg.Task
	return task.New(task.Options{
		Engine: p.engine,
		Keys:   t.Keys,
		Start:  p.start,
		Timing: task.Timing{
			Fixation: t.FixationDuration,
			Trial:    t.TrialDuration,
			Feedback: t.FeedbackDuration,
		},
		ForceCorrect: t.ForceCorrect,
		ImageRoot:    t.ImageRoot,
		Context:      cmd.Context(),
		Logger:       log.Named("task"),
	})
}

func printResumeHint(p *prepared) {
	fmt.Fprintf(os.Stderr, "Session %s is unfinished. Continue it with:\n  revlearn run --resume %s\n",
		p.engine.ID(), p.engine.ID())
}

// sessionRepo opens the store for commands that only read or edit sessions.
func sessionRepo(cmd *cobra.Command) (*store.Store, *store.SessionRepo, error) {
	st, err := openStore(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return st, st.Sessions(), nil
}
