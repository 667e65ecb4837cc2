package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/revlearn/internal/config"
	"github.com/abhisek/revlearn/internal/logging"
	"github.com/abhisek/revlearn/internal/reversal"
	"github.com/abhisek/revlearn/internal/score"
	"github.com/abhisek/revlearn/internal/session"
	"github.com/abhisek/revlearn/internal/store"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Play a session with a scripted agent",
	Long: `Simulate plays the whole timeline without a terminal UI. An agent
answers every trial and no waits are observed. Exports go to the local
sinks only; remote collectors and buckets are never contacted.`,
	Example: `  revlearn simulate --sequence seq.csv --agent winstay --seed 7
  revlearn simulate --sequence seq.csv --agent random --timeout-rate 10 --no-store`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().String("sequence", "", "Stimulus sequence file (.csv, .json or .yaml)")
	simulateCmd.Flags().String("subject", "sim", "Participant id for the simulated session")
	simulateCmd.Flags().String("agent", "winstay", "Agent strategy: winstay or random")
	simulateCmd.Flags().Int("timeout-rate", 0, "Percentage of trials the random agent lets time out")
	simulateCmd.Flags().Uint64("seed", 0, "Seed for the task and the agent (0 keeps task.seed)")
	simulateCmd.Flags().Bool("no-store", false, "Do not record the session in the database")
	_ = simulateCmd.MarkFlagRequired("sequence")
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	seqPath, _ := cmd.Flags().GetString("sequence")
	subject, _ := cmd.Flags().GetString("subject")
	agentName, _ := cmd.Flags().GetString("agent")
	timeoutRate, _ := cmd.Flags().GetInt("timeout-rate")
	seed, _ := cmd.Flags().GetUint64("seed")
	noStore, _ := cmd.Flags().GetBool("no-store")

	if seed != 0 {
		cfg.Task.Seed = seed
	}
	localOnly(cfg)

	agent, err := newAgent(agentName, cfg.Task.Seed, timeoutRate)
	if err != nil {
		return err
	}

	log, flush, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer flush()

	var repo *store.SessionRepo
	if !noStore {
		st, err := openStore(cmd)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
		repo = st.Sessions()
	} else {
		cfg.Export.Store = false
	}

	p, err := newSession(ctx, repo, seqPath, subject, log)
	if err != nil {
		return err
	}

	started := time.Now()
	runErr := session.Run(ctx, p.engine, agent, 0)
	drainErr := p.drain(exportDrainTimeout)
	if runErr != nil {
		return runErr
	}
	if drainErr != nil {
		return drainErr
	}

	log.Info("Simulation finished",
		zap.String("session", p.engine.ID()),
		zap.String("agent", agentName),
		zap.Duration("elapsed", time.Since(started)),
	)
	fmt.Println(scoreTable(score.ByBlock(p.engine.Records())))
	fmt.Printf("Session %s (%s): %d points\n", p.engine.ID(), p.engine.FileName(), p.engine.Points())
	return nil
}

// localOnly drops the remote sinks so simulated data never leaves the machine.
func localOnly(c *config.Config) {
	c.Export.HTTP.SaveURL = ""
	c.Export.HTTP.UploadURL = ""
	c.Export.HTTP.MailURL = ""
	c.Export.GCS.Bucket = ""
}

func newAgent(name string, seed uint64, timeoutRate int) (session.Agent, error) {
	// Agent draws come from a stream separate from the task's.
	rng := reversal.NewRand(seed + 1)
	if seed == 0 {
		rng = reversal.NewRand(0)
	}
	const rt = 450 * time.Millisecond
	switch name {
	case "winstay":
		return &session.WinStayAgent{Rand: rng, RT: rt}, nil
	case "random":
		if timeoutRate < 0 || timeoutRate > 100 {
			return nil, fmt.Errorf("--timeout-rate must be within 0..100, got %d", timeoutRate)
		}
		return &session.RandomAgent{Rand: rng, TimeoutRate: timeoutRate, RT: rt}, nil
	}
	return nil, fmt.Errorf("unknown agent %q (want winstay or random)", name)
}
