package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/revlearn/internal/export"
	"github.com/abhisek/revlearn/internal/reversal"
	"github.com/abhisek/revlearn/internal/session"
	"github.com/abhisek/revlearn/internal/stimseq"
	"github.com/abhisek/revlearn/internal/store"
)

// buildSinks assembles the export chain configured under export.*. The
// returned func releases sink clients.
func buildSinks(ctx context.Context, sessionID string, repo *store.SessionRepo) (export.Multi, export.Notifier, func(), error) {
	ec := cfg.Export
	var (
		sinks    export.Multi
		notifier export.Notifier
		closers  []func() error
	)
	cleanup := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	if ec.Dir != "" {
		sinks = append(sinks, &export.DirSink{Dir: ec.Dir})
	}
	if ec.Store && repo != nil {
		sinks = append(sinks, &export.StoreSink{Log: repo, SessionID: sessionID})
	}

	client := &http.Client{Timeout: ec.HTTP.Timeout}
	if ec.HTTP.SaveURL != "" {
		sinks = append(sinks, export.WithRetry(&export.HTTPSink{
			Client:  client,
			SaveURL: ec.HTTP.SaveURL,
			DataDir: ec.HTTP.DataDir,
		}, ec.Retry))
	}
	// Uploads refer to files the save above has written.
	if ec.HTTP.UploadURL != "" {
		sinks = append(sinks, export.WithRetry(&export.HTTPUploader{
			Client:    client,
			UploadURL: ec.HTTP.UploadURL,
			DataDir:   ec.HTTP.DataDir,
		}, ec.Retry))
	}
	if ec.HTTP.MailURL != "" {
		notifier = export.WithRetryNotifier(&export.HTTPNotifier{
			Client:  client,
			MailURL: ec.HTTP.MailURL,
		}, ec.Retry)
	}

	if ec.GCS.Bucket != "" {
		gcs, err := export.NewGCSSink(ctx, export.GCSConfig{
			Bucket:      ec.GCS.Bucket,
			Prefix:      ec.GCS.Prefix,
			Credentials: ec.GCS.Credentials,
			Emulator:    ec.GCS.Emulator,
		})
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		closers = append(closers, gcs.Close)
		sinks = append(sinks, export.WithRetry(gcs, ec.Retry))
	}

	if len(sinks) == 0 {
		cleanup()
		return nil, nil, nil, errors.New("no export sink configured: set export.dir, export.store, export.http.save_url or export.gcs.bucket")
	}
	return sinks, notifier, cleanup, nil
}

// prepared is a session ready to play.
type prepared struct {
	engine     *session.Engine
	dispatcher *export.Dispatcher
	start      int
	cleanup    func()
}

// newSession plans a fresh session for subject and records it in the store.
func newSession(ctx context.Context, repo *store.SessionRepo, seqPath, subject string, log *zap.Logger) (*prepared, error) {
	seq, err := stimseq.LoadFile(seqPath)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(seqPath)
	if err != nil {
		return nil, fmt.Errorf("resolve sequence path: %w", err)
	}

	id := uuid.New().String()
	p, err := assemble(ctx, repo, seq, session.Options{SessionID: id, Subject: subject}, log)
	if err != nil {
		return nil, err
	}

	settings, err := json.Marshal(cfg.Task)
	if err != nil {
		p.cleanup()
		return nil, fmt.Errorf("encode task settings: %w", err)
	}
	if repo != nil {
		err = repo.CreateSession(ctx, store.SessionInfo{
			ID:           p.engine.ID(),
			Subject:      p.engine.Subject(),
			FileName:     p.engine.FileName(),
			SequencePath: abs,
			Seed:         cfg.Task.Seed,
			Settings:     string(settings),
			StartedAt:    time.Now(),
		})
		if err != nil {
			p.cleanup()
			return nil, err
		}
	}
	log.Info("Session created",
		zap.String("session", p.engine.ID()),
		zap.String("subject", p.engine.Subject()),
		zap.Int("steps", len(p.engine.Steps())),
	)
	return p, nil
}

// resumeSession rebuilds an interrupted session from the store. The task
// settings it started with replace the loaded ones.
func resumeSession(ctx context.Context, repo *store.SessionRepo, id string, log *zap.Logger) (*prepared, error) {
	info, err := repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if info.Finished() {
		return nil, fmt.Errorf("session %s already finished", id)
	}
	if info.Settings != "" {
		if err := json.Unmarshal([]byte(info.Settings), &cfg.Task); err != nil {
			return nil, fmt.Errorf("decode stored task settings: %w", err)
		}
	}

	seq, err := stimseq.LoadFile(info.SequencePath)
	if err != nil {
		return nil, err
	}
	p, err := assemble(ctx, repo, seq, session.Options{
		SessionID: info.ID,
		Subject:   info.Subject,
		FileName:  info.FileName,
	}, log)
	if err != nil {
		return nil, err
	}

	records, err := repo.Records(ctx, id)
	if err != nil {
		p.cleanup()
		return nil, err
	}
	checkpoints, err := repo.CompletedBlocks(ctx, id)
	if err != nil {
		p.cleanup()
		return nil, err
	}
	completed := make([]int, len(checkpoints))
	done := make(map[int]bool)
	for i, c := range checkpoints {
		completed[i] = c.BlockID
		done[c.BlockID] = true
	}

	p.start, err = p.engine.Restore(records, completed)
	if err != nil {
		p.cleanup()
		return nil, err
	}

	// Trials of the interrupted block run again; drop their old rows.
	dropped := make(map[int]bool)
	for _, r := range records {
		if done[r.BlockID] || dropped[r.BlockID] {
			continue
		}
		dropped[r.BlockID] = true
		n, err := repo.DeleteBlockTrials(ctx, id, r.BlockID)
		if err != nil {
			p.cleanup()
			return nil, err
		}
		log.Info("Discarded partial block", zap.Int("block", r.BlockID), zap.Int64("trials", n))
	}

	log.Info("Session resumed",
		zap.String("session", id),
		zap.Ints("completed_blocks", completed),
		zap.Int("start_step", p.start),
	)
	return p, nil
}

// assemble wires the export chain and the engine.
func assemble(ctx context.Context, repo *store.SessionRepo, seq *stimseq.Sequence, opts session.Options, log *zap.Logger) (*prepared, error) {
	sinks, notifier, closeSinks, err := buildSinks(ctx, opts.SessionID, repo)
	if err != nil {
		return nil, err
	}
	format, err := export.ParseFormat(cfg.Export.Format)
	if err != nil {
		closeSinks()
		return nil, err
	}

	policy, err := reversal.NewPolicy(reversal.NewRand(cfg.Task.Seed), len(cfg.Task.Keys))
	if err != nil {
		closeSinks()
		return nil, err
	}

	dispatcher := export.NewDispatcher(ctx, format, sinks, notifier, log)
	opts.Exporter = dispatcher
	opts.Logger = log
	if repo != nil {
		opts.Repo = repo
	}

	engine, err := session.New(seq, policy, cfg.Session(), opts)
	if err != nil {
		closeSinks()
		return nil, err
	}
	return &prepared{
		engine:     engine,
		dispatcher: dispatcher,
		cleanup:    closeSinks,
	}, nil
}

// drain waits for background exports and reports failures.
func (p *prepared) drain(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	defer p.cleanup()

	if err := p.dispatcher.Wait(ctx); err != nil {
		return fmt.Errorf("exports still pending after %s: %w", timeout, err)
	}
	if n := p.dispatcher.Failures(); n > 0 {
		return fmt.Errorf("%d export(s) failed; see the log for details", n)
	}
	return nil
}
