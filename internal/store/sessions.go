package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/revlearn/internal/trial"
)

// SessionInfo describes one participant session.
type SessionInfo struct {
	ID           string
	Subject      string
	FileName     string
	SequencePath string
	Seed         uint64

	// Settings is the JSON-encoded task configuration the session ran with.
	Settings string

	StartedAt  time.Time
	FinishedAt *time.Time
}

// Finished reports whether the session reached its end step.
func (s SessionInfo) Finished() bool {
	return s.FinishedAt != nil
}

// BlockCheckpoint marks a block whose records were finalized.
type BlockCheckpoint struct {
	BlockID     int
	Points      int
	CompletedAt time.Time
}

// ExportInfo is a stored export blob.
type ExportInfo struct {
	ID          int64
	Name        string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// SessionRepo persists sessions, their trial records, block checkpoints and
// exports.
type SessionRepo struct {
	drv *entsql.Driver
	now func() time.Time
}

func (r *SessionRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func (r *SessionRepo) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CreateSession inserts a new session row.
func (r *SessionRepo) CreateSession(ctx context.Context, info SessionInfo) error {
	settings := info.Settings
	if settings == "" {
		settings = "{}"
	}
	q, args := r.builder().
		Insert(tableSessions).
		Columns("id", "subject", "file_name", "sequence_path", "seed", "settings", "started_at").
		Values(info.ID, info.Subject, info.FileName, info.SequencePath, int64(info.Seed), settings, millis(info.StartedAt)).
		Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

var sessionColumns = []string{"id", "subject", "file_name", "sequence_path", "seed", "settings", "started_at", "finished_at"}

func scanSession(rows *entsql.Rows) (SessionInfo, error) {
	var (
		info     SessionInfo
		seed     int64
		started  int64
		finished sql.NullInt64
	)
	if err := rows.Scan(&info.ID, &info.Subject, &info.FileName, &info.SequencePath, &seed, &info.Settings, &started, &finished); err != nil {
		return SessionInfo{}, err
	}
	info.Seed = uint64(seed)
	info.StartedAt = fromMillis(started)
	if finished.Valid {
		t := fromMillis(finished.Int64)
		info.FinishedAt = &t
	}
	return info, nil
}

// GetSession returns the session with the given id or ErrNotFound.
func (r *SessionRepo) GetSession(ctx context.Context, id string) (*SessionInfo, error) {
	b := r.builder()
	t := b.Table(tableSessions)
	q, args := b.Select(sessionColumns...).From(t).Where(entsql.EQ("id", id)).Query()

	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, q, args, rows); err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query session: %w", err)
		}
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	info, err := scanSession(rows)
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &info, nil
}

// ListSessions returns sessions newest first. limit <= 0 returns all.
func (r *SessionRepo) ListSessions(ctx context.Context, limit int) ([]SessionInfo, error) {
	b := r.builder()
	sel := b.Select(sessionColumns...).From(b.Table(tableSessions)).OrderBy(entsql.Desc("started_at"))
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	q, args := sel.Query()

	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, q, args, rows); err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		info, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// FinishSession stamps the session's end time.
func (r *SessionRepo) FinishSession(ctx context.Context, sessionID string, at time.Time) error {
	q, args := r.builder().
		Update(tableSessions).
		Set("finished_at", millis(at)).
		Where(entsql.EQ("id", sessionID)).
		Query()

	var res sql.Result
	if err := r.drv.Exec(ctx, q, args, &res); err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return nil
}

// DeleteSession removes a session and everything recorded for it.
func (r *SessionRepo) DeleteSession(ctx context.Context, sessionID string) error {
	q, args := r.builder().Delete(tableSessions).Where(entsql.EQ("id", sessionID)).Query()
	var res sql.Result
	if err := r.drv.Exec(ctx, q, args, &res); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return nil
}

// AppendTrial stores one trial record.
func (r *SessionRepo) AppendTrial(ctx context.Context, sessionID string, rec trial.Record) error {
	var response, rt any
	if rec.Response != nil {
		response = *rec.Response
	}
	if rec.ReactionTime != nil {
		rt = rec.ReactionTime.Milliseconds()
	}

	q, args := r.builder().
		Insert(tableTrials).
		Columns(
			"session_id", "block_id", "trial_index", "folder", "stimulus_id", "mode", "phase",
			"response", "correct_response", "correct", "rt_ms",
			"threshold", "consecutive_correct", "reversed", "reversals", "recorded_at",
		).
		Values(
			sessionID, rec.BlockID, rec.TrialIndex, rec.Folder, rec.StimulusID, string(rec.Mode), rec.Phase,
			response, rec.CorrectResponse, boolInt(rec.Correct), rt,
			rec.Threshold, rec.ConsecutiveCorrect, boolInt(rec.Reversed), rec.Reversals, millis(rec.RecordedAt),
		).
		Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("insert trial record: %w", err)
	}
	return nil
}

// DeleteBlockTrials drops the trial records of one block, so an
// interrupted block can run again from its first trial.
func (r *SessionRepo) DeleteBlockTrials(ctx context.Context, sessionID string, blockID int) (int64, error) {
	q, args := r.builder().
		Delete(tableTrials).
		Where(entsql.And(entsql.EQ("session_id", sessionID), entsql.EQ("block_id", blockID))).
		Query()
	var res sql.Result
	if err := r.drv.Exec(ctx, q, args, &res); err != nil {
		return 0, fmt.Errorf("delete block trials: %w", err)
	}
	return res.RowsAffected()
}

// Records returns every trial record of a session in insertion order.
func (r *SessionRepo) Records(ctx context.Context, sessionID string) ([]trial.Record, error) {
	b := r.builder()
	q, args := b.Select(
		"block_id", "trial_index", "folder", "stimulus_id", "mode", "phase",
		"response", "correct_response", "correct", "rt_ms",
		"threshold", "consecutive_correct", "reversed", "reversals", "recorded_at",
	).
		From(b.Table(tableTrials)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("id").
		Query()

	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, q, args, rows); err != nil {
		return nil, fmt.Errorf("query trial records: %w", err)
	}
	defer rows.Close()

	var out []trial.Record
	for rows.Next() {
		var (
			rec                         trial.Record
			mode                        string
			response, rt                sql.NullInt64
			correct, reversed, recorded int64
		)
		err := rows.Scan(
			&rec.BlockID, &rec.TrialIndex, &rec.Folder, &rec.StimulusID, &mode, &rec.Phase,
			&response, &rec.CorrectResponse, &correct, &rt,
			&rec.Threshold, &rec.ConsecutiveCorrect, &reversed, &rec.Reversals, &recorded,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trial record: %w", err)
		}
		rec.SessionID = sessionID
		rec.Mode = trial.Mode(mode)
		rec.Correct = correct != 0
		rec.Reversed = reversed != 0
		rec.RecordedAt = fromMillis(recorded)
		if response.Valid {
			k := int(response.Int64)
			rec.Response = &k
		}
		if rt.Valid {
			d := time.Duration(rt.Int64) * time.Millisecond
			rec.ReactionTime = &d
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CompleteBlock checkpoints a finalized block. Repeated calls keep the
// latest points.
func (r *SessionRepo) CompleteBlock(ctx context.Context, sessionID string, blockID, points int) error {
	q, args := r.builder().
		Insert(tableBlocks).
		Columns("session_id", "block_id", "points", "completed_at").
		Values(sessionID, blockID, points, millis(r.clock())).
		OnConflict(
			entsql.ConflictColumns("session_id", "block_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("checkpoint block %d: %w", blockID, err)
	}
	return nil
}

// CompletedBlocks lists a session's checkpoints in completion order.
func (r *SessionRepo) CompletedBlocks(ctx context.Context, sessionID string) ([]BlockCheckpoint, error) {
	b := r.builder()
	q, args := b.Select("block_id", "points", "completed_at").
		From(b.Table(tableBlocks)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("completed_at", "block_id").
		Query()

	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, q, args, rows); err != nil {
		return nil, fmt.Errorf("query completed blocks: %w", err)
	}
	defer rows.Close()

	var out []BlockCheckpoint
	for rows.Next() {
		var (
			cp BlockCheckpoint
			at int64
		)
		if err := rows.Scan(&cp.BlockID, &cp.Points, &at); err != nil {
			return nil, fmt.Errorf("scan completed block: %w", err)
		}
		cp.CompletedAt = fromMillis(at)
		out = append(out, cp)
	}
	return out, rows.Err()
}

// RecordExport keeps a copy of an export blob.
func (r *SessionRepo) RecordExport(ctx context.Context, sessionID, name, contentType string, data []byte) error {
	q, args := r.builder().
		Insert(tableExports).
		Columns("session_id", "name", "content_type", "data", "created_at").
		Values(sessionID, name, contentType, data, millis(r.clock())).
		Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("insert export %s: %w", name, err)
	}
	return nil
}

// Exports lists a session's stored exports, oldest first.
func (r *SessionRepo) Exports(ctx context.Context, sessionID string) ([]ExportInfo, error) {
	b := r.builder()
	q, args := b.Select("id", "name", "content_type", "data", "created_at").
		From(b.Table(tableExports)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("id").
		Query()

	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, q, args, rows); err != nil {
		return nil, fmt.Errorf("query exports: %w", err)
	}
	defer rows.Close()

	var out []ExportInfo
	for rows.Next() {
		var (
			e  ExportInfo
			at int64
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.ContentType, &e.Data, &at); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		e.CreatedAt = fromMillis(at)
		out = append(out, e)
	}
	return out, rows.Err()
}
