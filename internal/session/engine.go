package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/revlearn/internal/block"
	"github.com/abhisek/revlearn/internal/practice"
	"github.com/abhisek/revlearn/internal/reversal"
	"github.com/abhisek/revlearn/internal/schedule"
	"github.com/abhisek/revlearn/internal/score"
	"github.com/abhisek/revlearn/internal/stimseq"
	"github.com/abhisek/revlearn/internal/trial"
)

var (
	ErrUnknownStep     = errors.New("unknown step")
	ErrWrongStepKind   = errors.New("wrong step kind")
	ErrAlreadyRecorded = errors.New("trial outcome already recorded")
	ErrOutOfOrder      = errors.New("trial outcome out of presentation order")
	ErrInvalidKey      = errors.New("response key outside alphabet")
	ErrBlockIncomplete = errors.New("block has unrecorded trials")
)

// Exporter receives finalized records. Calls must not block the engine.
type Exporter interface {
	Save(scope string, records []trial.Record)
	Mail(scope string)
}

// Repo persists engine progress for resumption.
type Repo interface {
	AppendTrial(ctx context.Context, sessionID string, rec trial.Record) error
	CompleteBlock(ctx context.Context, sessionID string, blockID, points int) error
	FinishSession(ctx context.Context, sessionID string, at time.Time) error
}

// Options carries the engine's identity and collaborators.
type Options struct {
	SessionID string
	Subject   string
	FileName  string

	Exporter Exporter
	Repo     Repo
	Logger   *zap.Logger
	Now      func() time.Time

	// Images must hold every image the timeline shows. Nil uses
	// Config.ImageRoot when it is a local directory and skips the check
	// otherwise.
	Images fs.FS
}

// Response is a participant's answer to a trial.
type Response struct {
	// Key is nil when the trial timed out.
	Key          *int
	ReactionTime *time.Duration
}

// Pressed builds a keypress response.
func Pressed(key int, rt time.Duration) Response {
	return Response{Key: &key, ReactionTime: &rt}
}

// Timeout builds a no-response outcome.
func Timeout() Response {
	return Response{}
}

// blockRun is the per-block scope: its reversal states and bookkeeping.
type blockRun struct {
	block block.Block
	kind  block.Kind

	// arenas holds the reversal states per phase.
	arenas    map[int]*block.Arena
	reversals map[int]int

	message  practice.Message
	finalized bool
}

// Engine runs one participant session over a planned timeline.
type Engine struct {
	id       string
	subject  string
	fileName string

	seq    *stimseq.Sequence
	policy *reversal.Policy
	cfg    Config
	steps  []schedule.Step
	blocks map[int]*blockRun

	records  []trial.Record
	pending  map[int]int
	recorded map[int]bool
	finished bool

	exporter Exporter
	repo     Repo
	log      *zap.Logger
	now      func() time.Time
}

// New plans the full timeline for seq and initializes the reversal states of
// every block. Configuration errors surface here, before any trial runs.
func New(seq *stimseq.Sequence, policy *reversal.Policy, cfg Config, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := seq.Validate(policy.Alphabet()); err != nil {
		return nil, fmt.Errorf("validate sequence: %w", err)
	}
	steps, err := schedule.PlanSession(seq, cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("plan session: %w", err)
	}

	e := &Engine{
		id:       opts.SessionID,
		subject:  opts.Subject,
		fileName: opts.FileName,
		seq:      seq,
		policy:   policy,
		cfg:      cfg,
		steps:    steps,
		blocks:   make(map[int]*blockRun),
		pending:  make(map[int]int),
		recorded: make(map[int]bool),
		exporter: opts.Exporter,
		repo:     opts.Repo,
		log:      opts.Logger,
		now:      opts.Now,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.id == "" {
		e.id = uuid.New().String()
	}
	if e.subject == "" {
		e.subject = e.id[:min(8, len(e.id))]
	}
	if e.fileName == "" {
		e.fileName = DefaultFileName(e.subject, e.now())
	}
	e.log = e.log.With(zap.String("session", e.id))

	for _, s := range steps {
		if s.BlockID == 0 || e.blocks[s.BlockID] != nil {
			continue
		}
		run, err := e.newBlockRun(s.BlockID)
		if err != nil {
			return nil, err
		}
		e.blocks[s.BlockID] = run
	}
	images := opts.Images
	if images == nil {
		if fi, err := os.Stat(cfg.ImageRoot); err == nil && fi.IsDir() {
			images = os.DirFS(cfg.ImageRoot)
		}
	}
	if images != nil {
		if err := e.checkImages(images); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// checkImages verifies the folder contents of every block against the
// stimulus ids its previews and trials show.
func (e *Engine) checkImages(fsys fs.FS) error {
	ids := make(map[int][]int)
	var order []int
	add := func(blockID, id int) {
		if _, ok := ids[blockID]; !ok {
			order = append(order, blockID)
		}
		if !slices.Contains(ids[blockID], id) {
			ids[blockID] = append(ids[blockID], id)
		}
	}
	for _, s := range e.steps {
		switch s.Kind {
		case schedule.KindTrial:
			add(s.BlockID, s.Stimulus.ID)
		case schedule.KindPreview:
			for _, img := range s.Images {
				add(s.BlockID, img.ID)
			}
		}
	}
	for _, id := range order {
		slices.Sort(ids[id])
		if err := block.CheckImages(fsys, e.blocks[id].block, ids[id]); err != nil {
			return err
		}
	}
	return nil
}

// DefaultFileName names session exports after the subject and start time.
// Runes other than letters, digits, '-' and '_' become '_' so the name is
// always a single path element.
func DefaultFileName(subject string, at time.Time) string {
	return fmt.Sprintf("%s_%s", fileSafe(subject), at.Format("20060102-150405"))
}

func fileSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, s)
}

func (e *Engine) newBlockRun(id int) (*blockRun, error) {
	b, err := block.Plan(e.seq, id)
	if err != nil {
		return nil, err
	}
	run := &blockRun{
		block:     b,
		kind:      schedule.BlockKind(id, e.cfg.Schedule),
		arenas:    make(map[int]*block.Arena),
		reversals: make(map[int]int),
	}
	switch run.kind {
	case block.KindAdaptive:
		run.arenas[0] = block.InitStates(e.policy, b.SetSize, e.cfg.FullRange)
	case block.KindReversalPractice:
		a := block.InitStates(e.policy, 1, e.cfg.PracticeFirstRange)
		if e.cfg.PracticeInitialThreshold > 0 {
			if err := a.SetThreshold(0, e.cfg.PracticeInitialThreshold); err != nil {
				return nil, err
			}
		}
		run.arenas[0] = a
	}
	return run, nil
}

// ID returns the session id.
func (e *Engine) ID() string { return e.id }

// Subject returns the participant id.
func (e *Engine) Subject() string { return e.subject }

// FileName returns the base name of session exports.
func (e *Engine) FileName() string { return e.fileName }

// Steps returns the planned timeline.
func (e *Engine) Steps() []schedule.Step { return e.steps }

// Records returns a copy of all records so far.
func (e *Engine) Records() []trial.Record {
	out := make([]trial.Record, len(e.records))
	copy(out, e.records)
	return out
}

// Points returns the running session total.
func (e *Engine) Points() int {
	return score.SessionPoints(e.records)
}

// Alphabet returns the number of response keys.
func (e *Engine) Alphabet() int {
	return e.policy.Alphabet()
}

// ReversalState returns the current state of a block's slot in a phase.
func (e *Engine) ReversalState(blockID, phase, slot int) (reversal.State, bool) {
	run := e.blocks[blockID]
	if run == nil || run.arenas[phase] == nil {
		return reversal.State{}, false
	}
	s, err := run.arenas[phase].State(slot)
	return s, err == nil
}

// Reversals returns the number of reversal events of a block phase.
func (e *Engine) Reversals(blockID, phase int) int {
	if run := e.blocks[blockID]; run != nil {
		return run.reversals[phase]
	}
	return 0
}

func (e *Engine) step(i int, kind schedule.Kind) (schedule.Step, error) {
	if i < 0 || i >= len(e.steps) {
		return schedule.Step{}, fmt.Errorf("%w: %d", ErrUnknownStep, i)
	}
	s := e.steps[i]
	if kind != "" && s.Kind != kind {
		return schedule.Step{}, fmt.Errorf("%w: step %d is %s, want %s", ErrWrongStepKind, i, s.Kind, kind)
	}
	return s, nil
}

// arena returns the reversal states for a trial step. The second phase of
// the reversal practice block starts from a fresh state the first time it
// is needed.
func (e *Engine) arena(run *blockRun, s schedule.Step) (*block.Arena, error) {
	if a := run.arenas[s.Phase]; a != nil {
		return a, nil
	}
	if run.kind != block.KindReversalPractice || s.Phase != 1 {
		return nil, fmt.Errorf("block %d has no reversal state for phase %d", run.block.ID, s.Phase)
	}
	a := block.InitStates(e.policy, 1, e.cfg.PracticeSecondRange)
	run.arenas[1] = a
	e.log.Debug("practice reversal state reset", zap.Int("block", run.block.ID))
	return a, nil
}

// nextTrial returns the first unrecorded trial step of a block, or -1.
func (e *Engine) nextTrial(blockID int) int {
	for _, s := range e.steps {
		if s.IsTrial() && s.BlockID == blockID && !e.recorded[s.Index] {
			return s.Index
		}
	}
	return -1
}

// Present fixes the correct response of trial step i at the moment it is
// shown. Only the next unrecorded trial of a block can be presented;
// presenting it twice returns the same answer.
func (e *Engine) Present(i int) (int, error) {
	s, err := e.step(i, schedule.KindTrial)
	if err != nil {
		return 0, err
	}
	if e.recorded[i] {
		return 0, fmt.Errorf("%w: step %d", ErrAlreadyRecorded, i)
	}
	if next := e.nextTrial(s.BlockID); next != i {
		return 0, fmt.Errorf("%w: step %d before %d", ErrOutOfOrder, i, next)
	}
	if cor, ok := e.pending[i]; ok {
		return cor, nil
	}

	cor := s.FixedResponse
	if s.Mode == trial.ModeReversal {
		a, err := e.arena(e.blocks[s.BlockID], s)
		if err != nil {
			return 0, err
		}
		st, err := a.State(s.Slot)
		if err != nil {
			return 0, err
		}
		cor = st.CorrectResponse
	}
	e.pending[i] = cor
	return cor, nil
}

// RecordOutcome applies the response to trial step i and returns the
// resulting record. Outcomes must arrive in presentation order. A timeout
// counts as incorrect and resets the counter like a wrong key.
func (e *Engine) RecordOutcome(ctx context.Context, i int, resp Response) (trial.Record, error) {
	s, err := e.step(i, schedule.KindTrial)
	if err != nil {
		return trial.Record{}, err
	}
	if e.recorded[i] {
		return trial.Record{}, fmt.Errorf("%w: step %d", ErrAlreadyRecorded, i)
	}
	if next := e.nextTrial(s.BlockID); next != i {
		return trial.Record{}, fmt.Errorf("%w: step %d before %d", ErrOutOfOrder, i, next)
	}
	if resp.Key != nil && (*resp.Key < 0 || *resp.Key >= e.policy.Alphabet()) {
		return trial.Record{}, fmt.Errorf("%w: %d", ErrInvalidKey, *resp.Key)
	}

	cor, err := e.Present(i)
	if err != nil {
		return trial.Record{}, err
	}
	correct := resp.Key != nil && *resp.Key == cor
	run := e.blocks[s.BlockID]

	rec := trial.Record{
		SessionID:       e.id,
		BlockID:         s.BlockID,
		TrialIndex:      s.Trial,
		Folder:          s.Stimulus.Folder,
		StimulusID:      s.Stimulus.ID,
		Mode:            s.Mode,
		Phase:           s.Phase,
		Response:        resp.Key,
		CorrectResponse: cor,
		Correct:         correct,
		ReactionTime:    resp.ReactionTime,
		RecordedAt:      e.now(),
	}

	if s.Mode == trial.ModeReversal {
		a, err := e.arena(run, s)
		if err != nil {
			return trial.Record{}, err
		}
		out, err := a.Apply(s.Slot, correct)
		if err != nil {
			return trial.Record{}, err
		}
		if out.Reversed {
			run.reversals[s.Phase]++
			e.log.Debug("reversal",
				zap.Int("block", s.BlockID),
				zap.Int("slot", s.Slot),
				zap.Int("from", out.PriorResponse),
				zap.Int("threshold", out.Threshold),
			)
		}
		rec.Threshold = out.Threshold
		rec.ConsecutiveCorrect = out.ConsecutiveCorrect
		rec.Reversed = out.Reversed
		rec.Reversals = run.reversals[s.Phase]
	}

	e.records = append(e.records, rec)
	e.recorded[i] = true
	delete(e.pending, i)

	if e.repo != nil {
		if err := e.repo.AppendTrial(ctx, e.id, rec); err != nil {
			e.log.Warn("persist trial record", zap.Int("step", i), zap.Error(err))
		}
	}
	return rec, nil
}

// GateMessage evaluates the practice gate of step i.
func (e *Engine) GateMessage(i int) (practice.Message, error) {
	s, err := e.step(i, schedule.KindGate)
	if err != nil {
		return "", err
	}
	run := e.blocks[s.BlockID]
	if run.message != "" {
		return run.message, nil
	}

	switch s.Gate {
	case schedule.GateMastery:
		var outcomes []bool
		for _, r := range trial.FilterBlock(e.records, s.BlockID) {
			outcomes = append(outcomes, r.Correct)
		}
		run.message = e.cfg.MasteryGate.Evaluate(outcomes)
	case schedule.GateReversal:
		run.message = e.cfg.ReversalGate.Evaluate(run.reversals[0])
	default:
		return "", fmt.Errorf("step %d: unknown gate %q", i, s.Gate)
	}
	e.log.Info("practice gate",
		zap.Int("block", s.BlockID),
		zap.String("gate", string(s.Gate)),
		zap.String("message", string(run.message)),
	)
	return run.message, nil
}

// FinalizeBlock hands the block's records to the exporter once every trial
// of the block has been recorded, and returns the block's points. Repeated
// calls return the points without exporting again.
func (e *Engine) FinalizeBlock(ctx context.Context, blockID int) (int, error) {
	run := e.blocks[blockID]
	if run == nil {
		return 0, &block.ConfigError{BlockID: blockID, Reason: "not part of this session"}
	}
	points := score.PointsForBlock(e.records, blockID)
	if run.finalized {
		return points, nil
	}
	for _, s := range e.steps {
		if s.IsTrial() && s.BlockID == blockID && !e.recorded[s.Index] {
			return 0, fmt.Errorf("%w: block %d step %d", ErrBlockIncomplete, blockID, s.Index)
		}
	}

	run.finalized = true
	records := trial.FilterBlock(e.records, blockID)
	if e.exporter != nil {
		e.exporter.Save(BlockScope(e.fileName, blockID), records)
	}
	if e.repo != nil {
		if err := e.repo.CompleteBlock(ctx, e.id, blockID, points); err != nil {
			e.log.Warn("checkpoint block", zap.Int("block", blockID), zap.Error(err))
		}
	}
	e.log.Info("block finalized",
		zap.Int("block", blockID),
		zap.Int("trials", len(records)),
		zap.Int("points", points),
	)
	return points, nil
}

// BlockScope names a per-block export.
func BlockScope(fileName string, blockID int) string {
	return fmt.Sprintf("%s_block_%d", fileName, blockID)
}

// SaveSession exports every record under the session file name.
func (e *Engine) SaveSession() {
	if e.exporter != nil {
		e.exporter.Save(e.fileName, e.Records())
	}
}

// Finish marks the session complete and requests the mail notification.
// It is called once the settle delay after SaveSession has passed.
func (e *Engine) Finish(ctx context.Context) {
	if e.finished {
		return
	}
	e.finished = true
	if e.exporter != nil {
		e.exporter.Mail(e.fileName)
	}
	if e.repo != nil {
		if err := e.repo.FinishSession(ctx, e.id, e.now()); err != nil {
			e.log.Warn("finish session", zap.Error(err))
		}
	}
	e.log.Info("session finished",
		zap.Int("records", len(e.records)),
		zap.Int("points", e.Points()),
	)
}

// EndLink returns the redirect URL carrying the subject id.
func (e *Engine) EndLink() string {
	if e.cfg.EndLink == "" {
		return ""
	}
	u, err := url.Parse(e.cfg.EndLink)
	if err != nil {
		return e.cfg.EndLink + "?id=" + url.QueryEscape(e.subject)
	}
	q := u.Query()
	q.Set("id", e.subject)
	u.RawQuery = q.Encode()
	return u.String()
}

// Cue is what a host shows when it enters a step.
type Cue struct {
	Step schedule.Step

	// Message is set on gate steps.
	Message practice.Message

	// BlockPoints is set on summary steps.
	BlockPoints int
	TotalPoints int

	// EndLink is set on the end step.
	EndLink string
}

// Begin performs the side effects of entering step i and returns what the
// host should render. Exports scheduled on the step happen here; trial steps
// fix their correct response.
func (e *Engine) Begin(ctx context.Context, i int) (Cue, error) {
	s, err := e.step(i, "")
	if err != nil {
		return Cue{}, err
	}
	cue := Cue{Step: s}

	if s.ExportBlock != 0 {
		points, err := e.FinalizeBlock(ctx, s.ExportBlock)
		if err != nil {
			return Cue{}, err
		}
		if s.Kind == schedule.KindSummary {
			cue.BlockPoints = points
		}
	}

	switch s.Kind {
	case schedule.KindTrial:
		if _, err := e.Present(i); err != nil {
			return Cue{}, err
		}
	case schedule.KindGate:
		msg, err := e.GateMessage(i)
		if err != nil {
			return Cue{}, err
		}
		cue.Message = msg
	case schedule.KindSaving:
		e.SaveSession()
	case schedule.KindEnd:
		e.Finish(ctx)
		cue.EndLink = e.EndLink()
	}
	cue.TotalPoints = e.Points()
	return cue, nil
}
