package export

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/abhisek/revlearn/internal/trial"
)

// Dispatcher encodes exports and hands them to the sinks in the background.
// The task never waits on persistence; failures are logged and counted.
type Dispatcher struct {
	format   Format
	sink     Persister
	notifier Notifier
	log      *zap.Logger

	ctx      context.Context
	wg       sync.WaitGroup
	failures atomic.Int64
}

// NewDispatcher creates a dispatcher. notifier may be nil.
func NewDispatcher(ctx context.Context, format Format, sink Persister, notifier Notifier, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		format:   format,
		sink:     sink,
		notifier: notifier,
		log:      log.Named("export"),
		ctx:      context.WithoutCancel(ctx),
	}
}

// Save encodes records synchronously and persists them asynchronously.
func (d *Dispatcher) Save(scope string, records []trial.Record) {
	blob, err := Encode(d.format, scope, records)
	if err != nil {
		d.failures.Add(1)
		d.log.Error("encode export", zap.String("scope", scope), zap.Error(err))
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.sink.Save(d.ctx, blob); err != nil {
			d.failures.Add(1)
			d.log.Error("save export",
				zap.String("file", blob.Name),
				zap.Int("records", len(records)),
				zap.Error(err),
			)
			return
		}
		d.log.Info("export saved", zap.String("file", blob.Name), zap.Int("bytes", len(blob.Data)))
	}()
}

// Mail sends the ready notification for scope, if a notifier is set.
func (d *Dispatcher) Mail(scope string) {
	if d.notifier == nil {
		return
	}
	name := scope + "." + string(d.format)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.notifier.Mail(d.ctx, name); err != nil {
			d.failures.Add(1)
			d.log.Error("mail export", zap.String("file", name), zap.Error(err))
		}
	}()
}

// Wait blocks until pending exports finish or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failures returns how many exports failed so far.
func (d *Dispatcher) Failures() int {
	return int(d.failures.Load())
}
