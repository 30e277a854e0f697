package weather

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weather-ingest/internal/common"
)

// Runner exposes the four pipeline steps (fetch, format, delete, insert) as
// independent operations. It keeps no state between steps; callers pass the
// raw response and the formatted batch along themselves.
type Runner struct {
	client   Client
	store    Store
	logger   *zap.Logger
	policy   ErrorPolicy
	now      func() time.Time
	recorder Recorder
}

// Option customizes a Runner.
type Option func(*Runner)

// WithErrorPolicy sets how persistence failures are reported.
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(r *Runner) { r.policy = p }
}

// WithClock overrides the clock used to resolve default dates.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// NewRunner creates a Runner. The default policy is best-effort.
func NewRunner(client Client, store Store, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		client:   client,
		store:    store,
		logger:   logger,
		policy:   PolicyBestEffort,
		now:      time.Now,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the configured persistence error policy.
func (r *Runner) Policy() ErrorPolicy { return r.policy }

// DefaultDate is the date a kind targets when none is given, evaluated at
// call time: yesterday for history, tomorrow for forecast.
func (r *Runner) DefaultDate(kind Kind) string {
	now := r.now()
	if kind == KindForecast {
		return common.FormatDate(common.Tomorrow(now))
	}
	return common.FormatDate(common.Yesterday(now))
}

// Fetch retrieves the raw response for kind. A zero date on a history fetch
// means yesterday; forecast fetches ignore the date.
func (r *Runner) Fetch(ctx context.Context, city string, kind Kind, date time.Time) (RawResponse, error) {
	start := time.Now()
	raw, err := r.client.Fetch(ctx, city, date, kind.Horizon())
	r.recorder.ObserveStep(kind, "fetch", err, time.Since(start))
	if err != nil {
		r.logger.Error("fetch failed",
			zap.String("city", city),
			zap.Stringer("kind", kind),
			zap.Error(err))
		return nil, err
	}
	return raw, nil
}

// Format flattens raw into the batch for kind.
func (r *Runner) Format(raw RawResponse, kind Kind) ([]Observation, error) {
	start := time.Now()
	records, err := Format(raw, kind)
	r.recorder.ObserveStep(kind, "format", err, time.Since(start))
	if err != nil {
		r.logger.Error("format failed", zap.Stringer("kind", kind), zap.Error(err))
		return nil, err
	}
	r.logger.Debug("formatted batch",
		zap.Stringer("kind", kind),
		zap.String("date", BatchDate(records)),
		zap.Int("records", len(records)))
	return records, nil
}

// Delete removes the stored batch for (kind, date). An empty date uses
// DefaultDate(kind).
func (r *Runner) Delete(ctx context.Context, kind Kind, date string) error {
	if date == "" {
		date = r.DefaultDate(kind)
	}
	start := time.Now()
	rows, err := r.store.Delete(ctx, kind, date)
	r.recorder.ObserveStep(kind, "delete", err, time.Since(start))
	if err != nil {
		return r.persistenceFailure(err, zap.Stringer("kind", kind), zap.String("date", date))
	}
	r.recorder.ObserveRows(kind, "delete", rows)
	r.logger.Info("deleted batch",
		zap.Stringer("kind", kind),
		zap.String("date", date),
		zap.Int64("rows", rows))
	return nil
}

// Insert stores a formatted batch.
func (r *Runner) Insert(ctx context.Context, records []Observation) error {
	if len(records) == 0 {
		r.logger.Warn("insert skipped: empty batch")
		return nil
	}
	kind := records[0].IsForecast
	start := time.Now()
	rows, err := r.store.Insert(ctx, records)
	r.recorder.ObserveStep(kind, "insert", err, time.Since(start))
	if err != nil {
		return r.persistenceFailure(err, zap.Stringer("kind", kind), zap.String("date", BatchDate(records)))
	}
	r.recorder.ObserveRows(kind, "insert", rows)
	r.logger.Info("inserted batch",
		zap.Stringer("kind", kind),
		zap.String("date", BatchDate(records)),
		zap.Int64("rows", rows))
	return nil
}

// Run executes fetch, format, delete and insert for one day. The delete
// targets the date carried by the formatted batch.
func (r *Runner) Run(ctx context.Context, city string, kind Kind, date time.Time) (int, error) {
	raw, err := r.Fetch(ctx, city, kind, date)
	if err != nil {
		return 0, err
	}
	records, err := r.Format(raw, kind)
	if err != nil {
		return 0, err
	}
	target := BatchDate(records)
	if target == "" {
		if kind == KindHistory && !date.IsZero() {
			target = common.FormatDate(date)
		} else {
			target = r.DefaultDate(kind)
		}
	}
	if err := r.Delete(ctx, kind, target); err != nil {
		return 0, err
	}
	if err := r.Insert(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (r *Runner) persistenceFailure(err error, fields ...zap.Field) error {
	fields = append(fields, zap.String("policy", string(r.policy)), zap.Error(err))
	r.logger.Error("persistence failed", fields...)
	if r.policy == PolicyFailFast {
		var pe *PersistenceError
		if !errors.As(err, &pe) {
			err = &PersistenceError{Op: "store", Err: err}
		}
		return err
	}
	return nil
}
