package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-ingest/internal/common"
)

// BackfillSummary reports the outcome of a backfill run.
type BackfillSummary struct {
	RunID     string   `json:"run_id"`
	City      string   `json:"city"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Total     int      `json:"total_days"`
	Processed int      `json:"processed_days"`
	Failed    []string `json:"failed_dates"`
}

// Backfiller re-populates historical batches over a date range, one day at a
// time. Days never overlap, so a (date, kind) delete and its insert are never
// interleaved with another write to the same key.
type Backfiller struct {
	runner  *Runner
	logger  *zap.Logger
	limiter *rate.Limiter
}

// NewBackfiller creates a Backfiller. perSecond <= 0 disables pacing between
// provider calls.
func NewBackfiller(runner *Runner, logger *zap.Logger, perSecond float64) *Backfiller {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Backfiller{
		runner:  runner,
		logger:  logger,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Backfill runs the history pipeline for every date from start to end
// inclusive (YYYY-MM-DD). A failing day is logged and skipped. The returned
// error is non-nil only for invalid arguments or a cancelled context.
func (b *Backfiller) Backfill(ctx context.Context, city, start, end string) (BackfillSummary, error) {
	summary := BackfillSummary{RunID: uuid.NewString(), City: city, Start: start, End: end}

	from, err := common.ParseDate(start)
	if err != nil {
		return summary, fmt.Errorf("backfill start: %w", err)
	}
	to, err := common.ParseDate(end)
	if err != nil {
		return summary, fmt.Errorf("backfill end: %w", err)
	}
	days := common.DaysInclusive(from, to)
	if len(days) == 0 {
		return summary, fmt.Errorf("backfill end %s is before start %s", end, start)
	}
	summary.Total = len(days)

	log := b.logger.With(zap.String("run_id", summary.RunID), zap.String("city", city))
	log.Info("starting backfill",
		zap.String("start", start),
		zap.String("end", end),
		zap.Int("total_days", summary.Total))

	for _, day := range days {
		date := common.FormatDate(day)

		if err := b.limiter.Wait(ctx); err != nil {
			b.finish(log, summary)
			return summary, fmt.Errorf("backfill interrupted at %s: %w", date, err)
		}

		log.Info("processing date", zap.String("date", date))
		if err := b.day(ctx, city, day, date); err != nil {
			summary.Failed = append(summary.Failed, date)
			log.Error("failed to process date", zap.String("date", date), zap.Error(err))
			if ctx.Err() != nil {
				b.finish(log, summary)
				return summary, fmt.Errorf("backfill interrupted at %s: %w", date, ctx.Err())
			}
			continue
		}
		summary.Processed++
		log.Info("processed date",
			zap.String("date", date),
			zap.Int("processed_days", summary.Processed),
			zap.Int("total_days", summary.Total))
	}

	b.finish(log, summary)
	return summary, nil
}

func (b *Backfiller) day(ctx context.Context, city string, day time.Time, date string) error {
	raw, err := b.runner.Fetch(ctx, city, KindHistory, day)
	if err != nil {
		return err
	}
	records, err := b.runner.Format(raw, KindHistory)
	if err != nil {
		return err
	}
	if err := b.runner.Delete(ctx, KindHistory, date); err != nil {
		return err
	}
	return b.runner.Insert(ctx, records)
}

func (b *Backfiller) finish(log *zap.Logger, s BackfillSummary) {
	b.runner.recorder.ObserveBackfill(s.Processed, len(s.Failed))
	log.Info("backfill finished",
		zap.Int("processed_days", s.Processed),
		zap.Int("total_days", s.Total),
		zap.Strings("failed_dates", s.Failed))
}
