package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/weather-ingest/internal/weather"
)

// Pipeline runs one fetch-format-delete-insert cycle. *weather.Runner implements it.
type Pipeline interface {
	Run(ctx context.Context, city string, kind weather.Kind, date time.Time) (int, error)
}

// Scheduler runs the daily ingestion on a cron schedule: the history batch
// first, then the forecast batch only if history succeeded.
type Scheduler struct {
	scheduler *gocron.Scheduler
	pipeline  Pipeline
	logger    *zap.Logger
	city      string
	spec      string
	timeout   time.Duration
}

// New creates a new Scheduler. spec is a five-field cron expression evaluated in UTC.
func New(city, spec string, pipeline Pipeline, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		pipeline:  pipeline,
		logger:    logger,
		city:      city,
		spec:      spec,
		timeout:   10 * time.Minute,
	}
}

// Start schedules the job and starts the underlying scheduler. A run that is
// still in progress when the next tick fires causes that tick to be skipped.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Cron(s.spec).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("scheduled run failed", zap.String("city", s.city), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", zap.String("city", s.city), zap.String("schedule", s.spec))
	return nil
}

// RunOnce runs history then forecast for the configured city.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	started := time.Now()
	s.logger.Info("running weather pipeline", zap.String("city", s.city))

	for _, kind := range []weather.Kind{weather.KindHistory, weather.KindForecast} {
		n, err := s.pipeline.Run(ctx, s.city, kind, time.Time{})
		if err != nil {
			return fmt.Errorf("%s pipeline: %w", kind, err)
		}
		s.logger.Info("pipeline completed",
			zap.String("city", s.city),
			zap.Stringer("kind", kind),
			zap.Int("records", n))
	}

	s.logger.Info("weather pipeline finished",
		zap.String("city", s.city),
		zap.Duration("duration", time.Since(started)))
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
