package weather

import (
	"context"
	"time"
)

// Client fetches raw provider responses. For HorizonForecast the date is
// ignored and a fixed two-day window (today and tomorrow) is returned.
type Client interface {
	Fetch(ctx context.Context, city string, date time.Time, horizon Horizon) (RawResponse, error)
}

// Store is the replace-store contract. Delete and Insert each run in their own
// transaction; a Delete matching no rows is not an error.
type Store interface {
	Delete(ctx context.Context, kind Kind, date string) (int64, error)
	Insert(ctx context.Context, records []Observation) (int64, error)
	List(ctx context.Context, kind Kind, date string) ([]Observation, error)
	Close() error
}

// Replace deletes the stored batch for (kind, date) and inserts records.
// The two steps commit independently.
func Replace(ctx context.Context, s Store, kind Kind, date string, records []Observation) error {
	if _, err := s.Delete(ctx, kind, date); err != nil {
		return err
	}
	_, err := s.Insert(ctx, records)
	return err
}

// Recorder receives pipeline outcomes; metrics.Collector implements it.
type Recorder interface {
	ObserveStep(kind Kind, step string, err error, elapsed time.Duration)
	ObserveRows(kind Kind, op string, rows int64)
	ObserveBackfill(processed, failed int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStep(Kind, string, error, time.Duration) {}
func (nopRecorder) ObserveRows(Kind, string, int64)               {}
func (nopRecorder) ObserveBackfill(int, int)                       {}
