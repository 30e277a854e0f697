package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/i474232898/weather-ingest/internal/common"
	"github.com/i474232898/weather-ingest/internal/weather"
)

type batchKey struct {
	date string
	kind weather.Kind
}

type hourKey struct {
	batch batchKey
	time  string
}

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
// It enforces the same natural key as the SQL stores.
type MemoryStore struct {
	mu sync.RWMutex

	// key: (date, kind), value: rows in insertion order
	data map[batchKey][]weather.Observation
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[batchKey][]weather.Observation),
	}
}

// Delete removes the batch for (kind, date).
func (s *MemoryStore) Delete(ctx context.Context, kind weather.Kind, date string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, &weather.PersistenceError{Op: "delete", Kind: kind, Date: date, Err: err}
	}
	if _, err := common.ParseDate(date); err != nil {
		return 0, &weather.PersistenceError{Op: "delete", Kind: kind, Date: date, Err: err}
	}
	key := batchKey{date: date, kind: kind}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.data[key])
	delete(s.data, key)
	return int64(n), nil
}

// Insert appends records, rejecting the whole call if any hour already exists.
func (s *MemoryStore) Insert(ctx context.Context, records []weather.Observation) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	fail := func(err error) (int64, error) {
		return 0, &weather.PersistenceError{
			Op:   "insert",
			Kind: records[0].IsForecast,
			Date: weather.BatchDate(records),
			Err:  err,
		}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[hourKey]struct{})
	for key, rows := range s.data {
		for _, o := range rows {
			seen[hourKey{batch: key, time: o.Time}] = struct{}{}
		}
	}
	for _, o := range records {
		hk := hourKey{batch: batchKey{date: o.Date, kind: o.IsForecast}, time: o.Time}
		if _, dup := seen[hk]; dup {
			return fail(fmt.Errorf("%w: %s %s", weather.ErrDuplicateBatch, o.IsForecast, o.Time))
		}
		seen[hk] = struct{}{}
	}

	for _, o := range records {
		key := batchKey{date: o.Date, kind: o.IsForecast}
		s.data[key] = append(s.data[key], o)
	}
	return int64(len(records)), nil
}

// List returns the stored batch for (kind, date) ordered by hour.
func (s *MemoryStore) List(_ context.Context, kind weather.Kind, date string) ([]weather.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.data[batchKey{date: date, kind: kind}]
	out := make([]weather.Observation, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TimeEpoch < out[j].TimeEpoch })
	return out, nil
}

// Len returns the total number of stored rows.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, rows := range s.data {
		n += len(rows)
	}
	return n
}

func (s *MemoryStore) Close() error { return nil }
