package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/i474232898/weather-ingest/internal/common"
	"github.com/i474232898/weather-ingest/internal/weather"
)

// hourLayout is the provider's local timestamp format for hourly rows.
const hourLayout = "2006-01-02 15:04"

const pgUniqueViolation = "23505"

// PostgresStore implements weather.Store on a pgx connection pool. Every
// operation acquires its own pooled connection and transaction.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	mu         sync.Mutex
	tableReady bool
	indexed    bool
	dialect    dialect
}

// NewPostgres opens a pool for dsn and verifies connectivity.
func NewPostgres(ctx context.Context, dsn string, maxConns int, logger *zap.Logger) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 2
	}
	cfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{pool: pool, logger: logger, dialect: postgresDialect}, nil
}

// EnsureSchema creates the forecast table if absent, then tries to add the
// natural-key index. A failed index build is logged and retried on the next
// call, so deletes can still clear duplicate rows left by earlier writers.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tableReady {
		if _, err := s.pool.Exec(ctx, s.dialect.tableSQL()); err != nil {
			return &weather.PersistenceError{Op: "schema", Err: err}
		}
		s.tableReady = true
	}
	if !s.indexed {
		if _, err := s.pool.Exec(ctx, s.dialect.indexSQL()); err != nil {
			s.logger.Warn("natural key index not created, will retry", zap.String("table", tableName), zap.Error(err))
			return nil
		}
		s.indexed = true
		s.logger.Debug("schema ensured", zap.String("table", tableName))
	}
	return nil
}

// Delete removes all rows for (kind, date).
func (s *PostgresStore) Delete(ctx context.Context, kind weather.Kind, date string) (int64, error) {
	fail := func(err error) (int64, error) {
		return 0, &weather.PersistenceError{Op: "delete", Kind: kind, Date: date, Err: err}
	}
	day, err := common.ParseDate(date)
	if err != nil {
		return fail(err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return 0, err
	}

	var rows int64
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, s.dialect.deleteSQL(), day, int(kind))
		if err != nil {
			return err
		}
		rows = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return fail(err)
	}
	return rows, nil
}

// Insert writes records with one multi-row INSERT in its own transaction.
func (s *PostgresStore) Insert(ctx context.Context, records []weather.Observation) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	kind, date := records[0].IsForecast, weather.BatchDate(records)
	fail := func(err error) (int64, error) {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			err = errors.Join(weather.ErrDuplicateBatch, err)
		}
		return 0, &weather.PersistenceError{Op: "insert", Kind: kind, Date: date, Err: err}
	}

	args := make([]any, 0, len(records)*len(columns))
	for _, o := range records {
		day, err := common.ParseDate(o.Date)
		if err != nil {
			return fail(err)
		}
		ts, err := time.Parse(hourLayout, o.Time)
		if err != nil {
			return fail(fmt.Errorf("invalid time %q: %w", o.Time, err))
		}
		args = append(args, rowValues(o, day, ts)...)
	}

	if err := s.EnsureSchema(ctx); err != nil {
		return 0, err
	}

	var rows int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, s.dialect.insertSQL(len(records)), args...)
		if err != nil {
			return err
		}
		rows = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return fail(err)
	}
	return rows, nil
}

// List returns the stored batch for (kind, date) ordered by hour.
func (s *PostgresStore) List(ctx context.Context, kind weather.Kind, date string) ([]weather.Observation, error) {
	day, err := common.ParseDate(date)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, s.dialect.selectSQL(), day, int(kind))
	if err != nil {
		return nil, fmt.Errorf("query %s %s: %w", kind, date, err)
	}
	defer rows.Close()

	var out []weather.Observation
	for rows.Next() {
		var (
			o       weather.Observation
			k       int
			d, hour time.Time
		)
		if err := rows.Scan(rowTargets(&o, &k, &d, &hour)...); err != nil {
			return nil, err
		}
		o.IsForecast = weather.Kind(k)
		o.Date = common.FormatDate(d)
		o.Time = hour.Format(hourLayout)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
