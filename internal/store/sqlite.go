package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/i474232898/weather-ingest/internal/common"
	"github.com/i474232898/weather-ingest/internal/weather"
)

// SQLiteStore implements weather.Store using sqlite (pure Go driver modernc.org/sqlite).
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger

	mu         sync.Mutex
	tableReady bool
	indexed    bool
}

// NewSQLite opens (or creates) the database at path. The schema is created
// lazily on first use.
func NewSQLite(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		logger.Warn("could not set WAL mode", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		logger.Warn("could not set busy timeout", zap.Error(err))
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// EnsureSchema creates the forecast table if absent, then tries to add the
// natural-key index. A failed index build is logged and retried on the next
// call, so deletes can still clear duplicate rows left by earlier writers.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tableReady {
		if _, err := s.db.ExecContext(ctx, sqliteDialect.tableSQL()); err != nil {
			return &weather.PersistenceError{Op: "schema", Err: err}
		}
		s.tableReady = true
	}
	if !s.indexed {
		if _, err := s.db.ExecContext(ctx, sqliteDialect.indexSQL()); err != nil {
			s.logger.Warn("natural key index not created, will retry", zap.String("table", tableName), zap.Error(err))
			return nil
		}
		s.indexed = true
		s.logger.Debug("schema ensured", zap.String("table", tableName))
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, kind weather.Kind, date string) (int64, error) {
	fail := func(err error) (int64, error) {
		return 0, &weather.PersistenceError{Op: "delete", Kind: kind, Date: date, Err: err}
	}
	if _, err := common.ParseDate(date); err != nil {
		return fail(err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return 0, err
	}
	rows, err := s.inTx(ctx, sqliteDialect.deleteSQL(), date, int(kind))
	if err != nil {
		return fail(err)
	}
	return rows, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, records []weather.Observation) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return 0, err
	}

	args := make([]any, 0, len(records)*len(columns))
	for _, o := range records {
		args = append(args, rowValues(o, o.Date, o.Time)...)
	}

	rows, err := s.inTx(ctx, sqliteDialect.insertSQL(len(records)), args...)
	if err != nil {
		if isUniqueViolation(err) {
			err = errors.Join(weather.ErrDuplicateBatch, err)
		}
		return 0, &weather.PersistenceError{
			Op:   "insert",
			Kind: records[0].IsForecast,
			Date: weather.BatchDate(records),
			Err:  err,
		}
	}
	return rows, nil
}

func (s *SQLiteStore) List(ctx context.Context, kind weather.Kind, date string) ([]weather.Observation, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, sqliteDialect.selectSQL(), date, int(kind))
	if err != nil {
		return nil, fmt.Errorf("query %s %s: %w", kind, date, err)
	}
	defer rows.Close()

	var out []weather.Observation
	for rows.Next() {
		var (
			o weather.Observation
			k int
		)
		if err := rows.Scan(rowTargets(&o, &k, &o.Date, &o.Time)...); err != nil {
			return nil, err
		}
		o.IsForecast = weather.Kind(k)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// inTx runs one statement in its own transaction and returns rows affected.
func (s *SQLiteStore) inTx(ctx context.Context, query string, args ...any) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
}
