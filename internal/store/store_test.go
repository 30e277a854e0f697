package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/i474232898/weather-ingest/internal/weather"
	"github.com/i474232898/weather-ingest/internal/weather/weathertest"
)

func batch(t *testing.T, kind weather.Kind, dates []string, hours int) []weather.Observation {
	t.Helper()
	records, err := weather.Format(weathertest.Response(dates, hours), kind)
	if err != nil {
		t.Fatalf("format fixture: %v", err)
	}
	return records
}

// runStoreContract exercises the replace-store behaviour every backend shares.
func runStoreContract(t *testing.T, open func(t *testing.T) weather.Store) {
	ctx := context.Background()

	t.Run("replace is idempotent", func(t *testing.T) {
		s := open(t)
		records := batch(t, weather.KindHistory, []string{"2024-10-01"}, 24)

		for i := 0; i < 2; i++ {
			if err := weather.Replace(ctx, s, weather.KindHistory, "2024-10-01", records); err != nil {
				t.Fatalf("replace %d: %v", i, err)
			}
		}

		got, err := s.List(ctx, weather.KindHistory, "2024-10-01")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 24 {
			t.Fatalf("expected 24 rows, got %d", len(got))
		}
	})

	t.Run("round trip", func(t *testing.T) {
		s := open(t)
		records := batch(t, weather.KindHistory, []string{"2024-10-01"}, 3)
		if _, err := s.Insert(ctx, records); err != nil {
			t.Fatalf("insert: %v", err)
		}

		got, err := s.List(ctx, weather.KindHistory, "2024-10-01")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != len(records) {
			t.Fatalf("expected %d rows, got %d", len(records), len(got))
		}
		for i := range records {
			if got[i] != records[i] {
				t.Fatalf("row %d differs:\n got  %+v\n want %+v", i, got[i], records[i])
			}
		}
	})

	t.Run("kinds are isolated", func(t *testing.T) {
		s := open(t)
		history := batch(t, weather.KindHistory, []string{"2024-10-03"}, 4)
		forecast := batch(t, weather.KindForecast, []string{"2024-10-02", "2024-10-03"}, 4)

		if _, err := s.Insert(ctx, history); err != nil {
			t.Fatalf("insert history: %v", err)
		}
		if _, err := s.Insert(ctx, forecast); err != nil {
			t.Fatalf("insert forecast: %v", err)
		}

		n, err := s.Delete(ctx, weather.KindHistory, "2024-10-03")
		if err != nil {
			t.Fatalf("delete: %v", err)
		}
		if n != 4 {
			t.Fatalf("expected 4 deleted rows, got %d", n)
		}
		left, _ := s.List(ctx, weather.KindForecast, "2024-10-03")
		if len(left) != 4 {
			t.Fatalf("forecast rows must survive a history delete, got %d", len(left))
		}
	})

	t.Run("delete without rows", func(t *testing.T) {
		s := open(t)
		n, err := s.Delete(ctx, weather.KindForecast, "1999-01-01")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 0 {
			t.Fatalf("expected 0 rows, got %d", n)
		}
	})

	t.Run("delete rejects malformed date", func(t *testing.T) {
		s := open(t)
		for _, date := range []string{"2024-1-1", "", "01/10/2024"} {
			_, err := s.Delete(ctx, weather.KindHistory, date)
			var pe *weather.PersistenceError
			if !errors.As(err, &pe) || pe.Op != "delete" {
				t.Fatalf("%q: expected delete PersistenceError, got %v", date, err)
			}
		}
	})

	t.Run("duplicate insert", func(t *testing.T) {
		s := open(t)
		records := batch(t, weather.KindHistory, []string{"2024-10-01"}, 2)
		if _, err := s.Insert(ctx, records); err != nil {
			t.Fatalf("first insert: %v", err)
		}

		_, err := s.Insert(ctx, records)
		if !errors.Is(err, weather.ErrDuplicateBatch) {
			t.Fatalf("expected ErrDuplicateBatch, got %v", err)
		}
		var pe *weather.PersistenceError
		if !errors.As(err, &pe) || pe.Op != "insert" {
			t.Fatalf("expected insert PersistenceError, got %v", err)
		}

		got, _ := s.List(ctx, weather.KindHistory, "2024-10-01")
		if len(got) != 2 {
			t.Fatalf("rejected insert must not add rows, have %d", len(got))
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(*testing.T) weather.Store { return NewMemoryStore() })
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) weather.Store {
		s, err := NewSQLite(filepath.Join(t.TempDir(), "weather.db"), nil)
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSQLiteSchemaIsLazyAndReusable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weather.db")
	ctx := context.Background()

	s, err := NewSQLite(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Insert(ctx, batch(t, weather.KindHistory, []string{"2024-10-01"}, 2)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewSQLite(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.List(ctx, weather.KindHistory, "2024-10-01")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected rows to persist across reopen, got %d", len(got))
	}
}

func TestSQLiteDeleteClearsDuplicatesBeforeIndex(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "weather.db"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	// A table written without the natural key, holding the same hour twice.
	if _, err := s.db.ExecContext(ctx, sqliteDialect.tableSQL()); err != nil {
		t.Fatalf("create table: %v", err)
	}
	o := batch(t, weather.KindHistory, []string{"2024-10-01"}, 1)[0]
	for i := 0; i < 2; i++ {
		if _, err := s.db.ExecContext(ctx, sqliteDialect.insertSQL(1), rowValues(o, o.Date, o.Time)...); err != nil {
			t.Fatalf("seed row %d: %v", i, err)
		}
	}

	n, err := s.Delete(ctx, weather.KindHistory, "2024-10-01")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deleted rows, got %d", n)
	}

	records := batch(t, weather.KindHistory, []string{"2024-10-01"}, 2)
	if _, err := s.Insert(ctx, records); err != nil {
		t.Fatalf("insert: %v", err)
	}
	// The index is in place once the duplicates are gone.
	if _, err := s.Insert(ctx, records); !errors.Is(err, weather.ErrDuplicateBatch) {
		t.Fatalf("expected ErrDuplicateBatch after index build, got %v", err)
	}
}

func TestOpenMemory(t *testing.T) {
	s, err := Open(context.Background(), Options{Driver: DriverMemory}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("expected *MemoryStore, got %T", s)
	}

	if _, err := Open(context.Background(), Options{Driver: "mysql"}, nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
