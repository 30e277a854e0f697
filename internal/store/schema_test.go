package store

import (
	"strconv"
	"strings"
	"testing"

	"github.com/i474232898/weather-ingest/internal/weather"
)

func TestInsertSQLPlaceholders(t *testing.T) {
	pg := postgresDialect.insertSQL(2)
	last := "$" + strconv.Itoa(2*len(columns))
	if !strings.HasSuffix(pg, last+")") {
		t.Fatalf("postgres insert should end with %s, got ...%s", last, pg[len(pg)-20:])
	}
	if strings.Count(pg, "(") != 3 {
		t.Fatalf("expected column list plus 2 value tuples, got %q", pg)
	}

	sq := sqliteDialect.insertSQL(3)
	if got := strings.Count(sq, "?"); got != 3*len(columns) {
		t.Fatalf("expected %d placeholders, got %d", 3*len(columns), got)
	}
}

func TestSchemaStatements(t *testing.T) {
	for _, d := range []dialect{postgresDialect, sqliteDialect} {
		if table := d.tableSQL(); !strings.Contains(table, "CREATE TABLE IF NOT EXISTS forecast") {
			t.Fatalf("unexpected table statement: %s", table)
		}
		if index := d.indexSQL(); !strings.Contains(index, `("date", "time", is_forecast)`) {
			t.Fatalf("unexpected index statement: %s", index)
		}
	}

	if got := postgresDialect.deleteSQL(); got != `DELETE FROM forecast WHERE "date" = $1 AND is_forecast = $2` {
		t.Fatalf("unexpected delete: %s", got)
	}
}

func TestRowValuesMatchColumns(t *testing.T) {
	o := weather.Observation{Date: "2024-10-01", Time: "2024-10-01 00:00"}
	if got := len(rowValues(o, o.Date, o.Time)); got != len(columns) {
		t.Fatalf("rowValues has %d values for %d columns", got, len(columns))
	}
	var k int
	if got := len(rowTargets(&o, &k, &o.Date, &o.Time)); got != len(columns) {
		t.Fatalf("rowTargets has %d targets for %d columns", got, len(columns))
	}
}
