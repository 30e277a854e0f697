package store

import (
	"fmt"
	"strings"

	"github.com/i474232898/weather-ingest/internal/weather"
)

const tableName = "forecast"

// column describes one forecast column and its type per dialect.
type column struct {
	name   string
	pgType string
	sqType string
}

const (
	pgFloat = "DOUBLE PRECISION"
	sqFloat = "REAL"
)

// columns lists the insertable columns in insert/scan order. The surrogate id
// is generated by the database.
var columns = []column{
	{"is_forecast", "INTEGER NOT NULL", "INTEGER NOT NULL"},
	{"name", "VARCHAR", "TEXT"},
	{"region", "VARCHAR", "TEXT"},
	{"country", "VARCHAR", "TEXT"},
	{"lat", "VARCHAR", "TEXT"},
	{"lon", "VARCHAR", "TEXT"},
	{"time_epoch", "BIGINT", "INTEGER"},
	{`"date"`, "DATE NOT NULL", "TEXT NOT NULL"},
	{`"time"`, "TIMESTAMP NOT NULL", "TEXT NOT NULL"},
	{"temp_c", pgFloat, sqFloat},
	{"temp_f", pgFloat, sqFloat},
	{"is_day", "INTEGER", "INTEGER"},
	{"condition", "VARCHAR", "TEXT"},
	{"condition_icon", "VARCHAR", "TEXT"},
	{"condition_code", "INTEGER", "INTEGER"},
	{"wind_mph", pgFloat, sqFloat},
	{"wind_kph", pgFloat, sqFloat},
	{"wind_degree", pgFloat, sqFloat},
	{"wind_dir", "VARCHAR", "TEXT"},
	{"pressure_mb", pgFloat, sqFloat},
	{"pressure_in", pgFloat, sqFloat},
	{"precip_mm", pgFloat, sqFloat},
	{"precip_in", pgFloat, sqFloat},
	{"snow_cm", pgFloat, sqFloat},
	{"humidity", pgFloat, sqFloat},
	{"cloud", pgFloat, sqFloat},
	{"feelslike_c", pgFloat, sqFloat},
	{"feelslike_f", pgFloat, sqFloat},
	{"windchill_c", pgFloat, sqFloat},
	{"windchill_f", pgFloat, sqFloat},
	{"heatindex_c", pgFloat, sqFloat},
	{"heatindex_f", pgFloat, sqFloat},
	{"dewpoint_c", pgFloat, sqFloat},
	{"dewpoint_f", pgFloat, sqFloat},
	{"will_it_rain", "INTEGER", "INTEGER"},
	{"chance_of_rain", "INTEGER", "INTEGER"},
	{"will_it_snow", "INTEGER", "INTEGER"},
	{"chance_of_snow", "INTEGER", "INTEGER"},
	{"vis_km", pgFloat, sqFloat},
	{"vis_miles", pgFloat, sqFloat},
	{"gust_mph", pgFloat, sqFloat},
	{"gust_kph", pgFloat, sqFloat},
	{"uv", pgFloat, sqFloat},
}

// dialect captures the SQL differences between Postgres and SQLite.
type dialect struct {
	idColumn    string
	typeOf      func(column) string
	placeholder func(n int) string
}

var postgresDialect = dialect{
	idColumn:    "id SERIAL PRIMARY KEY",
	typeOf:      func(c column) string { return c.pgType },
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
}

var sqliteDialect = dialect{
	idColumn:    "id INTEGER PRIMARY KEY AUTOINCREMENT",
	typeOf:      func(c column) string { return c.sqType },
	placeholder: func(int) string { return "?" },
}

func (d dialect) tableSQL() string {
	defs := make([]string, 0, len(columns)+1)
	defs = append(defs, d.idColumn)
	for _, c := range columns {
		defs = append(defs, c.name+" "+d.typeOf(c))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", tableName, strings.Join(defs, ",\n\t"))
}

// indexSQL creates the natural key: a second insert for the same hour and
// kind is rejected. It fails while the table still holds duplicate rows.
func (d dialect) indexSQL() string {
	return fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_natural_key ON %s ("date", "time", is_forecast)`, tableName, tableName)
}

func (d dialect) deleteSQL() string {
	return fmt.Sprintf(`DELETE FROM %s WHERE "date" = %s AND is_forecast = %s`,
		tableName, d.placeholder(1), d.placeholder(2))
}

func (d dialect) selectSQL() string {
	return fmt.Sprintf(`SELECT %s FROM %s WHERE "date" = %s AND is_forecast = %s ORDER BY time_epoch, id`,
		columnList(), tableName, d.placeholder(1), d.placeholder(2))
}

// insertSQL builds a single multi-row INSERT for rows records.
func (d dialect) insertSQL(rows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", tableName, columnList())
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range columns {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.placeholder(n))
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

func columnList() string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return strings.Join(names, ", ")
}

// rowValues returns the insert arguments for o in column order. date and ts
// are passed in so each driver can bind its own representation.
func rowValues(o weather.Observation, date, ts any) []any {
	head := []any{int(o.IsForecast), o.Name, o.Region, o.Country, o.Lat, o.Lon, o.TimeEpoch, date, ts}
	return append(head, measureValues(&o)...)
}

// rowTargets returns scan destinations in column order.
func rowTargets(o *weather.Observation, kind *int, date, ts any) []any {
	head := []any{kind, &o.Name, &o.Region, &o.Country, &o.Lat, &o.Lon, &o.TimeEpoch, date, ts}
	return append(head, measurePointers(o)...)
}

func measureValues(o *weather.Observation) []any {
	return []any{
		o.TempC, o.TempF, o.IsDay, o.Condition, o.ConditionIcon, o.ConditionCode,
		o.WindMph, o.WindKph, o.WindDegree, o.WindDir,
		o.PressureMb, o.PressureIn, o.PrecipMm, o.PrecipIn, o.SnowCm, o.Humidity, o.Cloud,
		o.FeelslikeC, o.FeelslikeF, o.WindchillC, o.WindchillF,
		o.HeatindexC, o.HeatindexF, o.DewpointC, o.DewpointF,
		o.WillItRain, o.ChanceOfRain, o.WillItSnow, o.ChanceOfSnow,
		o.VisKm, o.VisMiles, o.GustMph, o.GustKph, o.UV,
	}
}

func measurePointers(o *weather.Observation) []any {
	return []any{
		&o.TempC, &o.TempF, &o.IsDay, &o.Condition, &o.ConditionIcon, &o.ConditionCode,
		&o.WindMph, &o.WindKph, &o.WindDegree, &o.WindDir,
		&o.PressureMb, &o.PressureIn, &o.PrecipMm, &o.PrecipIn, &o.SnowCm, &o.Humidity, &o.Cloud,
		&o.FeelslikeC, &o.FeelslikeF, &o.WindchillC, &o.WindchillF,
		&o.HeatindexC, &o.HeatindexF, &o.DewpointC, &o.DewpointF,
		&o.WillItRain, &o.ChanceOfRain, &o.WillItSnow, &o.ChanceOfSnow,
		&o.VisKm, &o.VisMiles, &o.GustMph, &o.GustKph, &o.UV,
	}
}
