package weather_test

import (
	"errors"
	"testing"

	"github.com/i474232898/weather-ingest/internal/weather"
	"github.com/i474232898/weather-ingest/internal/weather/weathertest"
)

func TestFormatSelectsDayByKind(t *testing.T) {
	raw := weathertest.Response([]string{"2024-10-01", "2024-10-02"}, 3)

	history, err := weather.Format(raw, weather.KindHistory)
	if err != nil {
		t.Fatalf("history: unexpected error: %v", err)
	}
	forecast, err := weather.Format(raw, weather.KindForecast)
	if err != nil {
		t.Fatalf("forecast: unexpected error: %v", err)
	}

	if got := weather.BatchDate(history); got != "2024-10-01" {
		t.Fatalf("history date = %q, want 2024-10-01", got)
	}
	if got := weather.BatchDate(forecast); got != "2024-10-02" {
		t.Fatalf("forecast date = %q, want 2024-10-02", got)
	}
	for _, o := range history {
		if o.IsForecast != weather.KindHistory {
			t.Fatalf("history record tagged %v", o.IsForecast)
		}
	}
	for _, o := range forecast {
		if o.IsForecast != weather.KindForecast {
			t.Fatalf("forecast record tagged %v", o.IsForecast)
		}
	}
}

func TestFormatCopiesFieldsVerbatim(t *testing.T) {
	raw := weathertest.Response([]string{"2024-10-01"}, 24)

	records, err := weather.Format(raw, weather.KindHistory)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 24 {
		t.Fatalf("expected 24 records, got %d", len(records))
	}

	want := weather.Observation{
		IsForecast: weather.KindHistory,
		Name:       weathertest.City,
		Region:     weathertest.Region,
		Country:    weathertest.Country,
		Lat:        weathertest.Lat,
		Lon:        weathertest.Lon,

		TimeEpoch: 1727758800,
		Date:      "2024-10-01",
		Time:      "2024-10-01 05:00",

		TempC:         25.5,
		TempF:         77.9,
		IsDay:         1,
		Condition:     weathertest.ConditionText,
		ConditionIcon: weathertest.ConditionIcon,
		ConditionCode: 1063,
		WindMph:       4.3,
		WindKph:       6.8,
		WindDegree:    148,
		WindDir:       "SSE",
		PressureMb:    1015,
		PressureIn:    29.97,
		PrecipMm:      0.12,
		PrecipIn:      0.01,
		SnowCm:        0.02,
		Humidity:      91,
		Cloud:         64,
		FeelslikeC:    21.4,
		FeelslikeF:    70.6,
		WindchillC:    21.3,
		WindchillF:    70.3,
		HeatindexC:    24.2,
		HeatindexF:    75.6,
		DewpointC:     20.1,
		DewpointF:     68.2,
		WillItRain:    2,
		ChanceOfRain:  87,
		WillItSnow:    3,
		ChanceOfSnow:  4,
		VisKm:         10,
		VisMiles:      6,
		GustMph:       7.6,
		GustKph:       12.2,
		UV:            0.3,
	}
	if got := records[5]; got != want {
		t.Fatalf("record differs:\n got  %+v\n want %+v", got, want)
	}

	for i, o := range records {
		if o.TimeEpoch != 1727740800+int64(i)*3600 {
			t.Fatalf("record %d out of provider order: epoch %d", i, o.TimeEpoch)
		}
	}
}

func TestFormatForecastRequiresSecondDay(t *testing.T) {
	raw := weathertest.Response([]string{"2024-10-01"}, 24)

	_, err := weather.Format(raw, weather.KindForecast)

	var me *weather.MappingError
	if !errors.As(err, &me) {
		t.Fatalf("expected MappingError, got %v", err)
	}
	if me.Path != "$.forecast.forecastday[1]" {
		t.Fatalf("unexpected path %q", me.Path)
	}
}

func TestFormatMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(raw weather.RawResponse)
		path   string
	}{
		{
			name:   "no forecast",
			mutate: func(raw weather.RawResponse) { delete(raw, "forecast") },
			path:   "$.forecast",
		},
		{
			name: "empty forecastday",
			mutate: func(raw weather.RawResponse) {
				raw["forecast"].(map[string]any)["forecastday"] = []any{}
			},
			path: "$.forecast.forecastday[0]",
		},
		{
			name: "missing location name",
			mutate: func(raw weather.RawResponse) {
				delete(raw["location"].(map[string]any), "name")
			},
			path: "$.location.name",
		},
		{
			name: "missing hourly field",
			mutate: func(raw weather.RawResponse) {
				firstHour(raw)["uv"] = nil
			},
			path: "$.forecast.forecastday[0].hour[0].uv",
		},
		{
			name: "mistyped condition",
			mutate: func(raw weather.RawResponse) {
				firstHour(raw)["condition"] = "rain"
			},
			path: "$.forecast.forecastday[0].hour[0].condition",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := weathertest.Response([]string{"2024-10-01"}, 2)
			tt.mutate(raw)

			records, err := weather.Format(raw, weather.KindHistory)
			if records != nil {
				t.Fatalf("expected no records, got %d", len(records))
			}
			var me *weather.MappingError
			if !errors.As(err, &me) {
				t.Fatalf("expected MappingError, got %v", err)
			}
			if me.Path != tt.path {
				t.Fatalf("path = %q, want %q", me.Path, tt.path)
			}
		})
	}
}

func firstHour(raw weather.RawResponse) map[string]any {
	days := raw["forecast"].(map[string]any)["forecastday"].([]any)
	hours := days[0].(map[string]any)["hour"].([]any)
	return hours[0].(map[string]any)
}
