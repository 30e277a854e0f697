// Package weathertest builds WeatherAPI.com response bodies for tests.
package weathertest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/i474232898/weather-ingest/internal/weather"
)

// Location values as the provider sends them.
const (
	City    = "Joinville"
	Region  = "Santa Catarina"
	Country = "Brazil"
	Lat     = "-26.30"
	Lon     = "-48.85"

	ConditionText = "Patchy rain nearby"
	ConditionIcon = "//cdn.weatherapi.com/weather/64x64/night/176.png"
)

// Body returns a JSON body with one forecastday entry per date, each holding
// hours hourly entries starting at 00:00.
func Body(dates []string, hours int) []byte {
	days := make([]any, 0, len(dates))
	for _, d := range dates {
		day, err := time.Parse("2006-01-02", d)
		if err != nil {
			panic(err)
		}
		hs := make([]any, 0, hours)
		for h := 0; h < hours; h++ {
			hs = append(hs, Hour(day.Add(time.Duration(h)*time.Hour)))
		}
		days = append(days, map[string]any{"date": d, "hour": hs})
	}

	body := map[string]any{
		"location": map[string]any{
			"name":    City,
			"region":  Region,
			"country": Country,
			"lat":     json.Number(Lat),
			"lon":     json.Number(Lon),
		},
		"forecast": map[string]any{"forecastday": days},
	}
	b, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	return b
}

// Hour returns one hourly entry. temp_c is 20.5 plus the hour of day; every
// other field of a given type carries a value no sibling field shares.
func Hour(ts time.Time) map[string]any {
	return map[string]any{
		"time_epoch": ts.Unix(),
		"time":       ts.Format("2006-01-02 15:04"),
		"temp_c":     json.Number(fmt.Sprintf("%d.5", 20+ts.Hour())),
		"temp_f":     json.Number("77.9"),
		"is_day":     1,
		"condition": map[string]any{
			"text": ConditionText,
			"icon": ConditionIcon,
			"code": 1063,
		},
		"wind_mph":       json.Number("4.3"),
		"wind_kph":       json.Number("6.8"),
		"wind_degree":    148,
		"wind_dir":       "SSE",
		"pressure_mb":    json.Number("1015.0"),
		"pressure_in":    json.Number("29.97"),
		"precip_mm":      json.Number("0.12"),
		"precip_in":      json.Number("0.01"),
		"snow_cm":        json.Number("0.02"),
		"humidity":       91,
		"cloud":          64,
		"feelslike_c":    json.Number("21.4"),
		"feelslike_f":    json.Number("70.6"),
		"windchill_c":    json.Number("21.3"),
		"windchill_f":    json.Number("70.3"),
		"heatindex_c":    json.Number("24.2"),
		"heatindex_f":    json.Number("75.6"),
		"dewpoint_c":     json.Number("20.1"),
		"dewpoint_f":     json.Number("68.2"),
		"will_it_rain":   2,
		"chance_of_rain": 87,
		"will_it_snow":   3,
		"chance_of_snow": 4,
		"vis_km":         json.Number("10.0"),
		"vis_miles":      json.Number("6.0"),
		"gust_mph":       json.Number("7.6"),
		"gust_kph":       json.Number("12.2"),
		"uv":             json.Number("0.3"),
	}
}

// Response decodes Body the way the HTTP client does.
func Response(dates []string, hours int) weather.RawResponse {
	var raw weather.RawResponse
	dec := json.NewDecoder(bytes.NewReader(Body(dates, hours)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		panic(err)
	}
	return raw
}

// Call records one Client.Fetch invocation.
type Call struct {
	City    string
	Date    time.Time
	Horizon weather.Horizon
}

// Client is a scripted weather.Client. History fetches return a single-day
// body for the requested date; forecast fetches return today and tomorrow
// relative to Now. Fail, when set, is consulted first.
type Client struct {
	Hours int
	Now   func() time.Time
	Fail  func(date time.Time, horizon weather.Horizon) error

	mu    sync.Mutex
	calls []Call
}

func (c *Client) Fetch(_ context.Context, city string, date time.Time, horizon weather.Horizon) (weather.RawResponse, error) {
	c.mu.Lock()
	c.calls = append(c.calls, Call{City: city, Date: date, Horizon: horizon})
	c.mu.Unlock()

	if c.Fail != nil {
		if err := c.Fail(date, horizon); err != nil {
			return nil, err
		}
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	hours := c.Hours
	if hours == 0 {
		hours = 24
	}

	if horizon == weather.HorizonForecast {
		today := now()
		return Response([]string{
			today.Format("2006-01-02"),
			today.AddDate(0, 0, 1).Format("2006-01-02"),
		}, hours), nil
	}
	if date.IsZero() {
		date = now().AddDate(0, 0, -1)
	}
	return Response([]string{date.Format("2006-01-02")}, hours), nil
}

// Calls returns the recorded invocations in order.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}
