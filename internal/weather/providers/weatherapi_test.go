package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/i474232898/weather-ingest/internal/store"
	"github.com/i474232898/weather-ingest/internal/weather"
	"github.com/i474232898/weather-ingest/internal/weather/weathertest"
)

type recordedRequest struct {
	path  string
	query url.Values
}

func newTestServer(t *testing.T, status int, body []byte) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqs = append(reqs, recordedRequest{path: r.URL.Path, query: r.URL.Query()})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), reqs...)
	}
}

func newTestClient(baseURL string, backoff BackoffConfig) *WeatherAPIClient {
	return NewWeatherAPIClient(NewHTTPClient(5*time.Second, false), WeatherAPIOptions{
		BaseURL: baseURL + "/",
		APIKey:  "test-key",
		Backoff: backoff,
		Now:     func() time.Time { return time.Date(2024, 10, 2, 1, 0, 0, 0, time.UTC) },
	}, nil)
}

func TestWeatherAPIHistoryRequest(t *testing.T) {
	srv, requests := newTestServer(t, http.StatusOK, weathertest.Body([]string{"2024-10-01"}, 24))
	client := newTestClient(srv.URL, BackoffConfig{})

	raw, err := client.Fetch(context.Background(), "Joinville", time.Time{}, weather.HorizonHistory)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := raw["forecast"]; !ok {
		t.Fatal("expected decoded body")
	}

	reqs := requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	r := reqs[0]
	if r.path != "/history.json" {
		t.Fatalf("path = %q", r.path)
	}
	want := map[string]string{"key": "test-key", "q": "Joinville", "dt": "2024-10-01", "aqi": "no", "alerts": "no"}
	for k, v := range want {
		if got := r.query.Get(k); got != v {
			t.Fatalf("query %s = %q, want %q", k, got, v)
		}
	}
}

func TestWeatherAPIHistoryExplicitDate(t *testing.T) {
	srv, requests := newTestServer(t, http.StatusOK, weathertest.Body([]string{"2023-05-17"}, 1))
	client := newTestClient(srv.URL, BackoffConfig{})

	date := time.Date(2023, 5, 17, 0, 0, 0, 0, time.UTC)
	if _, err := client.Fetch(context.Background(), "Joinville", date, weather.HorizonHistory); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := requests()[0].query.Get("dt"); got != "2023-05-17" {
		t.Fatalf("dt = %q", got)
	}
}

func TestWeatherAPIForecastRequest(t *testing.T) {
	srv, requests := newTestServer(t, http.StatusOK, weathertest.Body([]string{"2024-10-02", "2024-10-03"}, 24))
	client := newTestClient(srv.URL, BackoffConfig{})

	raw, err := client.Fetch(context.Background(), "Joinville", time.Time{}, weather.HorizonForecast)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := requests()[0]
	if r.path != "/forecast.json" || r.query.Get("days") != "2" {
		t.Fatalf("unexpected forecast request: %s %v", r.path, r.query)
	}
	if r.query.Has("dt") {
		t.Fatal("forecast request must not carry dt")
	}

	records, err := weather.Format(raw, weather.KindForecast)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if weather.BatchDate(records) != "2024-10-03" {
		t.Fatalf("unexpected batch date %q", weather.BatchDate(records))
	}
}

func TestWeatherAPIErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       []byte
		wantStatus int
		wantCalls  int
	}{
		{"bad request not retried", http.StatusBadRequest, []byte(`{"error":{"code":1006}}`), http.StatusBadRequest, 1},
		{"server error retried", http.StatusServiceUnavailable, nil, http.StatusServiceUnavailable, 3},
		{"undecodable body", http.StatusOK, []byte("<html>"), http.StatusOK, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, requests := newTestServer(t, tt.status, tt.body)
			client := newTestClient(srv.URL, BackoffConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond})

			_, err := client.Fetch(context.Background(), "Joinville", time.Time{}, weather.HorizonHistory)

			var te *weather.TransportError
			if !errors.As(err, &te) {
				t.Fatalf("expected TransportError, got %v", err)
			}
			if te.Status != tt.wantStatus {
				t.Fatalf("status = %d, want %d", te.Status, tt.wantStatus)
			}
			if te.Horizon != weather.HorizonHistory || te.City != "Joinville" {
				t.Fatalf("unexpected error context: %+v", te)
			}
			if got := len(requests()); got != tt.wantCalls {
				t.Fatalf("expected %d requests, got %d", tt.wantCalls, got)
			}
		})
	}
}

func TestWeatherAPIMissingKey(t *testing.T) {
	client := NewWeatherAPIClient(http.DefaultClient, WeatherAPIOptions{BaseURL: "http://127.0.0.1:1"}, nil)

	_, err := client.Fetch(context.Background(), "Joinville", time.Time{}, weather.HorizonForecast)
	if !errors.As(err, new(*weather.TransportError)) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestWeatherAPIClientErrorsKeepBreakerClosed(t *testing.T) {
	var (
		mu   sync.Mutex
		hits []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dt := r.URL.Query().Get("dt")
		mu.Lock()
		hits = append(hits, dt)
		mu.Unlock()
		if dt < "2024-10-08" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":1008,"message":"no data for date"}}`))
			return
		}
		_, _ = w.Write(weathertest.Body([]string{dt}, 2))
	}))
	t.Cleanup(srv.Close)

	mem := store.NewMemoryStore()
	runner := weather.NewRunner(newTestClient(srv.URL, BackoffConfig{}), mem, nil)
	b := weather.NewBackfiller(runner, nil, 0)

	summary, err := b.Backfill(context.Background(), "Joinville", "2024-10-01", "2024-10-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Processed != 3 || len(summary.Failed) != 7 {
		t.Fatalf("expected 3 processed and 7 failed days, got %d processed, failed=%v", summary.Processed, summary.Failed)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(hits) != 10 {
		t.Fatalf("expected one request per day, got %d: %v", len(hits), hits)
	}
	for _, date := range []string{"2024-10-08", "2024-10-09", "2024-10-10"} {
		if rows, _ := mem.List(context.Background(), weather.KindHistory, date); len(rows) != 2 {
			t.Fatalf("%s: expected 2 rows, got %d", date, len(rows))
		}
	}
}

func TestBreakerSuccess(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, true},
		{&statusError{code: http.StatusBadRequest, err: errUnexpected}, true},
		{&statusError{code: http.StatusNotFound, err: errUnexpected}, true},
		{&statusError{code: http.StatusTooManyRequests, err: errRateLimited}, false},
		{&statusError{code: http.StatusBadGateway, err: errServerError}, false},
		{errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		if got := breakerSuccess(tt.err); got != tt.want {
			t.Fatalf("breakerSuccess(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
