package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/weather-ingest/internal/common"
	"github.com/i474232898/weather-ingest/internal/weather"
)

// forecastDays is the fixed forecast window: today and tomorrow.
const forecastDays = 2

// WeatherAPIClient implements weather.Client for WeatherAPI.com history and
// forecast endpoints.
type WeatherAPIClient struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	logger  *zap.Logger
	now     func() time.Time
}

// WeatherAPIOptions configures a WeatherAPIClient.
type WeatherAPIOptions struct {
	BaseURL string
	APIKey  string
	Backoff BackoffConfig
	// Now resolves "yesterday" for history fetches without a date. Defaults to time.Now.
	Now func() time.Time
}

func NewWeatherAPIClient(client *http.Client, opts WeatherAPIOptions, logger *zap.Logger) *WeatherAPIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	backoff := opts.Backoff
	if backoff.MaxRetries > 0 && backoff.InitialInterval <= 0 {
		backoff.InitialInterval = 500 * time.Millisecond
	}

	return &WeatherAPIClient{
		name:    "weatherapi",
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: backoff,
		},
		circuit: newCircuitBreaker("weatherapi", logger),
		logger:  logger,
		now:     now,
	}
}

func (p *WeatherAPIClient) Name() string {
	return p.name
}

// Fetch requests history.json for date (yesterday when zero) or forecast.json
// for a two-day window, and returns the decoded body unvalidated.
func (p *WeatherAPIClient) Fetch(ctx context.Context, city string, date time.Time, horizon weather.Horizon) (weather.RawResponse, error) {
	fail := func(status int, err error) error {
		return &weather.TransportError{Horizon: horizon, City: city, Status: status, Err: err}
	}
	if p.apiKey == "" {
		return nil, fail(0, fmt.Errorf("weatherapi api key is not configured"))
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("q", city)
	values.Set("aqi", "no")
	values.Set("alerts", "no")

	var endpoint string
	switch horizon {
	case weather.HorizonHistory:
		if date.IsZero() {
			date = common.Yesterday(p.now())
		}
		endpoint = "history.json"
		values.Set("dt", common.FormatDate(date))
	case weather.HorizonForecast:
		endpoint = "forecast.json"
		values.Set("days", strconv.Itoa(forecastDays))
	default:
		return nil, fail(0, fmt.Errorf("unsupported horizon %q", horizon))
	}

	u := fmt.Sprintf("%s/%s?%s", p.baseURL, endpoint, values.Encode())
	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, u, nil)
	}

	p.logger.Debug("fetching weather",
		zap.String("provider", p.name),
		zap.String("endpoint", endpoint),
		zap.String("city", city),
		zap.String("dt", values.Get("dt")))

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, fail(statusCode(err), err)
	}
	defer resp.Body.Close()

	var raw weather.RawResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fail(resp.StatusCode, fmt.Errorf("decode body: %w", err))
	}
	return raw, nil
}
