package weather

import (
	"fmt"
	"strings"
)

// Kind tags a record as an observed (history) or predicted (forecast) hour.
// It is persisted as the is_forecast column.
type Kind int

const (
	KindHistory  Kind = 0
	KindForecast Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindHistory:
		return "history"
	case KindForecast:
		return "forecast"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Horizon returns the provider endpoint used to fetch records of this kind.
func (k Kind) Horizon() Horizon {
	if k == KindForecast {
		return HorizonForecast
	}
	return HorizonHistory
}

// ParseKind accepts "history" or "forecast" (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "history", "historical":
		return KindHistory, nil
	case "forecast":
		return KindForecast, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", s)
	}
}

// Horizon selects which provider endpoint a fetch targets.
type Horizon string

const (
	HorizonHistory  Horizon = "history"
	HorizonForecast Horizon = "forecast"
)

// RawResponse is the provider body decoded as-is. Numbers are kept as
// json.Number so they reach the store exactly as the provider sent them.
type RawResponse map[string]any

// Observation is one flattened hourly row of the forecast table.
type Observation struct {
	IsForecast Kind `json:"is_forecast"`

	Name    string `json:"name"`
	Region  string `json:"region"`
	Country string `json:"country"`
	Lat     string `json:"lat"`
	Lon     string `json:"lon"`

	TimeEpoch int64  `json:"time_epoch"`
	Date      string `json:"date"` // YYYY-MM-DD
	Time      string `json:"time"` // YYYY-MM-DD HH:MM, provider local time

	TempC         float64 `json:"temp_c"`
	TempF         float64 `json:"temp_f"`
	IsDay         int     `json:"is_day"`
	Condition     string  `json:"condition"`
	ConditionIcon string  `json:"condition_icon"`
	ConditionCode int     `json:"condition_code"`
	WindMph       float64 `json:"wind_mph"`
	WindKph       float64 `json:"wind_kph"`
	WindDegree    float64 `json:"wind_degree"`
	WindDir       string  `json:"wind_dir"`
	PressureMb    float64 `json:"pressure_mb"`
	PressureIn    float64 `json:"pressure_in"`
	PrecipMm      float64 `json:"precip_mm"`
	PrecipIn      float64 `json:"precip_in"`
	SnowCm        float64 `json:"snow_cm"`
	Humidity      float64 `json:"humidity"`
	Cloud         float64 `json:"cloud"`
	FeelslikeC    float64 `json:"feelslike_c"`
	FeelslikeF    float64 `json:"feelslike_f"`
	WindchillC    float64 `json:"windchill_c"`
	WindchillF    float64 `json:"windchill_f"`
	HeatindexC    float64 `json:"heatindex_c"`
	HeatindexF    float64 `json:"heatindex_f"`
	DewpointC     float64 `json:"dewpoint_c"`
	DewpointF     float64 `json:"dewpoint_f"`
	WillItRain    int     `json:"will_it_rain"`
	ChanceOfRain  int     `json:"chance_of_rain"`
	WillItSnow    int     `json:"will_it_snow"`
	ChanceOfSnow  int     `json:"chance_of_snow"`
	VisKm         float64 `json:"vis_km"`
	VisMiles      float64 `json:"vis_miles"`
	GustMph       float64 `json:"gust_mph"`
	GustKph       float64 `json:"gust_kph"`
	UV            float64 `json:"uv"`
}

// BatchDate returns the date shared by a batch, or "" for an empty batch.
func BatchDate(records []Observation) string {
	if len(records) == 0 {
		return ""
	}
	return records[0].Date
}
