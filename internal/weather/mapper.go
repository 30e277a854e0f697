package weather

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DayIndex returns which forecastday entry holds the hours for a kind.
// History responses carry the single requested day at index 0. Forecast
// responses carry today and tomorrow; only tomorrow (index 1) is stored.
func DayIndex(kind Kind) int {
	if kind == KindForecast {
		return 1
	}
	return 0
}

// Format flattens the hours of the day selected by DayIndex(kind).
func Format(raw RawResponse, kind Kind) ([]Observation, error) {
	return FormatDay(raw, kind, DayIndex(kind))
}

// FormatDay flattens forecast.forecastday[dayIndex].hour into observations
// tagged with kind. Values are copied without conversion. Any missing or
// mistyped field fails the whole call.
func FormatDay(raw RawResponse, kind Kind, dayIndex int) ([]Observation, error) {
	root := &node{path: "$", value: map[string]any(raw)}

	loc := root.object("location")
	name := loc.text("name")
	region := loc.text("region")
	country := loc.text("country")
	lat := loc.numberText("lat")
	lon := loc.numberText("lon")
	if loc.err != nil {
		return nil, loc.err
	}

	days := root.object("forecast").list("forecastday")
	if days.err != nil {
		return nil, days.err
	}
	day := days.index(dayIndex)
	hours := day.list("hour")
	if hours.err != nil {
		return nil, hours.err
	}

	items := hours.value.([]any)
	records := make([]Observation, 0, len(items))
	for i := range items {
		h := hours.index(i)
		ts := h.text("time")
		date, _, _ := strings.Cut(ts, " ")
		cond := h.object("condition")

		o := Observation{
			IsForecast: kind,
			Name:       name,
			Region:     region,
			Country:    country,
			Lat:        lat,
			Lon:        lon,

			TimeEpoch: h.integer("time_epoch"),
			Date:      date,
			Time:      ts,

			TempC:         h.number("temp_c"),
			TempF:         h.number("temp_f"),
			IsDay:         int(h.integer("is_day")),
			Condition:     cond.text("text"),
			ConditionIcon: cond.text("icon"),
			ConditionCode: int(cond.integer("code")),
			WindMph:       h.number("wind_mph"),
			WindKph:       h.number("wind_kph"),
			WindDegree:    h.number("wind_degree"),
			WindDir:       h.text("wind_dir"),
			PressureMb:    h.number("pressure_mb"),
			PressureIn:    h.number("pressure_in"),
			PrecipMm:      h.number("precip_mm"),
			PrecipIn:      h.number("precip_in"),
			SnowCm:        h.number("snow_cm"),
			Humidity:      h.number("humidity"),
			Cloud:         h.number("cloud"),
			FeelslikeC:    h.number("feelslike_c"),
			FeelslikeF:    h.number("feelslike_f"),
			WindchillC:    h.number("windchill_c"),
			WindchillF:    h.number("windchill_f"),
			HeatindexC:    h.number("heatindex_c"),
			HeatindexF:    h.number("heatindex_f"),
			DewpointC:     h.number("dewpoint_c"),
			DewpointF:     h.number("dewpoint_f"),
			WillItRain:    int(h.integer("will_it_rain")),
			ChanceOfRain:  int(h.integer("chance_of_rain")),
			WillItSnow:    int(h.integer("will_it_snow")),
			ChanceOfSnow:  int(h.integer("chance_of_snow")),
			VisKm:         h.number("vis_km"),
			VisMiles:      h.number("vis_miles"),
			GustMph:       h.number("gust_mph"),
			GustKph:       h.number("gust_kph"),
			UV:            h.number("uv"),
		}
		if cond.err != nil {
			return nil, cond.err
		}
		if h.err != nil {
			return nil, h.err
		}
		records = append(records, o)
	}
	return records, nil
}

// node walks decoded JSON. The first failure sticks in err and every later
// accessor on the same node (or its children) returns a zero value.
type node struct {
	path  string
	value any
	err   error
}

func (n *node) fail(path, format string, args ...any) {
	if n.err == nil {
		n.err = &MappingError{Path: path, Reason: fmt.Sprintf(format, args...)}
	}
}

func (n *node) field(key string) (any, string, bool) {
	p := n.path + "." + key
	if n.err != nil {
		return nil, p, false
	}
	m, ok := n.value.(map[string]any)
	if !ok {
		n.fail(n.path, "expected object, got %T", n.value)
		return nil, p, false
	}
	v, ok := m[key]
	if !ok {
		n.fail(p, "missing field")
		return nil, p, false
	}
	if v == nil {
		n.fail(p, "null value")
		return nil, p, false
	}
	return v, p, true
}

func (n *node) child(key string, want string) *node {
	v, p, ok := n.field(key)
	c := &node{path: p, value: v, err: n.err}
	if !ok {
		return c
	}
	switch want {
	case "object":
		if _, isMap := v.(map[string]any); !isMap {
			c.fail(p, "expected object, got %T", v)
		}
	case "array":
		if _, isList := v.([]any); !isList {
			c.fail(p, "expected array, got %T", v)
		}
	}
	return c
}

func (n *node) object(key string) *node { return n.child(key, "object") }

func (n *node) list(key string) *node { return n.child(key, "array") }

func (n *node) index(i int) *node {
	p := fmt.Sprintf("%s[%d]", n.path, i)
	c := &node{path: p, err: n.err}
	if n.err != nil {
		return c
	}
	items, ok := n.value.([]any)
	if !ok {
		c.fail(n.path, "expected array, got %T", n.value)
		return c
	}
	if i < 0 || i >= len(items) {
		c.fail(p, "index out of range (len %d)", len(items))
		return c
	}
	c.value = items[i]
	return c
}

func (n *node) text(key string) string {
	v, p, ok := n.field(key)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		n.fail(p, "expected string, got %T", v)
	}
	return s
}

// numberText returns a numeric field as the literal the provider sent.
func (n *node) numberText(key string) string {
	v, p, ok := n.field(key)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return t
	default:
		n.fail(p, "expected number, got %T", v)
		return ""
	}
}

func (n *node) number(key string) float64 {
	v, p, ok := n.field(key)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			n.fail(p, "invalid number %q", t)
		}
		return f
	case float64:
		return t
	default:
		n.fail(p, "expected number, got %T", v)
		return 0
	}
}

func (n *node) integer(key string) int64 {
	v, p, ok := n.field(key)
	if !ok {
		return 0
	}
	var f float64
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		var err error
		if f, err = t.Float64(); err != nil {
			n.fail(p, "invalid number %q", t)
			return 0
		}
	case float64:
		f = t
	default:
		n.fail(p, "expected integer, got %T", v)
		return 0
	}
	if f != math.Trunc(f) {
		n.fail(p, "expected integer, got %v", f)
		return 0
	}
	return int64(f)
}
