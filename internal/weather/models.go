package weather

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/meetyo/meetyo-web/internal/place"
)

// Metric is one of the weather quantities a search can ask for.
type Metric string

const (
	MetricTemperature Metric = "temperature"
	MetricRain        Metric = "rain"
	MetricWind        Metric = "wind"
	MetricHumidity    Metric = "humidity"
)

// AllMetrics lists every metric in wire order.
var AllMetrics = []Metric{MetricTemperature, MetricRain, MetricWind, MetricHumidity}

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllMetrics {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// ParseMetricList parses a comma separated list such as "temperature,rain".
func ParseMetricList(s string) ([]Metric, error) {
	var out []Metric
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		m, err := ParseMetric(part)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// MetricFlags is the boolean form of a metric selection sent upstream.
type MetricFlags struct {
	Temperature bool `json:"temperature"`
	Rain        bool `json:"rain"`
	Wind        bool `json:"wind"`
	Humidity    bool `json:"humidity"`
}

// ToFlags converts a selected-metric list into flags. Order and duplicates
// in selected do not matter.
func ToFlags(selected []Metric) MetricFlags {
	var f MetricFlags
	for _, m := range selected {
		switch m {
		case MetricTemperature:
			f.Temperature = true
		case MetricRain:
			f.Rain = true
		case MetricWind:
			f.Wind = true
		case MetricHumidity:
			f.Humidity = true
		}
	}
	return f
}

// Map returns the flags keyed by metric name.
func (f MetricFlags) Map() map[Metric]bool {
	return map[Metric]bool{
		MetricTemperature: f.Temperature,
		MetricRain:        f.Rain,
		MetricWind:        f.Wind,
		MetricHumidity:    f.Humidity,
	}
}

// Any reports whether at least one metric is selected.
func (f MetricFlags) Any() bool {
	return f.Temperature || f.Rain || f.Wind || f.Humidity
}

// DateLayout is the upstream date encoding (YYYYMMDD).
const DateLayout = "20060102"

// FormatDate encodes the calendar date of d in d's own location.
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// SearchQuery is a validated place + date + metric selection.
type SearchQuery struct {
	Place   *place.Place `validate:"omitempty"`
	Date    time.Time    `validate:"required"`
	Metrics []Metric     `validate:"required,min=1,dive,oneof=temperature rain wind humidity"`
}

// Flags returns the metric flags of the query.
func (q SearchQuery) Flags() MetricFlags {
	return ToFlags(q.Metrics)
}

// Params serializes the query into outbound query parameters.
func (q SearchQuery) Params() url.Values {
	values := url.Values{}
	if q.Place != nil {
		values.Set("lat", place.FormatDegrees(q.Place.Lat))
		values.Set("lon", place.FormatDegrees(q.Place.Lon))
	}
	values.Set("date", FormatDate(q.Date))
	for m, on := range q.Flags().Map() {
		values.Set(string(m), strconv.FormatBool(on))
	}
	return values
}

// Response is the loosely structured forecast payload of the backend.
// Every field is optional.
type Response struct {
	Temperature *Temperature     `json:"temperature,omitempty"`
	Rain        *Rain            `json:"rain,omitempty"`
	Wind        *Wind            `json:"wind,omitempty"`
	Humidity    *Humidity        `json:"humidity,omitempty"`
	Hours       map[string]*Hour `json:"hours,omitempty"`
	Meta        *Meta            `json:"meta,omitempty"`
}

// Temperature group. Probabilities are fractions in [0, 1] keyed by bucket label.
type Temperature struct {
	Mean                  *float64           `json:"mean,omitempty"`
	Probabilities         map[string]float64 `json:"probabilities,omitempty"`
	Likely                *string            `json:"likely,omitempty"`
	DiscomfortProbability *float64           `json:"discomfort_probability,omitempty"`
}

type Rain struct {
	Probability *float64 `json:"probability,omitempty"`
}

type Wind struct {
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
	Likely        *string            `json:"likely,omitempty"`
}

type Humidity struct {
	Mean *float64 `json:"mean,omitempty"`
}

// Hour is the per-hour sub-block keyed by hour in Response.Hours.
type Hour struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Rain        *float64 `json:"rain,omitempty"`
	Wind        *float64 `json:"wind,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
}

type Meta struct {
	Confidence *float64 `json:"confidence,omitempty"`
	Years      *int     `json:"years,omitempty"`
}

// DecodeResponse parses a backend body. Any JSON object is accepted;
// missing groups stay nil.
func DecodeResponse(body []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &r, nil
}

// HourOf extracts the hour of day from an hour key such as "18", "18:00"
// or "2025-10-04T18:00".
func HourOf(key string) (int, bool) {
	if _, after, ok := strings.Cut(key, "T"); ok {
		key = after
	}
	digits := key
	if i := strings.IndexFunc(key, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		digits = key[:i]
	}
	if digits == "" || len(digits) > 2 {
		return 0, false
	}
	h, err := strconv.Atoi(digits)
	if err != nil || h > 23 {
		return 0, false
	}
	return h, true
}

var datedHourLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15",
	"2006-01-02 15:04",
}

// HourTime resolves an hour key to the start of its hour in loc. Keys that
// carry a date keep it; bare hour keys such as "18" fall on day.
func HourTime(key string, day time.Time, loc *time.Location) (time.Time, bool) {
	for _, layout := range datedHourLayouts {
		if t, err := time.ParseInLocation(layout, key, loc); err == nil {
			t = t.In(loc)
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc), true
		}
	}
	h, ok := HourOf(key)
	if !ok {
		return time.Time{}, false
	}
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, h, 0, 0, 0, loc), true
}
