// Package card turns a weather backend payload into the details card shown
// next to the map. Rendering never fails: absent groups are simply omitted.
package card

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/meetyo/meetyo-web/internal/weather"
)

// MaxHourly is the number of hour cells shown in the hourly strip.
const MaxHourly = 5

// Card is the view model of the details card.
type Card struct {
	City        string              `json:"city,omitempty"`
	DateLabel   string              `json:"date,omitempty"`
	Temperature *TemperatureSection `json:"temperature,omitempty"`
	Rain        *RainSection        `json:"rain,omitempty"`
	Wind        *WindSection        `json:"wind,omitempty"`
	Humidity    *HumiditySection    `json:"humidity,omitempty"`
	Hourly      []HourCell          `json:"hourly,omitempty"`
	Meta        *MetaSection        `json:"meta,omitempty"`
}

// Empty reports whether the card has no data section at all.
func (c Card) Empty() bool {
	return c.Temperature == nil && c.Rain == nil && c.Wind == nil &&
		c.Humidity == nil && len(c.Hourly) == 0 && c.Meta == nil
}

type Bucket struct {
	Label       string `json:"label"`
	Probability string `json:"probability"`
}

type TemperatureSection struct {
	Mean       string   `json:"mean,omitempty"`
	Likely     string   `json:"likely,omitempty"`
	Discomfort string   `json:"discomfort,omitempty"`
	Buckets    []Bucket `json:"buckets,omitempty"`
}

type RainSection struct {
	Probability string `json:"probability"`
}

type WindSection struct {
	Likely  string   `json:"likely,omitempty"`
	Buckets []Bucket `json:"buckets,omitempty"`
}

type HumiditySection struct {
	Mean string `json:"mean"`
}

type HourCell struct {
	Label       string `json:"label"`
	Rain        string `json:"rain"`
	Temperature string `json:"temperature,omitempty"`
}

type MetaSection struct {
	Confidence string `json:"confidence,omitempty"`
	Years      string `json:"years,omitempty"`
}

// Render builds the card for resp. now selects the hourly window and is
// interpreted in its own location.
func Render(resp *weather.Response, city, dateLabel string, now time.Time) Card {
	c := Card{City: city, DateLabel: dateLabel}
	if resp == nil {
		return c
	}

	c.Temperature = temperatureSection(resp.Temperature)
	if resp.Rain != nil && resp.Rain.Probability != nil {
		c.Rain = &RainSection{Probability: percent(*resp.Rain.Probability)}
	}
	c.Wind = windSection(resp.Wind)
	if resp.Humidity != nil && resp.Humidity.Mean != nil {
		c.Humidity = &HumiditySection{Mean: fmt.Sprintf("%.0f%%", *resp.Humidity.Mean)}
	}
	c.Hourly = hourly(resp.Hours, now)
	c.Meta = metaSection(resp.Meta)
	return c
}

func temperatureSection(t *weather.Temperature) *TemperatureSection {
	if t == nil {
		return nil
	}
	s := TemperatureSection{Buckets: buckets(t.Probabilities)}
	if t.Mean != nil {
		s.Mean = degrees(*t.Mean)
	}
	if t.Likely != nil {
		s.Likely = *t.Likely
	}
	if t.DiscomfortProbability != nil {
		s.Discomfort = percent(*t.DiscomfortProbability)
	}
	if s.Mean == "" && s.Likely == "" && s.Discomfort == "" && len(s.Buckets) == 0 {
		return nil
	}
	return &s
}

func windSection(w *weather.Wind) *WindSection {
	if w == nil {
		return nil
	}
	s := WindSection{Buckets: buckets(w.Probabilities)}
	if w.Likely != nil {
		s.Likely = *w.Likely
	}
	if s.Likely == "" && len(s.Buckets) == 0 {
		return nil
	}
	return &s
}

func metaSection(m *weather.Meta) *MetaSection {
	if m == nil {
		return nil
	}
	var s MetaSection
	if m.Confidence != nil {
		s.Confidence = percent(*m.Confidence)
	}
	if m.Years != nil {
		s.Years = fmt.Sprintf("%d", *m.Years)
	}
	if s == (MetaSection{}) {
		return nil
	}
	return &s
}

// buckets orders probability buckets from most to least likely.
func buckets(probs map[string]float64) []Bucket {
	if len(probs) == 0 {
		return nil
	}
	labels := make([]string, 0, len(probs))
	for label := range probs {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		pi, pj := probs[labels[i]], probs[labels[j]]
		if pi != pj {
			return pi > pj
		}
		return labels[i] < labels[j]
	})

	out := make([]Bucket, 0, len(labels))
	for _, label := range labels {
		out = append(out, Bucket{Label: label, Probability: percent(probs[label])})
	}
	return out
}

type hourEntry struct {
	key  string
	at   time.Time
	data *weather.Hour
}

// hourly picks up to MaxHourly consecutive rain-carrying entries starting
// at the first one at or after now's hour, or at the first entry when none
// is. Dated keys order by their full timestamp so a strip can cross
// midnight; bare hour keys are read as hours of now's day.
func hourly(hours map[string]*weather.Hour, now time.Time) []HourCell {
	var entries []hourEntry
	for key, h := range hours {
		if h == nil || h.Rain == nil {
			continue
		}
		t, ok := weather.HourTime(key, now, now.Location())
		if !ok {
			continue
		}
		entries = append(entries, hourEntry{key: key, at: t, data: h})
	}
	if len(entries) == 0 {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].at.Equal(entries[j].at) {
			return entries[i].at.Before(entries[j].at)
		}
		return entries[i].key < entries[j].key
	})

	current := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	start := 0
	for i, e := range entries {
		if !e.at.Before(current) {
			start = i
			break
		}
	}
	end := start + MaxHourly
	if end > len(entries) {
		end = len(entries)
	}

	cells := make([]HourCell, 0, end-start)
	for _, e := range entries[start:end] {
		cell := HourCell{
			Label: fmt.Sprintf("%02d:00", e.at.Hour()),
			Rain:  percent(*e.data.Rain),
		}
		if e.data.Temperature != nil {
			cell.Temperature = degrees(*e.data.Temperature)
		}
		cells = append(cells, cell)
	}
	return cells
}

func degrees(v float64) string {
	return fmt.Sprintf("%.0f°", math.Round(v))
}

// percent renders a [0, 1] fraction as a whole percentage.
func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", math.Round(v*100))
}

var weekdays = [...]string{"domingo", "segunda-feira", "terça-feira", "quarta-feira", "quinta-feira", "sexta-feira", "sábado"}

// DateLabel formats d as "sábado, 04/10/2025".
func DateLabel(d time.Time) string {
	if d.IsZero() {
		return ""
	}
	return weekdays[d.Weekday()] + ", " + d.Format("02/01/2006")
}
