package place

import (
	"math"
	"strconv"
	"strings"
)

// Coord is a geographic coordinate in degrees.
type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Finite reports whether both components are finite numbers.
func (c Coord) Finite() bool {
	return isFinite(c.Lat) && isFinite(c.Lon)
}

// Address holds the partial structured address of a place.
// Any subset of fields may be empty; empty fields are omitted on the wire.
type Address struct {
	Road    string `json:"road,omitempty"`
	Suburb  string `json:"suburb,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

// IsZero reports whether no address field is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Place is a normalized, provider-agnostic location record.
type Place struct {
	ID      string   `json:"id" validate:"required"`
	Label   string   `json:"label" validate:"required"`
	Lat     float64  `json:"lat" validate:"finite"`
	Lon     float64  `json:"lon" validate:"finite"`
	Address *Address `json:"address,omitempty"`
}

// Coord returns the place coordinates.
func (p Place) Coord() Coord {
	return Coord{Lat: p.Lat, Lon: p.Lon}
}

// Valid reports whether the place can be used for a search submission.
func (p Place) Valid() bool {
	return p.Coord().Finite()
}

// ShortLabel returns the label up to its first comma.
func (p Place) ShortLabel() string {
	if i := strings.Index(p.Label, ","); i > 0 {
		return p.Label[:i]
	}
	return p.Label
}

// SecondaryLabel joins city, state and country with " · ", skipping empty parts.
func (p Place) SecondaryLabel() string {
	if p.Address == nil {
		return ""
	}
	var parts []string
	for _, s := range []string{p.Address.City, p.Address.State, p.Address.Country} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " · ")
}

// CoordID synthesizes the "lat,lon" identifier used when a provider omits one.
func CoordID(lat, lon string) string {
	return lat + "," + lon
}

// CoordLabel synthesizes the "lat, lon" label used when a provider omits one.
func CoordLabel(lat, lon string) string {
	return lat + ", " + lon
}

// FormatDegrees renders a coordinate component in its shortest exact form.
func FormatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FromCoord builds a place for a bare coordinate, e.g. a map click that
// has not been reverse geocoded.
func FromCoord(c Coord) Place {
	lat, lon := FormatDegrees(c.Lat), FormatDegrees(c.Lon)
	return Place{
		ID:    CoordID(lat, lon),
		Label: CoordLabel(lat, lon),
		Lat:   c.Lat,
		Lon:   c.Lon,
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
