package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/meetyo/meetyo-web/internal/common"
	"github.com/meetyo/meetyo-web/internal/place"
	"github.com/meetyo/meetyo-web/internal/upstream"
)

const (
	// DefaultLimit is the number of search results when the caller gives none.
	DefaultLimit = 8
	// MaxLimit is the largest page Nominatim serves.
	MaxLimit = 40
)

var (
	// ErrProvider is returned when the geocoding provider answers with a non-success status.
	ErrProvider = errors.New("geo provider error")
	// ErrReverseProvider is the reverse-endpoint counterpart of ErrProvider.
	ErrReverseProvider = errors.New("reverse provider error")
	// ErrInvalidCoord is returned for a non-finite reverse lookup coordinate.
	ErrInvalidCoord = errors.New("lat/lon must be finite numbers")
)

// Options configures a Nominatim client.
type Options struct {
	BaseURL        string
	UserAgent      string
	AcceptLanguage string
	// RPS caps outbound requests per second; <= 0 disables limiting.
	RPS float64
}

// ReverseOptions tunes a reverse lookup.
type ReverseOptions struct {
	// KeepInput returns the queried coordinate instead of the one echoed by the provider.
	KeepInput bool
}

// Client talks to an OpenStreetMap Nominatim instance.
type Client struct {
	name           string
	baseURL        string
	userAgent      string
	acceptLanguage string
	httpCfg        upstream.HTTPClientConfig
	circuit        *gobreaker.CircuitBreaker
	limiter        *rate.Limiter
}

func NewClient(client *http.Client, opts Options) *Client {
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}

	return &Client{
		name:           "nominatim",
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		userAgent:      opts.UserAgent,
		acceptLanguage: opts.AcceptLanguage,
		httpCfg:        upstream.HTTPClientConfig{Client: client},
		circuit:        upstream.NewBreaker("nominatim"),
		limiter:        rate.NewLimiter(limit, 1),
	}
}

func (c *Client) Name() string {
	return c.name
}

// nominatimPlace is the subset of a Nominatim record we read.
// Every field may be absent.
type nominatimPlace struct {
	PlaceID     json.Number `json:"place_id"`
	DisplayName string      `json:"display_name"`
	Lat         string      `json:"lat"`
	Lon         string      `json:"lon"`
	Address     *struct {
		Road    string `json:"road"`
		Suburb  string `json:"suburb"`
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
}

func (n nominatimPlace) address() *place.Address {
	if n.Address == nil {
		return nil
	}
	a := place.Address{
		Road:    n.Address.Road,
		Suburb:  n.Address.Suburb,
		City:    common.FirstNonEmpty(n.Address.City, n.Address.Town, n.Address.Village),
		State:   n.Address.State,
		Country: n.Address.Country,
	}
	if a.IsZero() {
		return nil
	}
	return &a
}

// Search resolves free text into candidate places. An empty query returns
// an empty slice without contacting the provider.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]place.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []place.Place{}, nil
	}
	limit = normalizeLimit(limit)

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("format", "json")
		values.Set("addressdetails", "1")
		values.Set("limit", strconv.Itoa(limit))
		values.Set("q", query)

		req, err := http.NewRequest(http.MethodGet, c.baseURL+"/search?"+values.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept-Language", c.acceptLanguage)
		req.Header.Set("Cache-Control", "no-cache")
		return req, nil
	}

	var records []nominatimPlace
	if err := c.get(ctx, buildRequest, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	places := make([]place.Place, 0, len(records))
	for _, r := range records {
		lat, latErr := strconv.ParseFloat(r.Lat, 64)
		lon, lonErr := strconv.ParseFloat(r.Lon, 64)
		p := place.Place{
			ID:      r.PlaceID.String(),
			Label:   r.DisplayName,
			Lat:     lat,
			Lon:     lon,
			Address: r.address(),
		}
		if latErr != nil || lonErr != nil || !p.Valid() {
			continue
		}
		if p.ID == "" {
			p.ID = place.CoordID(r.Lat, r.Lon)
		}
		if p.Label == "" {
			p.Label = place.CoordLabel(r.Lat, r.Lon)
		}
		places = append(places, p)
		if len(places) == limit {
			break
		}
	}
	return places, nil
}

// Reverse resolves a coordinate into exactly one place.
func (c *Client) Reverse(ctx context.Context, at place.Coord, opts ReverseOptions) (place.Place, error) {
	if !at.Finite() {
		return place.Place{}, ErrInvalidCoord
	}
	latStr, lonStr := place.FormatDegrees(at.Lat), place.FormatDegrees(at.Lon)

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("format", "jsonv2")
		values.Set("addressdetails", "1")
		values.Set("zoom", "14")
		values.Set("accept-language", primaryLanguage(c.acceptLanguage))
		values.Set("lat", latStr)
		values.Set("lon", lonStr)

		req, err := http.NewRequest(http.MethodGet, c.baseURL+"/reverse?"+values.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Cache-Control", "no-cache")
		return req, nil
	}

	var r nominatimPlace
	if err := c.get(ctx, buildRequest, &r); err != nil {
		return place.Place{}, fmt.Errorf("%w: %v", ErrReverseProvider, err)
	}

	p := place.Place{
		ID:      r.PlaceID.String(),
		Label:   r.DisplayName,
		Lat:     at.Lat,
		Lon:     at.Lon,
		Address: r.address(),
	}
	if p.ID == "" {
		p.ID = place.CoordID(latStr, lonStr)
	}
	if p.Label == "" {
		p.Label = place.CoordLabel(latStr, lonStr)
	}
	if !opts.KeepInput {
		if lat, err := strconv.ParseFloat(r.Lat, 64); err == nil {
			p.Lat = lat
		}
		if lon, err := strconv.ParseFloat(r.Lon, 64); err == nil {
			p.Lon = lon
		}
		if !p.Valid() {
			p.Lat, p.Lon = at.Lat, at.Lon
		}
	}
	return p, nil
}

func (c *Client) get(ctx context.Context, buildRequest func() (*http.Request, error), out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait canceled: %w", err)
	}

	resp, err := upstream.Do(ctx, c.httpCfg, c.circuit, upstream.RequireSuccess, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// primaryLanguage turns "pt-BR,pt;q=0.9" into "pt-BR".
func primaryLanguage(acceptLanguage string) string {
	lang, _, _ := strings.Cut(acceptLanguage, ",")
	lang, _, _ = strings.Cut(lang, ";")
	return strings.TrimSpace(lang)
}
