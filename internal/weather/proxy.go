package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/meetyo/meetyo-web/internal/upstream"
)

// DefaultContentType is relayed when the backend sends none.
const DefaultContentType = "application/octet-stream"

var (
	// ErrUpstreamFetch is returned when the backend could not be reached at all.
	ErrUpstreamFetch = errors.New("upstream_fetch_failed")
	// ErrInvalidResponse is returned when a body expected to be JSON is not.
	ErrInvalidResponse = errors.New("invalid_response")
	// ErrBackendStatus is returned by Fetch for a non-success backend status.
	ErrBackendStatus = errors.New("weather backend error")
)

// Relay is an unmodified backend answer.
type Relay struct {
	Status      int
	ContentType string
	Body        []byte
}

// Proxy forwards weather queries to the configured backend.
type Proxy struct {
	name     string
	endpoint string
	httpCfg  upstream.HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
}

// NewProxy builds a proxy for baseURL + path.
func NewProxy(client *http.Client, baseURL, path string) *Proxy {
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &Proxy{
		name:     "weather-backend",
		endpoint: strings.TrimRight(baseURL, "/") + path,
		httpCfg:  upstream.HTTPClientConfig{Client: client},
		circuit:  upstream.NewBreaker("weather-backend"),
	}
}

func (p *Proxy) Name() string {
	return p.name
}

// Endpoint returns the backend URL queries are forwarded to.
func (p *Proxy) Endpoint() string {
	return p.endpoint
}

// Forward sends rawQuery verbatim and relays status, content type and body.
// Only transport failures are errors; every backend status is relayed.
func (p *Proxy) Forward(ctx context.Context, rawQuery string) (Relay, error) {
	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, p.endpoint+"?"+rawQuery, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Cache-Control", "no-cache")
		return req, nil
	}

	resp, err := upstream.Do(ctx, p.httpCfg, p.circuit, upstream.AnyStatus, buildRequest)
	if err != nil {
		return Relay{}, fmt.Errorf("%w: %v", ErrUpstreamFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Relay{}, fmt.Errorf("%w: %v", ErrUpstreamFetch, err)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = DefaultContentType
	}

	return Relay{
		Status:      resp.StatusCode,
		ContentType: ct,
		Body:        body,
	}, nil
}

// Fetch runs a search query and decodes the forecast payload.
func (p *Proxy) Fetch(ctx context.Context, q SearchQuery) (*Response, error) {
	relay, err := p.Forward(ctx, q.Params().Encode())
	if err != nil {
		return nil, err
	}
	if relay.Status < 200 || relay.Status >= 300 {
		log.Printf("ERROR: weather backend answered %d for %s", relay.Status, q.Params().Encode())
		return nil, fmt.Errorf("%w: status %d", ErrBackendStatus, relay.Status)
	}
	return DecodeResponse(relay.Body)
}
