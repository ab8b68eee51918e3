package upstream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

// RequestIDHeader carries the id attached to every outbound request.
const RequestIDHeader = "X-Request-Id"

// HTTPClientConfig bundles the HTTP client used for outbound calls.
type HTTPClientConfig struct {
	Client *http.Client
}

var (
	ErrRateLimited  = errors.New("rate limited")
	ErrServerError  = errors.New("server error")
	ErrUnexpected   = errors.New("unexpected status code")
	ErrCircuitOpen  = errors.New("circuit breaker open")
	ErrNoHTTPClient = errors.New("http client not configured")
)

// StatusPolicy decides whether a response status is a failure.
type StatusPolicy func(code int) error

// RequireSuccess rejects anything outside 2xx.
func RequireSuccess(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %d", ErrRateLimited, code)
	case code >= 500:
		return fmt.Errorf("%w: %d", ErrServerError, code)
	case code < 200 || code >= 300:
		return fmt.Errorf("%w: %d", ErrUnexpected, code)
	}
	return nil
}

// AnyStatus accepts every status; only transport errors fail.
func AnyStatus(int) error {
	return nil
}

// NewBreaker returns the circuit breaker settings shared by all upstreams.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
	})
}

// Do executes the request once through the circuit breaker. Failures are
// returned to the caller as they are; nothing is retried.
func Do(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	policy StatusPolicy,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, ErrNoHTTPClient
	}
	if policy == nil {
		policy = RequireSuccess
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	req, err := buildRequest()
	if err != nil {
		return nil, err
	}

	// Ensure the request obeys context cancellation.
	req = req.WithContext(ctx)
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}
	log.Printf("DEBUG: upstream %s %s %s [%s]", cb.Name(), req.Method, req.URL.Redacted(), req.Header.Get(RequestIDHeader))

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := cfg.Client.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		if statusErr := policy(resp.StatusCode); statusErr != nil {
			resp.Body.Close()
			return nil, statusErr
		}
		return resp, nil
	})
	if err != nil {
		// If circuit is open, report it as such.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return nil, err
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return resp, nil
}
