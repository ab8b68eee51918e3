package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetyo/meetyo-web/internal/geocoding"
	"github.com/meetyo/meetyo-web/internal/place"
	"github.com/meetyo/meetyo-web/internal/store"
	"github.com/meetyo/meetyo-web/internal/weather"
)

type stubGeo struct {
	searches  int
	lastQuery string
	lastLimit int
	reverses  int
	lastOpts  geocoding.ReverseOptions
	places    []place.Place
	reversed  place.Place
	err       error
}

func (s *stubGeo) Search(_ context.Context, q string, limit int) ([]place.Place, error) {
	s.searches++
	s.lastQuery, s.lastLimit = q, limit
	return s.places, s.err
}

func (s *stubGeo) Reverse(_ context.Context, at place.Coord, opts geocoding.ReverseOptions) (place.Place, error) {
	s.reverses++
	s.lastOpts = opts
	if s.err != nil {
		return place.Place{}, s.err
	}
	p := s.reversed
	if opts.KeepInput {
		p.Lat, p.Lon = at.Lat, at.Lon
	}
	return p, nil
}

type stubWeather struct {
	relay   weather.Relay
	resp    *weather.Response
	err     error
	fetches int
	rawSeen string
	query   weather.SearchQuery
}

func (s *stubWeather) Forward(_ context.Context, raw string) (weather.Relay, error) {
	s.rawSeen = raw
	return s.relay, s.err
}

func (s *stubWeather) Fetch(_ context.Context, q weather.SearchQuery) (*weather.Response, error) {
	s.fetches++
	s.query = q
	return s.resp, s.err
}

type stubAgent struct{ seen string }

func (s *stubAgent) Ask(_ context.Context, msg string) (string, error) {
	s.seen = msg
	return "vai chover", nil
}

func newTestApp(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Date(2025, 10, 4, 9, 0, 0, 0, time.UTC) }
	}
	RegisterRoutes(app, deps)
	return app
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func get(t *testing.T, app *fiber.App, target string) (*http.Response, []byte) {
	return doRequest(t, app, httptest.NewRequest(http.MethodGet, target, nil))
}

func decodeError(t *testing.T, body []byte) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestGeoEmptyQuery(t *testing.T) {
	geo := &stubGeo{}
	app := newTestApp(Deps{Geo: geo})

	resp, body := get(t, app, "/api/geo?q=%20%20")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
	assert.Equal(t, "no-store", resp.Header.Get(fiber.HeaderCacheControl))
	assert.Zero(t, geo.searches)
}

func TestGeoSearch(t *testing.T) {
	geo := &stubGeo{places: []place.Place{{ID: "1", Label: "Vilhena, Rondônia, Brasil", Lat: -12.74, Lon: -60.14}}}
	app := newTestApp(Deps{Geo: geo})

	resp, body := get(t, app, "/api/geo?q=Vilhena&limit=5")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Vilhena", geo.lastQuery)
	assert.Equal(t, 5, geo.lastLimit)

	var got []place.Place
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Vilhena, Rondônia, Brasil", got[0].Label)

	get(t, app, "/api/geo?q=Vilhena&limit=abc")
	assert.Equal(t, geocoding.DefaultLimit, geo.lastLimit)
}

func TestGeoProviderError(t *testing.T) {
	app := newTestApp(Deps{Geo: &stubGeo{err: geocoding.ErrProvider}})

	resp, body := get(t, app, "/api/geo?q=Vilhena")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "geo provider error", decodeError(t, body)["error"])
}

func TestReverseValidation(t *testing.T) {
	geo := &stubGeo{}
	app := newTestApp(Deps{Geo: geo})

	resp, body := get(t, app, "/api/reverse?lat=-12.7")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "lat/lon obrigatórios", decodeError(t, body)["error"])

	resp, body = get(t, app, "/api/reverse?lat=abc&lon=-60")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "lat/lon inválidos", decodeError(t, body)["error"])

	assert.Zero(t, geo.reverses)
}

func TestReverseKeepsInput(t *testing.T) {
	geo := &stubGeo{reversed: place.Place{ID: "99", Label: "Centro, Vilhena", Lat: -12.7, Lon: -60.1}}
	app := newTestApp(Deps{Geo: geo})

	resp, body := get(t, app, "/api/reverse?lat=-12.7439&lon=-60.1469&keep=true")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, geo.lastOpts.KeepInput)

	var got place.Place
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "99", got.ID)
	assert.Equal(t, -12.7439, got.Lat)
	assert.Equal(t, -60.1469, got.Lon)
}

func TestWeatherRelay(t *testing.T) {
	backend := &stubWeather{relay: weather.Relay{
		Status:      http.StatusTeapot,
		ContentType: "text/plain",
		Body:        []byte("short and stout"),
	}}
	app := newTestApp(Deps{Weather: backend})

	resp, body := get(t, app, "/api/weather?lat=-12.7&lon=-60.1&date=20251004")
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get(fiber.HeaderContentType))
	assert.Equal(t, "short and stout", string(body))
	assert.Equal(t, "lat=-12.7&lon=-60.1&date=20251004", backend.rawSeen)
}

func TestWeatherUpstreamDown(t *testing.T) {
	backend := &stubWeather{err: errors.Join(weather.ErrUpstreamFetch, errors.New("connection refused"))}
	app := newTestApp(Deps{Weather: backend})

	resp, body := get(t, app, "/api/weather?lat=1&lon=2")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	got := decodeError(t, body)
	assert.Equal(t, "upstream_fetch_failed", got["error"])
	assert.Contains(t, got["detail"], "connection refused")
}

func TestCardRequiresMetrics(t *testing.T) {
	backend := &stubWeather{}
	app := newTestApp(Deps{Geo: &stubGeo{}, Weather: backend})

	resp, _ := get(t, app, "/api/card?lat=-12.7&lon=-60.1&label=Vilhena&metrics=")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, backend.fetches)

	resp, _ = get(t, app, "/api/card?lat=-12.7&lon=-60.1&label=Vilhena&metrics=snow")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, backend.fetches)
}

func TestCardRendersForecast(t *testing.T) {
	mean := 27.4
	backend := &stubWeather{resp: &weather.Response{
		Temperature: &weather.Temperature{Mean: &mean},
	}}
	app := newTestApp(Deps{Geo: &stubGeo{}, Weather: backend})

	resp, body := get(t, app, "/api/card?lat=-12.7&lon=-60.1&label=Vilhena,%20Rond%C3%B4nia&date=2025-10-04&metrics=temperature,rain")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, backend.fetches)
	assert.Equal(t, "20251004", weather.FormatDate(backend.query.Date))
	assert.Equal(t, weather.MetricFlags{Temperature: true, Rain: true}, backend.query.Flags())

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "Vilhena", got["city"])
	assert.Contains(t, got, "temperature")
	assert.NotContains(t, got, "rain")
}

func TestCardInvalidResponse(t *testing.T) {
	backend := &stubWeather{err: weather.ErrInvalidResponse}
	app := newTestApp(Deps{Geo: &stubGeo{}, Weather: backend})

	resp, body := get(t, app, "/api/card?lat=-12.7&lon=-60.1&label=Vilhena")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "invalid_response", decodeError(t, body)["error"])
}

func TestForecastPage(t *testing.T) {
	backend := &stubWeather{resp: &weather.Response{}}
	app := newTestApp(Deps{Geo: &stubGeo{}, Weather: backend})

	resp, body := get(t, app, "/previsao?lat=-12.7&lon=-60.1&label=Vilhena")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/html")
	assert.Contains(t, string(body), "Sem dados para esta data.")
}

func TestAgent(t *testing.T) {
	asker := &stubAgent{}
	app := newTestApp(Deps{Agent: asker})

	req := httptest.NewRequest(http.MethodPost, "/api/agent", strings.NewReader(`{"message":"  vai chover?  "}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, body := doRequest(t, app, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"answer":"vai chover"}`, string(body))
	assert.Equal(t, "vai chover?", asker.seen)

	req = httptest.NewRequest(http.MethodPost, "/api/agent", strings.NewReader(`{"message":"   "}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, _ = doRequest(t, app, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthReportsLatestProbe(t *testing.T) {
	probes := store.NewMemoryStore(10, time.Hour)
	probes.SaveProbe(store.Probe{Target: "http://backend", Timestamp: time.Now(), Status: 200})
	app := newTestApp(Deps{Probes: probes, ProbeTarget: "http://backend"})

	resp, body := get(t, app, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "ok", got["status"])
	assert.Contains(t, got, "backend")
}

func TestIndexPage(t *testing.T) {
	app := newTestApp(Deps{})
	resp, body := get(t, app, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "leaflet")
}

func TestHealthHistory(t *testing.T) {
	probes := store.NewMemoryStore(10, 0)
	now := time.Now().UTC()
	probes.SaveProbe(store.Probe{Target: "http://backend", Timestamp: now.Add(-2 * time.Hour), Err: "timeout"})
	probes.SaveProbe(store.Probe{Target: "http://backend", Timestamp: now.Add(-time.Minute), Status: 200})
	app := newTestApp(Deps{Probes: probes, ProbeTarget: "http://backend", Now: time.Now})

	var got struct {
		History []store.Probe `json:"history"`
	}
	resp, body := get(t, app, "/health?history=true")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Len(t, got.History, 2)

	resp, body = get(t, app, "/health?history=true&since=1h")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got.History, 1)
	assert.Equal(t, 200, got.History[0].Status)

	resp, _ = get(t, app, "/health?history=true&since=soon")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
