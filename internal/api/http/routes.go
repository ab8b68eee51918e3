package httpapi

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/meetyo/meetyo-web/internal/agent"
	"github.com/meetyo/meetyo-web/internal/card"
	"github.com/meetyo/meetyo-web/internal/common"
	"github.com/meetyo/meetyo-web/internal/geocoding"
	"github.com/meetyo/meetyo-web/internal/mapview"
	"github.com/meetyo/meetyo-web/internal/place"
	"github.com/meetyo/meetyo-web/internal/search"
	"github.com/meetyo/meetyo-web/internal/store"
	"github.com/meetyo/meetyo-web/internal/weather"
	"github.com/meetyo/meetyo-web/internal/web"
)

var validate = common.NewValidator()

// Geocoder is the forward and reverse geocoding provider.
type Geocoder interface {
	Search(ctx context.Context, query string, limit int) ([]place.Place, error)
	Reverse(ctx context.Context, at place.Coord, opts geocoding.ReverseOptions) (place.Place, error)
}

// WeatherBackend forwards raw queries and runs typed forecast queries.
type WeatherBackend interface {
	Forward(ctx context.Context, rawQuery string) (weather.Relay, error)
	Fetch(ctx context.Context, q weather.SearchQuery) (*weather.Response, error)
}

type Asker interface {
	Ask(ctx context.Context, message string) (string, error)
}

// ProbeReader exposes the keep-alive probe history.
type ProbeReader interface {
	GetLatest(target string) (store.Probe, error)
	GetRange(target string, from, to time.Time) ([]store.Probe, error)
}

// Deps are the collaborators of the HTTP surface, built once at startup.
type Deps struct {
	Geo     Geocoder
	Weather WeatherBackend
	Agent   Asker
	Probes  ProbeReader
	// ProbeTarget is the keep-alive URL reported by /health.
	ProbeTarget string
	Now         func() time.Time
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	app.Get("/", func(c *fiber.Ctx) error {
		c.Type("html", "utf-8")
		return c.Send(web.Index())
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		body := fiber.Map{
			"status":  "ok",
			"service": "meetyo-web",
		}
		if deps.Probes != nil && deps.ProbeTarget != "" {
			if probe, err := deps.Probes.GetLatest(deps.ProbeTarget); err == nil {
				body["backend"] = probe
			}
			// ?history=true adds every retained probe, optionally limited by ?since=1h.
			if c.QueryBool("history") {
				from := time.Time{}
				if raw := c.Query("since"); raw != "" {
					since, err := time.ParseDuration(raw)
					if err != nil || since <= 0 {
						return newError(fiber.StatusBadRequest, "since inválido")
					}
					from = deps.Now().Add(-since)
				}
				probes, err := deps.Probes.GetRange(deps.ProbeTarget, from, deps.Now())
				if err != nil {
					probes = []store.Probe{}
				}
				body["history"] = probes
			}
		}
		return c.JSON(body)
	})

	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.Next()
	})

	api.Get("/geo", func(c *fiber.Ctx) error {
		q := strings.TrimSpace(c.Query("q"))
		limit := c.QueryInt("limit", geocoding.DefaultLimit)

		if q == "" {
			return c.JSON([]place.Place{})
		}

		places, err := deps.Geo.Search(c.UserContext(), q, limit)
		if err != nil {
			return &Error{Code: fiber.StatusInternalServerError, Message: "geo provider error", Detail: err.Error()}
		}
		return c.JSON(places)
	})

	api.Get("/reverse", func(c *fiber.Ctx) error {
		at, err := parseCoordQuery(c)
		if err != nil {
			return err
		}

		p, err := deps.Geo.Reverse(c.UserContext(), at, geocoding.ReverseOptions{KeepInput: c.QueryBool("keep")})
		if err != nil {
			return &Error{Code: fiber.StatusInternalServerError, Message: "reverse provider error", Detail: err.Error()}
		}
		return c.JSON(p)
	})

	api.Get("/weather", func(c *fiber.Ctx) error {
		relay, err := deps.Weather.Forward(c.UserContext(), string(c.Request().URI().QueryString()))
		if err != nil {
			return &Error{Code: fiber.StatusBadGateway, Message: weather.ErrUpstreamFetch.Error(), Detail: err.Error()}
		}

		c.Status(relay.Status)
		c.Set(fiber.HeaderContentType, relay.ContentType)
		return c.Send(relay.Body)
	})

	api.Get("/card", func(c *fiber.Ctx) error {
		out, err := forecastCard(c, deps)
		if err != nil {
			return err
		}
		return c.JSON(out)
	})

	api.Post("/agent", func(c *fiber.Ctx) error {
		var req agentRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		req.Message = strings.TrimSpace(req.Message)
		if err := validate.Struct(req); err != nil {
			return newError(fiber.StatusBadRequest, agent.ErrEmptyMessage.Error())
		}

		answer, err := deps.Agent.Ask(c.UserContext(), req.Message)
		if err != nil {
			return &Error{Code: fiber.StatusBadGateway, Message: "agent backend error", Detail: err.Error()}
		}
		return c.JSON(fiber.Map{"answer": answer})
	})

	app.Get("/previsao", func(c *fiber.Ctx) error {
		out, err := forecastCard(c, deps)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := card.WriteHTML(&buf, out); err != nil {
			return err
		}
		c.Type("html", "utf-8")
		return c.Send(web.Page("Previsão", buf.Bytes()))
	})
}

type agentRequest struct {
	Message string `json:"message" validate:"required"`
}

// coordQuery holds the lat/lon query parameters of a point.
type coordQuery struct {
	Lat string `validate:"required,latitude"`
	Lon string `validate:"required,longitude"`
}

func parseCoordQuery(c *fiber.Ctx) (place.Coord, error) {
	q := coordQuery{
		Lat: strings.TrimSpace(c.Query("lat")),
		Lon: strings.TrimSpace(c.Query("lon")),
	}
	if q.Lat == "" || q.Lon == "" {
		return place.Coord{}, newError(fiber.StatusBadRequest, "lat/lon obrigatórios")
	}
	if err := validate.Struct(q); err != nil {
		return place.Coord{}, &Error{Code: fiber.StatusBadRequest, Message: "lat/lon inválidos", Detail: err.Error()}
	}

	lat, _ := strconv.ParseFloat(q.Lat, 64)
	lon, _ := strconv.ParseFloat(q.Lon, 64)
	return place.Coord{Lat: lat, Lon: lon}, nil
}

// forecastCard runs the whole search flow for one request: form state from
// the query, reverse lookup when no label is given, fetch, render.
func forecastCard(c *fiber.Ctx, deps Deps) (card.Card, error) {
	now := deps.Now()
	state := search.DefaultState(now)

	if raw := c.Query("date"); raw != "" {
		d, err := parseDate(raw, now.Location())
		if err != nil {
			return card.Card{}, &Error{Code: fiber.StatusBadRequest, Message: search.ErrDateRequired.Error(), Detail: err.Error()}
		}
		state.Date = d
	}
	if raw, ok := queryValue(c, "metrics"); ok {
		metrics, err := weather.ParseMetricList(raw)
		if err != nil {
			return card.Card{}, &Error{Code: fiber.StatusBadRequest, Message: search.ErrMetricsRequired.Error(), Detail: err.Error()}
		}
		state.Metrics = metrics
	}

	form := search.NewForm(search.NewLocalState(state), now)
	session := search.NewSession(form, mapview.New(mapview.Options{}), deps.Geo, deps.Weather, fixedClock{now})

	if c.Query("lat") != "" || c.Query("lon") != "" {
		at, err := parseCoordQuery(c)
		if err != nil {
			return card.Card{}, err
		}
		if label := strings.TrimSpace(c.Query("label")); label != "" {
			p := place.FromCoord(at)
			p.Label = label
			session.SelectPlace(&p)
		} else {
			// A failed lookup still leaves the bare coordinate selected.
			_, _ = session.MapClicked(c.UserContext(), at)
		}
	}

	if err := form.Validate(); err != nil {
		return card.Card{}, &Error{Code: fiber.StatusBadRequest, Message: "invalid search", Detail: err.Error()}
	}

	out, err := session.Submit(c.UserContext())
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, search.ErrInvalidResponse):
		return card.Card{}, &Error{Code: fiber.StatusBadGateway, Message: weather.ErrInvalidResponse.Error(), Detail: err.Error()}
	case errors.Is(err, weather.ErrUpstreamFetch):
		return card.Card{}, &Error{Code: fiber.StatusBadGateway, Message: weather.ErrUpstreamFetch.Error(), Detail: err.Error()}
	case errors.Is(err, weather.ErrBackendStatus):
		return card.Card{}, &Error{Code: fiber.StatusBadGateway, Message: weather.ErrBackendStatus.Error(), Detail: err.Error()}
	}
	return card.Card{}, err
}

// queryValue distinguishes an absent parameter from an empty one.
func queryValue(c *fiber.Ctx, key string) (string, bool) {
	args := c.Request().URI().QueryArgs()
	if !args.Has(key) {
		return "", false
	}
	return string(args.Peek(key)), true
}

// parseDate accepts YYYY-MM-DD or YYYYMMDD in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	if d, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return d, nil
	}
	return time.ParseInLocation(weather.DateLayout, s, loc)
}

type fixedClock struct{ now time.Time }

func (f fixedClock) Now() time.Time { return f.now }

func (f fixedClock) AfterFunc(d time.Duration, fn func()) search.Timer {
	return time.AfterFunc(d, fn)
}
