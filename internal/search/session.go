package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/meetyo/meetyo-web/internal/card"
	"github.com/meetyo/meetyo-web/internal/geocoding"
	"github.com/meetyo/meetyo-web/internal/mapview"
	"github.com/meetyo/meetyo-web/internal/place"
	"github.com/meetyo/meetyo-web/internal/weather"
)

// ErrInvalidResponse is reported when the forecast body cannot be read.
var ErrInvalidResponse = errors.New("invalid response")

// Reverser resolves a coordinate into a place.
type Reverser interface {
	Reverse(ctx context.Context, at place.Coord, opts geocoding.ReverseOptions) (place.Place, error)
}

// Fetcher runs a forecast query.
type Fetcher interface {
	Fetch(ctx context.Context, q weather.SearchQuery) (*weather.Response, error)
}

// Session wires the search form, the map and the details card of one page.
type Session struct {
	Form *Form
	Map  *mapview.View

	reverse Reverser
	fetch   Fetcher
	clock   Clock

	mu   sync.Mutex
	card *card.Card
}

func NewSession(form *Form, view *mapview.View, reverse Reverser, fetch Fetcher, clock Clock) *Session {
	if clock == nil {
		clock = RealClock()
	}
	return &Session{
		Form:    form,
		Map:     view,
		reverse: reverse,
		fetch:   fetch,
		clock:   clock,
	}
}

// SelectPlace sets the form place and focuses the map on it.
func (s *Session) SelectPlace(p *place.Place) {
	s.Form.SetPlace(p)
	if p == nil {
		s.Map.SetFocus(nil)
		return
	}
	c := p.Coord()
	s.Map.SetFocus(&c)
}

// MapClicked marks the clicked point on the map and reverse geocodes it,
// keeping the clicked coordinate. When the lookup fails the bare coordinate
// is selected and the error returned so the caller can tell the user.
func (s *Session) MapClicked(ctx context.Context, at place.Coord) (place.Place, error) {
	s.Map.Pick(at)

	p, err := s.reverse.Reverse(ctx, at, geocoding.ReverseOptions{KeepInput: true})
	if err != nil {
		log.Printf("ERROR: reverse lookup for %v failed: %v", at, err)
		p = place.FromCoord(at)
	}
	s.Form.SetPlace(&p)
	return p, err
}

// Submit validates the form, fetches the forecast and renders the card.
// Nothing is sent when the form is incomplete or a submission is running.
func (s *Session) Submit(ctx context.Context) (card.Card, error) {
	var out card.Card
	err := s.Form.Submit(ctx, func(ctx context.Context, q weather.SearchQuery) error {
		resp, err := s.fetch.Fetch(ctx, q)
		if err != nil {
			if errors.Is(err, weather.ErrInvalidResponse) {
				return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
			}
			return err
		}
		out = card.Render(resp, CityLabel(q.Place), card.DateLabel(q.Date), s.clock.Now())
		return nil
	})
	if err != nil {
		return card.Card{}, err
	}

	s.mu.Lock()
	s.card = &out
	s.mu.Unlock()
	return out, nil
}

// Card returns the last rendered card; a new submission replaces it.
func (s *Session) Card() (card.Card, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.card == nil {
		return card.Card{}, false
	}
	return *s.card, true
}

// CityLabel is the city shown on the card for p.
func CityLabel(p *place.Place) string {
	if p == nil {
		return ""
	}
	if p.Address != nil && p.Address.City != "" {
		return p.Address.City
	}
	return p.ShortLabel()
}
