package search

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/meetyo/meetyo-web/internal/place"
)

const (
	// DebounceDelay is how long typing must settle before a lookup.
	DebounceDelay = 300 * time.Millisecond
	// MinQueryLength is the shortest text that triggers a lookup.
	MinQueryLength = 2
)

// Geocoder resolves free text into candidate places.
type Geocoder interface {
	Search(ctx context.Context, query string, limit int) ([]place.Place, error)
}

// Results is one batch of suggestions delivered to the combobox.
type Results struct {
	Query  string
	Places []place.Place
	Err    error
}

// LocationSearch is the search-as-you-type behaviour of the location
// combobox. Only the lookup for the latest settled text is delivered;
// answers for text the user has since changed are dropped.
type LocationSearch struct {
	geo       Geocoder
	debounce  *Debouncer
	limit     int
	onResults func(Results)

	mu     sync.Mutex
	seq    uint64
	active int
}

func NewLocationSearch(geo Geocoder, clock Clock, limit int, onResults func(Results)) *LocationSearch {
	return &LocationSearch{
		geo:       geo,
		debounce:  NewDebouncer(clock, DebounceDelay),
		limit:     limit,
		onResults: onResults,
	}
}

// Type handles a change of the input text.
func (s *LocationSearch) Type(ctx context.Context, text string) {
	q := strings.TrimSpace(text)

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	if utf8.RuneCountInString(q) < MinQueryLength {
		s.debounce.Cancel()
		s.deliver(seq, Results{Query: q})
		return
	}

	s.debounce.Start(func() {
		s.mu.Lock()
		s.active++
		s.mu.Unlock()

		places, err := s.geo.Search(ctx, q, s.limit)

		s.mu.Lock()
		s.active--
		s.mu.Unlock()

		if err != nil {
			places = nil
		}
		s.deliver(seq, Results{Query: q, Places: places, Err: err})
	})
}

// Close cancels any pending lookup and drops answers still in flight.
func (s *LocationSearch) Close() {
	s.debounce.Cancel()
	s.mu.Lock()
	s.seq++
	s.mu.Unlock()
}

// Loading reports whether a lookup is pending or running.
func (s *LocationSearch) Loading() bool {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	return active > 0 || s.debounce.Pending()
}

func (s *LocationSearch) deliver(seq uint64, r Results) {
	s.mu.Lock()
	stale := seq != s.seq
	s.mu.Unlock()
	if stale || s.onResults == nil {
		return
	}
	s.onResults(r)
}
