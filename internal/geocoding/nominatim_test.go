package geocoding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetyo/meetyo-web/internal/common"
	"github.com/meetyo/meetyo-web/internal/place"
)

const searchBody = `[
  {"place_id": 123, "display_name": "Vilhena, Rondônia, Brasil", "lat": "-12.7406", "lon": "-60.1458",
   "address": {"city": "Vilhena", "state": "Rondônia", "country": "Brasil"}},
  {"place_id": 124, "display_name": "Vilhena Town", "lat": "-12.1", "lon": "-60.2",
   "address": {"city": "", "town": "Vilhena Town", "road": "Av. Major Amarantes"}},
  {"place_id": 125, "display_name": "Rural", "lat": "-12.2", "lon": "-60.3",
   "address": {"state": "Rondônia"}},
  {"place_id": 126, "display_name": "Broken", "lat": "n/a", "lon": "-60.3"},
  {"place_id": 127, "display_name": "Extra A", "lat": "1", "lon": "2"},
  {"place_id": 128, "display_name": "Extra B", "lat": "3", "lon": "4"}
]`

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.Client(), Options{
		BaseURL:        srv.URL,
		UserAgent:      "meetyo/1.0 (test)",
		AcceptLanguage: "pt-BR,pt;q=0.9",
	})
	return c, &calls
}

func TestSearchEmptyQuerySkipsUpstream(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream must not be called")
	})

	got, err := c.Search(context.Background(), "   ", 5)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.EqualValues(t, 0, calls.Load())
}

func TestSearchNormalizesRecords(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Vilhena", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "meetyo/1.0 (test)", r.Header.Get("User-Agent"))
		assert.Equal(t, "pt-BR,pt;q=0.9", r.Header.Get("Accept-Language"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchBody))
	})

	got, err := c.Search(context.Background(), "Vilhena", 5)
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())
	require.Len(t, got, 5)

	for _, p := range got {
		assert.True(t, p.Valid(), p.ID)
	}

	assert.Equal(t, "123", got[0].ID)
	assert.Equal(t, "Vilhena, Rondônia, Brasil", got[0].Label)
	assert.InDelta(t, -12.7406, got[0].Lat, 1e-9)
	assert.Equal(t, "Vilhena", got[0].Address.City)

	// Empty city falls through to town.
	assert.Equal(t, "Vilhena Town", got[1].Address.City)
	assert.Equal(t, "Av. Major Amarantes", got[1].Address.Road)

	// No city/town/village: city stays unset.
	require.NotNil(t, got[2].Address)
	assert.Equal(t, "", got[2].Address.City)
	assert.Equal(t, "Rondônia", got[2].Address.State)

	// Unparseable coordinates are dropped.
	for _, p := range got {
		assert.NotEqual(t, "126", p.ID)
	}
}

func TestSearchDefaultLimit(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "8", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[]`))
	})

	got, err := c.Search(context.Background(), "Porto Velho", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchSynthesizesMissingIDAndLabel(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"display_name": "Vilhena, RO", "lat": "-12.74", "lon": "-60.14"},
			{"place_id": 9, "lat": "-8.76", "lon": "-63.9"}]`))
	})

	got, err := c.Search(context.Background(), "Vilhena", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "-12.74,-60.14", got[0].ID)
	assert.Equal(t, "Vilhena, RO", got[0].Label)
	assert.Equal(t, "9", got[1].ID)
	assert.Equal(t, "-8.76, -63.9", got[1].Label)

	v := common.NewValidator()
	for _, p := range got {
		assert.NoError(t, v.Struct(p))
	}
}

func TestSearchProviderError(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Search(context.Background(), "Vilhena", 5)
	assert.ErrorIs(t, err, ErrProvider)
	assert.EqualValues(t, 1, calls.Load())
}

func TestReverseFallsBackToCoordinates(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "14", r.URL.Query().Get("zoom"))
		assert.Equal(t, "pt-BR", r.URL.Query().Get("accept-language"))
		_, _ = w.Write([]byte(`{"error": "Unable to geocode"}`))
	})

	got, err := c.Reverse(context.Background(), place.Coord{Lat: -12.7439, Lon: -60.1469}, ReverseOptions{})
	require.NoError(t, err)
	assert.Equal(t, "-12.7439,-60.1469", got.ID)
	assert.Equal(t, "-12.7439, -60.1469", got.Label)
	assert.Equal(t, -12.7439, got.Lat)
	assert.Equal(t, -60.1469, got.Lon)
	assert.Nil(t, got.Address)
}

func TestReverseKeepInput(t *testing.T) {
	body := `{"place_id": 99, "display_name": "Vilhena, RO", "lat": "-12.7401", "lon": "-60.1401",
	          "address": {"village": "Nova Vilhena", "country": "Brasil"}}`
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	})
	at := place.Coord{Lat: -12.7439, Lon: -60.1469}

	echoed, err := c.Reverse(context.Background(), at, ReverseOptions{})
	require.NoError(t, err)
	assert.Equal(t, -12.7401, echoed.Lat)
	assert.Equal(t, "99", echoed.ID)
	assert.Equal(t, "Nova Vilhena", echoed.Address.City)

	kept, err := c.Reverse(context.Background(), at, ReverseOptions{KeepInput: true})
	require.NoError(t, err)
	assert.Equal(t, at, kept.Coord())
	assert.Equal(t, "Vilhena, RO", kept.Label)
}

func TestReverseProviderError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.Reverse(context.Background(), place.Coord{Lat: 1, Lon: 2}, ReverseOptions{})
	assert.ErrorIs(t, err, ErrReverseProvider)
}

func TestPrimaryLanguage(t *testing.T) {
	assert.Equal(t, "pt-BR", primaryLanguage("pt-BR,pt;q=0.9"))
	assert.Equal(t, "en", primaryLanguage("en;q=1"))
}
