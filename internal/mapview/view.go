// Package mapview holds the state behind the map widget: where it is
// centered, which point the user picked, and what it reports upward.
// Tiles and drawing are left to the browser-side mapping library.
package mapview

import (
	"errors"
	"net/url"
	"sync"

	"github.com/meetyo/meetyo-web/internal/place"
)

// DefaultCenter is Vilhena, RO, shown until something is selected.
var DefaultCenter = place.Coord{Lat: -12.7406, Lon: -60.1458}

const (
	DefaultZoom = 12
	LocateZoom  = 14
)

var ErrNothingPicked = errors.New("no picked coordinate")

// Movement describes a view change the widget has to perform.
type Movement struct {
	To      place.Coord `json:"to"`
	Zoom    int         `json:"zoom"`
	Animate bool        `json:"animate"`
}

type Options struct {
	Focus      *place.Coord
	Zoom       int
	HideMarker bool
	// OnClick receives every clicked coordinate.
	OnClick func(place.Coord)
	// OnMove receives every re-centering.
	OnMove func(Movement)
}

// View is safe for concurrent use. Callbacks run outside its lock.
type View struct {
	mu         sync.Mutex
	center     place.Coord
	zoom       int
	focus      *place.Coord
	picked     *place.Coord
	hideMarker bool
	onClick    func(place.Coord)
	onMove     func(Movement)
}

func New(opts Options) *View {
	v := &View{
		center:     DefaultCenter,
		zoom:       opts.Zoom,
		hideMarker: opts.HideMarker,
		onClick:    opts.OnClick,
		onMove:     opts.OnMove,
	}
	if v.zoom <= 0 {
		v.zoom = DefaultZoom
	}
	if opts.Focus != nil && opts.Focus.Finite() {
		f := *opts.Focus
		v.focus = &f
		v.center = f
	}
	return v
}

func (v *View) Center() place.Coord {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.center
}

func (v *View) Zoom() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.zoom
}

// Picked returns the marker coordinate, if any.
func (v *View) Picked() (place.Coord, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.picked == nil {
		return place.Coord{}, false
	}
	return *v.picked, true
}

// SetFocus re-centers the map on c with a fly-to animation. A nil or
// unchanged focus does not move the map. The picked marker never moves.
func (v *View) SetFocus(c *place.Coord) (Movement, bool) {
	v.mu.Lock()
	if c == nil || !c.Finite() {
		v.focus = nil
		v.mu.Unlock()
		return Movement{}, false
	}
	if v.focus != nil && *v.focus == *c {
		v.mu.Unlock()
		return Movement{}, false
	}
	f := *c
	v.focus = &f
	v.center = f
	m := Movement{To: f, Zoom: v.zoom, Animate: true}
	onMove := v.onMove
	v.mu.Unlock()

	if onMove != nil {
		onMove(m)
	}
	return m, true
}

// Click records a map click and reports it to the caller.
func (v *View) Click(c place.Coord) {
	v.Pick(c)

	v.mu.Lock()
	onClick := v.onClick
	v.mu.Unlock()
	if onClick != nil {
		onClick(c)
	}
}

// Pick moves the marker to c without reporting a click.
func (v *View) Pick(c place.Coord) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.hideMarker {
		p := c
		v.picked = &p
	}
}

// Locate jumps to the device position without animation, picks it and
// reports it like a click.
func (v *View) Locate(c place.Coord) Movement {
	v.mu.Lock()
	v.center = c
	v.zoom = LocateZoom
	if !v.hideMarker {
		p := c
		v.picked = &p
	}
	m := Movement{To: c, Zoom: LocateZoom}
	onMove, onClick := v.onMove, v.onClick
	v.mu.Unlock()

	if onMove != nil {
		onMove(m)
	}
	if onClick != nil {
		onClick(c)
	}
	return m
}

// ShareURL sets lat/lng of the picked coordinate on base.
func (v *View) ShareURL(base string) (string, error) {
	c, ok := v.Picked()
	if !ok {
		return "", ErrNothingPicked
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("lat", place.FormatDegrees(c.Lat))
	q.Set("lng", place.FormatDegrees(c.Lon))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
