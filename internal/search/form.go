package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/meetyo/meetyo-web/internal/common"
	"github.com/meetyo/meetyo-web/internal/place"
	"github.com/meetyo/meetyo-web/internal/weather"
)

var (
	ErrPlaceRequired   = errors.New("select a place with valid coordinates")
	ErrDateRequired    = errors.New("select a valid date")
	ErrMetricsRequired = errors.New("select at least one metric")
	// ErrSubmitInFlight is returned while a previous submission is still running.
	ErrSubmitInFlight = errors.New("a search is already in progress")
)

// State is everything the search form edits.
type State struct {
	Place   *place.Place     `validate:"required"`
	Date    time.Time        `validate:"required"`
	Metrics []weather.Metric `validate:"required,min=1,dive,oneof=temperature rain wind humidity"`
}

// Owner keeps form state outside the form. A form built with an owner
// reads and writes only through it.
type Owner interface {
	State() State
	SetState(State)
}

// LocalState is the owner used when the form keeps its own state.
type LocalState struct {
	mu    sync.RWMutex
	state State
}

func NewLocalState(initial State) *LocalState {
	return &LocalState{state: initial}
}

func (l *LocalState) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *LocalState) SetState(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = s
}

// DefaultState is today's date with temperature selected.
func DefaultState(now time.Time) State {
	return State{
		Date:    StartOfDay(now),
		Metrics: []weather.Metric{weather.MetricTemperature},
	}
}

// Form validates and submits a search.
type Form struct {
	owner      Owner
	controlled bool
	validate   *validator.Validate

	mu          sync.Mutex
	showMetrics bool

	submitting atomic.Bool
}

// NewForm builds a form. With a nil owner the form owns its state,
// initialised with DefaultState(now); otherwise owner is the single source
// of truth.
func NewForm(owner Owner, now time.Time) *Form {
	controlled := owner != nil
	if !controlled {
		owner = NewLocalState(DefaultState(now))
	}
	return &Form{
		owner:       owner,
		controlled:  controlled,
		validate:    common.NewValidator(),
		showMetrics: true,
	}
}

// Controlled reports whether state is owned outside the form.
func (f *Form) Controlled() bool {
	return f.controlled
}

func (f *Form) State() State {
	return f.owner.State()
}

// SetPlace replaces the selected place; nil clears it.
func (f *Form) SetPlace(p *place.Place) {
	s := f.owner.State()
	if p != nil {
		cp := *p
		if p.Address != nil {
			addr := *p.Address
			cp.Address = &addr
		}
		p = &cp
	}
	s.Place = p
	f.owner.SetState(s)
}

func (f *Form) SetDate(d time.Time) {
	s := f.owner.State()
	s.Date = d
	f.owner.SetState(s)
}

func (f *Form) SetMetrics(metrics []weather.Metric) {
	s := f.owner.State()
	s.Metrics = append([]weather.Metric(nil), metrics...)
	f.owner.SetState(s)
}

// ToggleMetric adds or removes m from the selection.
func (f *Form) ToggleMetric(m weather.Metric, on bool) {
	s := f.owner.State()
	next := make([]weather.Metric, 0, len(s.Metrics)+1)
	for _, cur := range s.Metrics {
		if cur != m {
			next = append(next, cur)
		}
	}
	if on {
		next = append(next, m)
	}
	s.Metrics = next
	f.owner.SetState(s)
}

// ToggleMetricSelector flips the visibility of the metric checkboxes and
// returns the new value.
func (f *Form) ToggleMetricSelector() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.showMetrics = !f.showMetrics
	return f.showMetrics
}

func (f *Form) MetricSelectorVisible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.showMetrics
}

// Validate returns nil or a join of ErrPlaceRequired, ErrDateRequired and
// ErrMetricsRequired.
func (f *Form) Validate() error {
	return validateState(f.validate, f.owner.State())
}

func validateState(v *validator.Validate, s State) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	var badPlace, badDate, badMetrics bool
	for _, fe := range verrs {
		ns := fe.StructNamespace()
		switch {
		case strings.Contains(ns, ".Place"):
			badPlace = true
		case strings.Contains(ns, ".Date"):
			badDate = true
		case strings.Contains(ns, ".Metrics"):
			badMetrics = true
		}
	}

	var errs []error
	if badPlace {
		errs = append(errs, ErrPlaceRequired)
	}
	if badDate {
		errs = append(errs, ErrDateRequired)
	}
	if badMetrics {
		errs = append(errs, ErrMetricsRequired)
	}
	return errors.Join(errs...)
}

// CanSubmit reports whether Submit would run now.
func (f *Form) CanSubmit() bool {
	return !f.submitting.Load() && f.Validate() == nil
}

// Submitting reports whether a submission is in flight.
func (f *Form) Submitting() bool {
	return f.submitting.Load()
}

// Query builds the search query from the current state.
func (f *Form) Query() (weather.SearchQuery, error) {
	s := f.owner.State()
	if err := validateState(f.validate, s); err != nil {
		return weather.SearchQuery{}, err
	}
	return weather.SearchQuery{
		Place:   s.Place,
		Date:    s.Date,
		Metrics: append([]weather.Metric(nil), s.Metrics...),
	}, nil
}

// Submit validates the state and runs fn with the query. While fn runs,
// further submissions fail with ErrSubmitInFlight; they are not queued.
func (f *Form) Submit(ctx context.Context, fn func(context.Context, weather.SearchQuery) error) error {
	q, err := f.Query()
	if err != nil {
		return err
	}
	if !f.submitting.CompareAndSwap(false, true) {
		return ErrSubmitInFlight
	}
	defer f.submitting.Store(false)

	return fn(ctx, q)
}
