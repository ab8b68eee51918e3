package store

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no probe is recorded for a target.
	ErrNotFound = errors.New("no probes for target")
)

// Probe is the outcome of one keep-alive request to an upstream.
type Probe struct {
	Target    string        `json:"target"`
	Timestamp time.Time     `json:"timestamp"` // always UTC
	Status    int           `json:"status,omitempty"`
	Latency   time.Duration `json:"latencyNs"`
	Err       string        `json:"error,omitempty"`
}

// Up reports whether the upstream answered below 500.
func (p Probe) Up() bool {
	return p.Err == "" && p.Status > 0 && p.Status < 500
}

// ProbeHistory holds a time-ordered list of probes for a target.
type ProbeHistory struct {
	Probes []Probe
}

// MemoryStore is a concurrency-safe in-memory probe history.
type MemoryStore struct {
	mu sync.RWMutex

	// key: target, value: history
	data map[string]*ProbeHistory

	maxHistory int
	maxAge     time.Duration
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*ProbeHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// SaveProbe appends a probe and enforces retention.
func (s *MemoryStore) SaveProbe(p Probe) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[p.Target]
	if !ok {
		history = &ProbeHistory{}
		s.data[p.Target] = history
	}

	history.Probes = append(history.Probes, p)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Probes) > s.maxHistory {
		over := len(history.Probes) - s.maxHistory
		history.Probes = history.Probes[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Probes); i++ {
			if !history.Probes[i].Timestamp.Before(cutoff) {
				break
			}
		}
		history.Probes = history.Probes[i:]
	}
}

// GetLatest returns the most recent probe for a target.
func (s *MemoryStore) GetLatest(target string) (Probe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[target]
	if !ok || len(history.Probes) == 0 {
		return Probe{}, ErrNotFound
	}
	return history.Probes[len(history.Probes)-1], nil
}

// GetRange returns all probes for a target between from and to (inclusive).
func (s *MemoryStore) GetRange(target string, from, to time.Time) ([]Probe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[target]
	if !ok || len(history.Probes) == 0 {
		return nil, ErrNotFound
	}

	var result []Probe
	for _, p := range history.Probes {
		if !p.Timestamp.Before(from) && !p.Timestamp.After(to) {
			result = append(result, p)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
