package scheduler

import (
	"context"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sony/gobreaker"

	"github.com/meetyo/meetyo-web/internal/store"
	"github.com/meetyo/meetyo-web/internal/upstream"
)

// Recorder receives probe outcomes.
type Recorder interface {
	SaveProbe(p store.Probe)
}

// Prober issues keep-alive requests so the weather backend does not idle.
type Prober struct {
	httpCfg  upstream.HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	recorder Recorder
}

func NewProber(client *http.Client, recorder Recorder) *Prober {
	return &Prober{
		httpCfg:  upstream.HTTPClientConfig{Client: client},
		circuit:  upstream.NewBreaker("keepalive"),
		recorder: recorder,
	}
}

// Probe requests target once and records the outcome.
func (p *Prober) Probe(ctx context.Context, target string) store.Probe {
	started := time.Now()
	result := store.Probe{Target: target, Timestamp: started.UTC()}

	resp, err := upstream.Do(ctx, p.httpCfg, p.circuit, upstream.AnyStatus, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, target, nil)
	})
	if err != nil {
		result.Err = err.Error()
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		result.Status = resp.StatusCode
	}
	result.Latency = time.Since(started)

	if p.recorder != nil {
		p.recorder.SaveProbe(result)
	}
	return result
}

// Scheduler periodically probes the configured targets.
type Scheduler struct {
	scheduler *gocron.Scheduler
	prober    *Prober
	targets   []string
	interval  time.Duration
}

// New creates a new Scheduler.
func New(targets []string, interval time.Duration, prober *Prober) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		prober:    prober,
		targets:   targets,
		interval:  interval,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.targets) == 0 || s.interval <= 0 {
		log.Println("scheduler: keep-alive disabled; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce probes every target concurrently.
func (s *Scheduler) RunOnce() {
	var wg sync.WaitGroup
	for _, target := range s.targets {
		target := target
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			probe := s.prober.Probe(ctx, target)
			if !probe.Up() {
				log.Printf("scheduler: keep-alive probe failed for %s: status=%d err=%s", target, probe.Status, probe.Err)
			}
		}()
	}
	wg.Wait()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
