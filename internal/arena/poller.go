package arena

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/dronedash/internal/errors"
	"codeberg.org/mutker/dronedash/internal/geofence"
	"codeberg.org/mutker/dronedash/internal/logger"
	"codeberg.org/mutker/dronedash/internal/metrics"
)

// Poller fetches arena data on a fixed interval and keeps the last good
// result. A failed fetch never clears data that was fetched before.
type Poller struct {
	provider  Provider
	mock      Provider
	mockFirst bool
	log       logger.Logger

	mu          sync.RWMutex
	latest      Data
	hasData     bool
	lastErr     error
	lastAttempt time.Time
	fetches     int
}

type PollerOption func(*Poller)

func WithPollerLogger(log logger.Logger) PollerOption {
	return func(p *Poller) {
		p.log = log
	}
}

// WithMockFirst serves mock for the first fetch instead of the provider
func WithMockFirst(mock Provider) PollerOption {
	return func(p *Poller) {
		p.mock = mock
		p.mockFirst = mock != nil
	}
}

func NewPoller(provider Provider, opts ...PollerOption) *Poller {
	p := &Poller{
		provider: provider,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// PollerStatus describes the poller's current view of the arena
type PollerStatus struct {
	Data        *Data     `json:"data,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
	LastAttempt time.Time `json:"lastAttempt"`
	Fetches     int       `json:"fetches"`
}

// Fetch runs one fetch and stores the result when it succeeds
func (p *Poller) Fetch(ctx context.Context) (Data, error) {
	provider := p.provider
	p.mu.RLock()
	if p.mockFirst && p.fetches == 0 {
		provider = p.mock
	}
	p.mu.RUnlock()

	data, err := provider.Fetch(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.fetches++
	p.lastAttempt = time.Now()

	if err != nil {
		p.lastErr = err
		metrics.ObserveArenaFetch(metrics.ResultError, 0)

		event := p.log.Warn().Err(err)
		if p.hasData {
			event = event.Time("stale_since", p.latest.Timestamp)
		}
		event.Msg("Arena fetch failed, keeping previous data")

		return Data{}, err
	}

	data.Status = StatusSuccess
	data.Error = ""
	p.latest = data
	p.hasData = true
	p.lastErr = nil

	metrics.ObserveArenaFetch(metrics.ResultSuccess, len(data.Targets))

	if len(data.Boundary) < geofence.MinBoundaryPoints {
		p.log.Warn().
			Int("corners", len(data.Boundary)).
			Msg("Arena boundary incomplete, using fallback conversion")
	}

	p.log.Debug().
		Int("corners", len(data.Boundary)).
		Int("targets", len(data.Targets)).
		Msg("Arena data updated")

	return data, nil
}

// Latest returns the last successfully fetched arena data
func (p *Poller) Latest() (Data, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.latest, p.hasData
}

func (p *Poller) Status() PollerStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := PollerStatus{
		LastAttempt: p.lastAttempt,
		Fetches:     p.fetches,
	}
	if p.hasData {
		data := p.latest
		s.Data = &data
	}
	if p.lastErr != nil {
		s.LastError = p.lastErr.Error()
	}

	return s
}

// Run fetches immediately and then every interval until ctx is cancelled
func (p *Poller) Run(ctx context.Context, interval time.Duration) error {
	errFactory := errors.New()

	if interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, interval.String())
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.log.Info().Dur("interval", interval).Msg("Starting arena polling")

	_, _ = p.Fetch(ctx)
	for {
		select {
		case <-ctx.Done():
			p.log.Debug().Msg("Arena polling stopped")
			return nil
		case <-ticker.C:
			_, _ = p.Fetch(ctx)
		}
	}
}
