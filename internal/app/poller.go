package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/licdesk/internal/licensing"
	"github.com/five82/licdesk/internal/state"
)

const (
	defaultPollInterval = 30 * time.Second
	maxBackoff          = 5 * time.Minute
)

// SummarySource fetches the license list.
type SummarySource interface {
	FetchLicenseSummaries(ctx context.Context) ([]licensing.LicenseSummary, error)
}

// PollerOptions configure a Poller.
type PollerOptions struct {
	Store    *state.Store
	Source   SummarySource
	Interval time.Duration
	// Ready gates each refresh; the poller stays idle while it returns false.
	Ready  func() bool
	Logger zerolog.Logger
}

// Poller refreshes the shared store in the background and backs off while
// the backend keeps failing.
type Poller struct {
	store    *state.Store
	source   SummarySource
	interval time.Duration
	ready    func() bool
	logger   zerolog.Logger
	wake     chan struct{}
}

// NewPoller builds a Poller from opts.
func NewPoller(opts PollerOptions) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ready := opts.Ready
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Poller{
		store:    opts.Store,
		source:   opts.Source,
		interval: interval,
		ready:    ready,
		logger:   opts.Logger.With().Str("component", "poller").Logger(),
		wake:     make(chan struct{}, 1),
	}
}

// Start launches the refresh loop and returns immediately. The loop exits
// when ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	go func() {
		for {
			if p.ready() {
				_ = p.Refresh(ctx)
			}

			delay := calculateBackoff(p.store.Snapshot().ConsecutiveFailures, p.interval)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-p.wake:
				timer.Stop()
			case <-timer.C:
			}
		}
	}()
}

// Trigger asks the loop to refresh now instead of waiting for the next tick.
func (p *Poller) Trigger() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Refresh fetches the license list once and records the outcome.
func (p *Poller) Refresh(ctx context.Context) error {
	items, err := p.source.FetchLicenseSummaries(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		p.store.Update(nil, err)
		p.logger.Warn().Err(err).Msg("license poll failed")
		return err
	}
	p.store.Update(items, nil)
	p.logger.Debug().Int("count", len(items)).Msg("license poll")
	return nil
}

// calculateBackoff doubles base for each consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for i := 0; i < failures; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
