package consensus

import (
	"context"
	"fmt"
	"time"

	"minichain/logx"
)

// Scheduler serialises resolve rounds: periodic ones when an interval is set,
// and on-demand ones requested with Trigger.
type Scheduler struct {
	resolver *Resolver
	interval time.Duration
	trigger  chan struct{}
	onReport func(Report)
}

// NewScheduler creates a scheduler. interval <= 0 disables periodic rounds.
// onReport may be nil.
func NewScheduler(resolver *Resolver, interval time.Duration, onReport func(Report)) *Scheduler {
	return &Scheduler{
		resolver: resolver,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		onReport: onReport,
	}
}

// Trigger requests a round without waiting for it. Requests made while one is
// already queued are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
		logx.Info("CONSENSUS", fmt.Sprintf("Resolving against peers every %s", s.interval))
	}

	for {
		select {
		case <-ctx.Done():
			logx.Info("CONSENSUS", "Scheduler stopped")
			return
		case <-tick:
			s.round(ctx)
		case <-s.trigger:
			s.round(ctx)
		}
	}
}

func (s *Scheduler) round(ctx context.Context) {
	report := s.resolver.Resolve(ctx)
	if s.onReport != nil {
		s.onReport(report)
	}
}
