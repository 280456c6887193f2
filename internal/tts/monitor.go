package tts

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// StatusChecker reports whether a service is up.
type StatusChecker interface {
	IsOnline(ctx context.Context) (bool, error)
}

// Monitor polls the speech service: every upInterval while it answers,
// every downInterval while it does not.
type Monitor struct {
	checker      StatusChecker
	upInterval   time.Duration
	downInterval time.Duration
	online       atomic.Bool
}

func NewMonitor(checker StatusChecker) *Monitor {
	return &Monitor{
		checker:      checker,
		upInterval:   4 * time.Second,
		downInterval: 2 * time.Second,
	}
}

// Online is the result of the latest probe.
func (m *Monitor) Online() bool { return m.online.Load() }

// Start probes until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	slog.Info("tts monitor: started")
	for {
		wait := m.check(ctx)

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			slog.Info("tts monitor: stopped")
			return ctx.Err()
		}
	}
}

func (m *Monitor) check(ctx context.Context) time.Duration {
	probeCtx, cancel := context.WithTimeout(ctx, m.upInterval)
	defer cancel()

	ok, err := m.checker.IsOnline(probeCtx)
	was := m.online.Swap(ok)
	switch {
	case ok && !was:
		slog.Info("tts monitor: voice service online")
	case !ok && was:
		slog.Warn("tts monitor: voice service offline", "err", err)
	case !ok:
		slog.Debug("tts monitor: voice service not reachable", "err", err)
	}

	if ok {
		return m.upInterval
	}
	return m.downInterval
}
