package query

import (
	"context"
	"time"

	"log-manager/internal/domain"
)

// startPollerLocked launches the poll loop owned by t. The caller holds m.mu.
func (m *Manager) startPollerLocked(id string, t *tracked) {
	ctx, cancel := context.WithCancel(context.Background())
	t.stop = cancel

	m.wg.Add(1)
	m.pollers.Add(1)
	m.metrics.PollerStarted()
	go func() {
		defer m.wg.Done()
		defer m.pollers.Add(-1)
		defer m.metrics.PollerStopped()
		defer cancel()
		m.pollLoop(ctx, id)
	}()
}

// pollLoop polls id until it is terminal or ctx is cancelled. The timer is
// re-armed only after the terminal check, so a finished execution never
// schedules another poll.
func (m *Manager) pollLoop(ctx context.Context, id string) {
	timer := time.NewTimer(m.cfg.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if snap, ok := m.Snapshot(id); !ok || snap.State.IsTerminal() {
			return
		}

		snap, err := m.Poll(ctx, id)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			m.logger.Warn("query status poll failed, retrying",
				"execution_id", id,
				"error", err,
			)
		case snap.State.IsTerminal():
			return
		}
		timer.Reset(m.cfg.PollInterval)
	}
}

// Wait blocks until the execution is terminal or ctx ends. When a background
// poll loop owns the execution Wait only listens for completion; otherwise it
// polls on its own at the configured interval. Transient engine errors on a
// known execution are retried; an unknown id that cannot be polled fails fast.
func (m *Manager) Wait(ctx context.Context, id string) (domain.QueryExecution, error) {
	interval := m.cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	for {
		m.mu.Lock()
		t, ok := m.executions[id]
		var (
			snap    domain.QueryExecution
			done    <-chan struct{}
			polling bool
		)
		if ok {
			snap, done, polling = t.exec, t.done, t.stop != nil
		}
		m.mu.Unlock()

		if ok && snap.State.IsTerminal() {
			return snap, nil
		}

		if !polling {
			polled, err := m.Poll(ctx, id)
			switch {
			case err == nil && polled.State.IsTerminal():
				return polled, nil
			case err != nil && !ok:
				return polled, err
			case err != nil:
				if !isEngineError(err) {
					return polled, err
				}
				m.logger.Warn("query status poll failed, retrying", "execution_id", id, "error", err)
			}
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			snap, _ := m.Snapshot(id)
			return snap, ctx.Err()
		case <-done:
			timer.Stop()
		case <-timer.C:
		}
	}
}
