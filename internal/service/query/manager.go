package query

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"log-manager/internal/domain"
	"log-manager/internal/metrics"
)

const (
	defaultPollInterval = 1 * time.Second
	defaultRetention    = 24 * time.Hour
)

// ManagerConfig holds engine-side settings applied to every submission.
type ManagerConfig struct {
	OutputLocation string // s3://bucket/folder/
	Database       string
	WorkGroup      string
	// PollInterval drives the per-execution background poll loop.
	// Zero or negative disables background polling; callers poll explicitly.
	PollInterval time.Duration
	// Retention is how long terminal executions stay queryable from memory.
	Retention time.Duration
}

// tracked is the live state of one execution. All fields are guarded by
// Manager.mu.
type tracked struct {
	exec domain.QueryExecution
	done chan struct{}      // closed when exec reaches a terminal state
	stop context.CancelFunc // stops the poll loop; nil when none is running
}

// Manager supervises query executions on the remote engine: submit, poll,
// cancel. Each accepted execution may own one poll loop which exits as soon
// as the execution is terminal or cancelled.
type Manager struct {
	engine  domain.QueryEngine
	cfg     ManagerConfig
	logger  *slog.Logger
	metrics *metrics.QueryMetrics
	now     func() time.Time

	mu         sync.Mutex
	executions map[string]*tracked
	closed     bool

	wg      sync.WaitGroup
	pollers atomic.Int64
}

// NewManager creates a Manager for eng.
func NewManager(eng domain.QueryEngine, cfg ManagerConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Retention == 0 {
		cfg.Retention = defaultRetention
	}
	return &Manager{
		engine:     eng,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		executions: make(map[string]*tracked),
	}
}

// SetMetrics configures Prometheus recording. Optional.
func (m *Manager) SetMetrics(qm *metrics.QueryMetrics) {
	m.metrics = qm
}

// Submit starts q on the engine with a fresh idempotency token. A submission
// the engine rejects is returned as a FAILED execution carrying the engine's
// message; the error return is reserved for invalid input.
func (m *Manager) Submit(ctx context.Context, q domain.CompiledQuery) (domain.QueryExecution, error) {
	if strings.TrimSpace(q.SQL) == "" {
		return domain.QueryExecution{}, domain.ErrValidation("sql query is required")
	}

	now := m.now()
	exec := domain.QueryExecution{
		IdempotencyToken: uuid.NewString(),
		SQL:              q.SQL,
		State:            domain.ExecutionSubmitted,
		SubmittedAt:      now,
		UpdatedAt:        now,
	}

	id, err := m.engine.StartQuery(ctx, domain.StartQueryInput{
		SQL:              q.SQL,
		OutputLocation:   m.cfg.OutputLocation,
		IdempotencyToken: exec.IdempotencyToken,
		Database:         m.cfg.Database,
		WorkGroup:        m.cfg.WorkGroup,
	})
	if err != nil {
		exec.State = domain.ExecutionFailed
		exec.FailureReason = err.Error()
		m.logger.Warn("query submission rejected",
			"token", exec.IdempotencyToken,
			"error", err,
		)
		m.metrics.RecordTerminal(string(exec.State), 0)
		return exec, nil
	}
	exec.ID = id

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked(now)
	t, ok := m.executions[id]
	if ok {
		// A concurrent Poll adopted id before this insert; keep its state and
		// fill in what only the submitter knows.
		t.exec.IdempotencyToken = exec.IdempotencyToken
		t.exec.SQL = exec.SQL
		if exec.SubmittedAt.Before(t.exec.SubmittedAt) {
			t.exec.SubmittedAt = exec.SubmittedAt
		}
	} else {
		t = &tracked{exec: exec, done: make(chan struct{})}
		m.executions[id] = t
	}
	if t.stop == nil && !t.exec.State.IsTerminal() && m.cfg.PollInterval > 0 && !m.closed {
		m.startPollerLocked(id, t)
	}

	m.logger.Info("query submitted", "execution_id", id, "token", exec.IdempotencyToken)
	return t.exec, nil
}

// Poll refreshes the execution from the engine. Terminal executions are
// returned from memory without an engine call. Ids not seen before are
// adopted. A transport failure returns the last known snapshot together with
// an EngineError; the next poll retries.
func (m *Manager) Poll(ctx context.Context, id string) (domain.QueryExecution, error) {
	if id == "" {
		return domain.QueryExecution{}, domain.ErrValidation("query execution id is required")
	}

	m.mu.Lock()
	t, ok := m.executions[id]
	var snap domain.QueryExecution
	if ok {
		snap = t.exec
	}
	m.mu.Unlock()
	if ok && snap.State.IsTerminal() {
		return snap, nil
	}

	status, err := m.engine.GetQueryStatus(ctx, id)
	if err != nil {
		return snap, &domain.EngineError{Op: "status", Err: err}
	}
	return m.apply(id, status), nil
}

// Cancel asks the engine to stop the execution and stops its poll loop. The
// returned snapshot is whatever the engine reports right after the request,
// which may still be RUNNING or even SUCCEEDED if the query finished first.
// Cancelling a terminal execution returns it unchanged.
func (m *Manager) Cancel(ctx context.Context, id string) (domain.QueryExecution, error) {
	if id == "" {
		return domain.QueryExecution{}, domain.ErrValidation("query execution id is required")
	}

	m.mu.Lock()
	t, ok := m.executions[id]
	if ok && t.exec.State.IsTerminal() {
		snap := t.exec
		m.mu.Unlock()
		return snap, nil
	}
	if ok {
		t.exec.CancelRequested = true
		m.stopPollerLocked(t)
	}
	m.mu.Unlock()

	stopErr := m.engine.StopQuery(ctx, id)
	if stopErr != nil {
		m.logger.Warn("stop query failed", "execution_id", id, "error", stopErr)
	}

	snap, pollErr := m.Poll(ctx, id)
	if pollErr == nil {
		m.mu.Lock()
		if t, ok := m.executions[id]; ok {
			if !t.exec.State.IsTerminal() {
				t.exec.CancelRequested = true
			}
			snap = t.exec
		}
		m.mu.Unlock()
	}

	switch {
	case stopErr == nil:
		return snap, pollErr
	case pollErr == nil && snap.State.IsTerminal():
		// Already finished on the engine side; nothing left to stop.
		return snap, nil
	default:
		return snap, &domain.EngineError{Op: "stop", Err: stopErr}
	}
}

// Snapshot returns the last known state of id without contacting the engine.
func (m *Manager) Snapshot(id string) (domain.QueryExecution, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.executions[id]
	if !ok {
		return domain.QueryExecution{}, false
	}
	return t.exec, true
}

// ActivePollers reports how many background poll loops are running.
func (m *Manager) ActivePollers() int {
	return int(m.pollers.Load())
}

// Close stops every poll loop and waits for them to exit. Submissions after
// Close still work but are not polled in the background.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	for _, t := range m.executions {
		m.stopPollerLocked(t)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// apply folds an engine status into the tracked execution and returns the
// resulting snapshot. A terminal state, once recorded, is never overwritten.
func (m *Manager) apply(id string, status *domain.EngineStatus) domain.QueryExecution {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.executions[id]
	if !ok {
		t = &tracked{
			exec: domain.QueryExecution{ID: id, State: domain.ExecutionSubmitted, SubmittedAt: now},
			done: make(chan struct{}),
		}
		m.executions[id] = t
	}
	if t.exec.State.IsTerminal() {
		return t.exec
	}

	state := status.State
	if state == domain.ExecutionSubmitted {
		state = domain.ExecutionRunning
	}
	t.exec.State = state
	t.exec.UpdatedAt = now

	switch state {
	case domain.ExecutionSucceeded:
		t.exec.Stats = status.Stats
	case domain.ExecutionFailed, domain.ExecutionCancelled:
		t.exec.FailureReason = status.FailureReason
	}

	if state.IsTerminal() {
		close(t.done)
		m.stopPollerLocked(t)
		var scanned int64
		if t.exec.Stats != nil {
			scanned = t.exec.Stats.BytesScanned
		}
		m.metrics.RecordTerminal(string(state), scanned)
		m.logger.Info("query finished",
			"execution_id", id,
			"state", state,
			"reason", t.exec.FailureReason,
		)
	}
	return t.exec
}

func (m *Manager) stopPollerLocked(t *tracked) {
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
}

// pruneLocked drops executions not updated within the retention window that
// are terminal, or cancelled with no poll loop left to observe them finish.
func (m *Manager) pruneLocked(now time.Time) {
	if m.cfg.Retention < 0 {
		return
	}
	cutoff := now.Add(-m.cfg.Retention)
	for id, t := range m.executions {
		if !t.exec.UpdatedAt.Before(cutoff) {
			continue
		}
		if t.exec.State.IsTerminal() || (t.exec.CancelRequested && t.stop == nil) {
			delete(m.executions, id)
		}
	}
}

// isEngineError reports whether err came from talking to the engine.
func isEngineError(err error) bool {
	var ee *domain.EngineError
	return errors.As(err, &ee)
}
