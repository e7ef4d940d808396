package domain

import "time"

// ExecutionState represents the lifecycle state of a query execution on the
// remote engine.
type ExecutionState string

// Query execution lifecycle states.
const (
	ExecutionSubmitted ExecutionState = "SUBMITTED"
	ExecutionRunning   ExecutionState = "RUNNING"
	ExecutionSucceeded ExecutionState = "SUCCEEDED"
	ExecutionFailed    ExecutionState = "FAILED"
	ExecutionCancelled ExecutionState = "CANCELLED"
)

// IsTerminal reports whether no further transitions can happen from s.
func (s ExecutionState) IsTerminal() bool {
	switch s {
	case ExecutionSucceeded, ExecutionFailed, ExecutionCancelled:
		return true
	default:
		return false
	}
}

// ExecutionStats is reported by the engine for a succeeded execution.
type ExecutionStats struct {
	BytesScanned   int64   `json:"bytes_scanned"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// QueryExecution is a snapshot of one statement running on the query engine.
// Callers receive copies; the manager owns the live state.
type QueryExecution struct {
	ID               string          `json:"id"`
	IdempotencyToken string          `json:"idempotency_token,omitempty"`
	SQL              string          `json:"sql,omitempty"`
	State            ExecutionState  `json:"state"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	Stats            *ExecutionStats `json:"stats,omitempty"`
	CancelRequested  bool            `json:"cancel_requested,omitempty"`
	SubmittedAt      time.Time       `json:"submitted_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// EngineStatus is what the query engine reports for an execution id.
// Engine-specific in-progress states are already mapped to ExecutionRunning.
type EngineStatus struct {
	State         ExecutionState
	FailureReason string
	Stats         *ExecutionStats
}

// StartQueryInput carries everything the engine needs to start a statement.
type StartQueryInput struct {
	SQL              string
	OutputLocation   string
	IdempotencyToken string
	Database         string
	WorkGroup        string
}
