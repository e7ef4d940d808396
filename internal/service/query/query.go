// Package query compiles user filters and supervises the resulting
// executions on the remote query engine.
package query

import (
	"context"
	"log/slog"

	"log-manager/internal/domain"
	"log-manager/internal/filter"
)

// SubmitRequest is the produced query-submission call.
type SubmitRequest struct {
	Filter   []filter.RawClause `json:"filter"`
	Table    string             `json:"table,omitempty"`
	Timezone string             `json:"timezone,omitempty"`
}

// SubmitResponse pairs the execution with the SQL that was sent.
type SubmitResponse struct {
	Execution domain.QueryExecution `json:"execution"`
	SQL       string                `json:"sql"`
}

// QueryService turns filter requests into executions.
//
//nolint:revive // Name chosen for clarity across package boundaries
type QueryService struct {
	manager  *Manager
	defaults filter.Options
	logger   *slog.Logger
}

// NewQueryService creates a QueryService. defaults supplies the database,
// table and timezone used when a request leaves them empty.
func NewQueryService(manager *Manager, defaults filter.Options, logger *slog.Logger) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{manager: manager, defaults: defaults, logger: logger}
}

// Compile validates and compiles req without submitting it.
func (s *QueryService) Compile(req SubmitRequest) (*domain.CompiledQuery, error) {
	if req.Filter == nil {
		return nil, domain.ErrMalformedInput("missing query filter section")
	}
	clauses, err := filter.DecodeClauses(req.Filter)
	if err != nil {
		return nil, err
	}
	opts := s.defaults
	if req.Table != "" {
		opts.Table = req.Table
	}
	if req.Timezone != "" {
		opts.Timezone = req.Timezone
	}
	return filter.Compile(clauses, opts)
}

// Submit compiles req and starts it on the engine. Compile errors are
// returned as *domain.CompileError; an engine rejection comes back as a
// FAILED execution.
func (s *QueryService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	compiled, err := s.Compile(req)
	if err != nil {
		s.logger.Info("query rejected", "error", err)
		return nil, err
	}
	exec, err := s.manager.Submit(ctx, *compiled)
	if err != nil {
		return nil, err
	}
	return &SubmitResponse{Execution: exec, SQL: compiled.SQL}, nil
}

// Status returns the current snapshot of an execution.
func (s *QueryService) Status(ctx context.Context, executionID string) (domain.QueryExecution, error) {
	return s.manager.Poll(ctx, executionID)
}

// Cancel requests that an execution stop.
func (s *QueryService) Cancel(ctx context.Context, executionID string) (domain.QueryExecution, error) {
	return s.manager.Cancel(ctx, executionID)
}

// Wait blocks until the execution is terminal.
func (s *QueryService) Wait(ctx context.Context, executionID string) (domain.QueryExecution, error) {
	return s.manager.Wait(ctx, executionID)
}
