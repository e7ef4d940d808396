package partition

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"log-manager/internal/ddl"
	"log-manager/internal/domain"
)

// Submitter starts a statement on the query engine. It is satisfied by the
// query execution manager owned by the scan pipeline.
type Submitter interface {
	Submit(ctx context.Context, q domain.CompiledQuery) (domain.QueryExecution, error)
}

// OutcomeKind tells what RegisterIfNew did with a key.
type OutcomeKind int

// Registration outcomes.
const (
	AlreadyRegistered OutcomeKind = iota
	Submitted
)

func (k OutcomeKind) String() string {
	switch k {
	case AlreadyRegistered:
		return "already_registered"
	case Submitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Outcome is the result of RegisterIfNew. ExecutionID is set for Submitted.
type Outcome struct {
	Kind        OutcomeKind
	ExecutionID string
}

// RegistrarConfig names the table and the storage location partitions
// are attached to.
type RegistrarConfig struct {
	Table  string
	Bucket string // archive bucket; empty omits the LOCATION clause
	Prefix string // archive prefix, e.g. processed-logs
}

// Registrar issues ADD PARTITION statements for partition keys not yet seen
// in the current pass.
type Registrar struct {
	submitter Submitter
	cfg       RegistrarConfig
	logger    *slog.Logger
}

// NewRegistrar creates a Registrar.
func NewRegistrar(submitter Submitter, cfg RegistrarConfig, logger *slog.Logger) (*Registrar, error) {
	if err := ddl.ValidateIdentifier(cfg.Table); err != nil {
		return nil, fmt.Errorf("invalid partition table: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &Registrar{submitter: submitter, cfg: cfg, logger: logger}, nil
}

// RegisterIfNew submits the partition for key unless seen already holds it.
// A key is marked before submission, so a rejected statement is not retried
// within the same pass.
func (r *Registrar) RegisterIfNew(ctx context.Context, key domain.PartitionKey, seen *SeenSet) (Outcome, error) {
	if !seen.MarkIfNew(key) {
		return Outcome{Kind: AlreadyRegistered}, nil
	}

	stmt, err := ddl.AddPartition(r.cfg.Table, key, r.location(key))
	if err != nil {
		return Outcome{}, err
	}

	exec, err := r.submitter.Submit(ctx, domain.CompiledQuery{SQL: stmt, Table: r.cfg.Table})
	if err != nil {
		return Outcome{}, fmt.Errorf("submit partition %s: %w", key, err)
	}
	if exec.State == domain.ExecutionFailed {
		return Outcome{}, &domain.EngineError{Op: "start", Err: fmt.Errorf("partition %s: %s", key, exec.FailureReason)}
	}

	r.logger.Info("partition submitted", "partition", key.String(), "execution_id", exec.ID)
	return Outcome{Kind: Submitted, ExecutionID: exec.ID}, nil
}

func (r *Registrar) location(key domain.PartitionKey) string {
	if r.cfg.Bucket == "" {
		return ""
	}
	return "s3://" + r.cfg.Bucket + "/" + strings.TrimPrefix(key.Path(r.cfg.Prefix), "/")
}
