package partition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"log-manager/internal/domain"
	"log-manager/internal/metrics"
	"log-manager/internal/storage"
)

// DefaultConcurrency bounds the number of objects processed at once.
const DefaultConcurrency = 10

// ScannerConfig controls a scan pass.
type ScannerConfig struct {
	Prefix      string // archive prefix objects are listed under
	Concurrency int
	MaxKeys     int // listing cap per pass; <= 0 lists everything
}

// ObjectResult is what a pass learned about one object.
type ObjectResult struct {
	Key       string
	Partition domain.PartitionKey
	Records   int64
	Outcome   Outcome
}

// PassResult summarises a scan pass. Failures holds one error per object
// that could not be processed; the others are unaffected. An object whose
// fetch failed after its partition was registered appears in both Objects
// and Failures.
type PassResult struct {
	Prefix     string
	Listed     int
	Objects    []ObjectResult
	Partitions int // distinct keys seen
	Failures   []error
}

// Err joins the per-object failures, or returns nil.
func (r *PassResult) Err() error {
	return errors.Join(r.Failures...)
}

// Submissions returns the execution ids of partitions submitted in the pass.
func (r *PassResult) Submissions() []string {
	var ids []string
	for _, o := range r.Objects {
		if o.Outcome.Kind == Submitted {
			ids = append(ids, o.Outcome.ExecutionID)
		}
	}
	return ids
}

// ObjectError is a per-object failure tagged with the stage it occurred in.
type ObjectError struct {
	Key   string
	Stage string // extract, fetch, register
	Err   error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Key, e.Err)
}

func (e *ObjectError) Unwrap() error { return e.Err }

// Scanner lists archive objects and registers the partitions they live in.
type Scanner struct {
	store     domain.ObjectStore
	registrar *Registrar
	cfg       ScannerConfig
	logger    *slog.Logger
	metrics   *metrics.ScanMetrics
}

// NewScanner creates a Scanner.
func NewScanner(store domain.ObjectStore, registrar *Registrar, cfg ScannerConfig, logger *slog.Logger) *Scanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{store: store, registrar: registrar, cfg: cfg, logger: logger}
}

// SetMetrics configures Prometheus recording. Optional.
func (s *Scanner) SetMetrics(m *metrics.ScanMetrics) {
	s.metrics = m
}

// RunPass lists up to MaxKeys objects under listPrefix and processes them
// with bounded parallelism. Each pass starts with an empty SeenSet. Only a
// listing failure fails the pass; per-object failures are collected in the
// result.
func (s *Scanner) RunPass(ctx context.Context, listPrefix string) (*PassResult, error) {
	return s.timedPass(ctx, PassManual, listPrefix, s.cfg.MaxKeys)
}

func (s *Scanner) runPass(ctx context.Context, listPrefix string, maxKeys int) (*PassResult, error) {
	objects, err := s.store.List(ctx, listPrefix, maxKeys)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", listPrefix, err)
	}

	result := &PassResult{Prefix: listPrefix, Listed: len(objects)}
	if len(objects) == 0 {
		s.logger.Info("scan pass found no objects", "prefix", listPrefix)
		return result, nil
	}

	seen := NewSeenSet()
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i := range objects {
		obj := objects[i]
		g.Go(func() error {
			res, err := s.processObject(gctx, obj, seen)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("scan object failed", "key", obj.Key, "error", err)
				result.Failures = append(result.Failures, err)
			}
			if registered(err) {
				result.Objects = append(result.Objects, res)
			}
			return nil // don't cancel other objects
		})
	}
	_ = g.Wait()

	result.Partitions = seen.Len()
	return result, nil
}

// processObject registers the object's partition from its key alone, then
// fetches the object to count its records. A fetch failure is returned
// alongside a result that still carries the registration outcome.
func (s *Scanner) processObject(ctx context.Context, obj domain.ObjectInfo, seen *SeenSet) (ObjectResult, error) {
	res := ObjectResult{Key: obj.Key}

	key, err := ExtractKeyWithPrefix(obj.Key, s.cfg.Prefix)
	if err != nil {
		s.metrics.RecordError("extract")
		return res, &ObjectError{Key: obj.Key, Stage: "extract", Err: err}
	}
	res.Partition = key

	outcome, err := s.registrar.RegisterIfNew(ctx, key, seen)
	if err != nil {
		s.metrics.RecordError("register")
		s.metrics.RecordPartition("failed")
		return res, &ObjectError{Key: obj.Key, Stage: "register", Err: err}
	}
	s.metrics.RecordPartition(outcome.Kind.String())
	res.Outcome = outcome

	records, err := s.countRecords(ctx, obj.Key)
	if err != nil {
		s.metrics.RecordError("fetch")
		return res, &ObjectError{Key: obj.Key, Stage: "fetch", Err: err}
	}
	res.Records = records
	s.metrics.RecordObject(records)
	return res, nil
}

// registered reports whether err left the object's registration outcome
// intact.
func registered(err error) bool {
	var oe *ObjectError
	return err == nil || (errors.As(err, &oe) && oe.Stage == "fetch")
}

func (s *Scanner) countRecords(ctx context.Context, key string) (int64, error) {
	rc, err := storage.OpenObject(ctx, s.store, key)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()
	return storage.CountRecords(rc)
}

// Pass kinds used for logging and metrics.
const (
	PassHourly = "hourly"
	PassDaily  = "daily"
	PassManual = "manual"
)

// RunHourlyPass scans the UTC hour containing at. Like the archive's own
// hourly job it looks at a single object: every object in an hour prefix
// maps to the same partition.
func (s *Scanner) RunHourlyPass(ctx context.Context, at time.Time) (*PassResult, error) {
	return s.timedPass(ctx, PassHourly, HourPrefix(s.cfg.Prefix, at), 1)
}

// RunDailyPass scans the UTC day containing at.
func (s *Scanner) RunDailyPass(ctx context.Context, at time.Time) (*PassResult, error) {
	return s.timedPass(ctx, PassDaily, DayPrefix(s.cfg.Prefix, at), s.cfg.MaxKeys)
}

func (s *Scanner) timedPass(ctx context.Context, kind, prefix string, maxKeys int) (*PassResult, error) {
	start := time.Now()
	res, err := s.runPass(ctx, prefix, maxKeys)

	passErr := err
	if err == nil {
		passErr = res.Err()
	}
	s.metrics.RecordPass(kind, time.Since(start), passErr)

	if err != nil {
		s.logger.Error("scan pass failed", "kind", kind, "prefix", prefix, "error", err)
		return nil, err
	}
	s.logger.Info("scan pass complete",
		"kind", kind,
		"prefix", prefix,
		"listed", res.Listed,
		"partitions", res.Partitions,
		"submitted", len(res.Submissions()),
		"failures", len(res.Failures),
		"duration", time.Since(start),
	)
	return res, nil
}
