package partition

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"log-manager/internal/domain"
	"log-manager/internal/service/query"
	"log-manager/internal/testutil"
)

var key0714 = domain.PartitionKey{Year: "2024", Month: "03", Day: "07", Hour: "14"}

func newTestRegistrar(t *testing.T, eng *testutil.FakeQueryEngine) *Registrar {
	t.Helper()
	m := query.NewManager(eng, query.ManagerConfig{
		OutputLocation: "s3://results/partitions/",
		Database:       "log_manager_data",
	}, nil)
	t.Cleanup(m.Close)

	r, err := NewRegistrar(m, RegistrarConfig{
		Table:  "processed_logs",
		Bucket: "archive",
		Prefix: "processed-logs/",
	}, nil)
	require.NoError(t, err)
	return r
}

func TestRegistrar_RegisterIfNew(t *testing.T) {
	eng := testutil.NewFakeQueryEngine()
	r := newTestRegistrar(t, eng)
	seen := NewSeenSet()

	out, err := r.RegisterIfNew(context.Background(), key0714, seen)
	require.NoError(t, err)
	assert.Equal(t, Submitted, out.Kind)
	assert.Equal(t, "exec-1", out.ExecutionID)

	started := eng.Started()
	require.Len(t, started, 1)
	assert.Equal(t,
		"ALTER TABLE processed_logs ADD IF NOT EXISTS PARTITION (year = '2024', month = '03', day = '07', hour = '14') LOCATION 's3://archive/processed-logs/2024/03/07/14/'",
		started[0].SQL)
	assert.Equal(t, "log_manager_data", started[0].Database)
	assert.Equal(t, "s3://results/partitions/", started[0].OutputLocation)

	again, err := r.RegisterIfNew(context.Background(), key0714, seen)
	require.NoError(t, err)
	assert.Equal(t, AlreadyRegistered, again.Kind)
	assert.Len(t, eng.Started(), 1, "duplicate key must not reach the engine")

	next := key0714
	next.Hour = "15"
	out, err = r.RegisterIfNew(context.Background(), next, seen)
	require.NoError(t, err)
	assert.Equal(t, Submitted, out.Kind)
	assert.Len(t, eng.Started(), 2)
}

func TestRegistrar_FreshSeenSetPerPass(t *testing.T) {
	eng := testutil.NewFakeQueryEngine()
	r := newTestRegistrar(t, eng)

	for i := 0; i < 2; i++ {
		out, err := r.RegisterIfNew(context.Background(), key0714, NewSeenSet())
		require.NoError(t, err)
		assert.Equal(t, Submitted, out.Kind)
	}
	assert.Len(t, eng.Started(), 2)
}

func TestRegistrar_ConcurrentDuplicates(t *testing.T) {
	eng := testutil.NewFakeQueryEngine()
	r := newTestRegistrar(t, eng)
	seen := NewSeenSet()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		submitted int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := r.RegisterIfNew(context.Background(), key0714, seen)
			if !assert.NoError(t, err) {
				return
			}
			if out.Kind == Submitted {
				mu.Lock()
				submitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, submitted)
	assert.Len(t, eng.Started(), 1)
}

func TestRegistrar_Rejected(t *testing.T) {
	eng := testutil.NewFakeQueryEngine()
	eng.StartQueryFn = func(context.Context, domain.StartQueryInput) (string, error) {
		return "", errors.New("TooManyRequestsException")
	}
	r := newTestRegistrar(t, eng)
	seen := NewSeenSet()

	_, err := r.RegisterIfNew(context.Background(), key0714, seen)
	require.Error(t, err)
	var ee *domain.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, err.Error(), "TooManyRequestsException")

	// The key stays marked; no retry within the pass.
	out, err := r.RegisterIfNew(context.Background(), key0714, seen)
	require.NoError(t, err)
	assert.Equal(t, AlreadyRegistered, out.Kind)
	assert.Len(t, eng.Started(), 1)
}

func TestRegistrar_NoBucketOmitsLocation(t *testing.T) {
	eng := testutil.NewFakeQueryEngine()
	m := query.NewManager(eng, query.ManagerConfig{}, nil)
	t.Cleanup(m.Close)
	r, err := NewRegistrar(m, RegistrarConfig{Table: "processed_logs"}, nil)
	require.NoError(t, err)

	_, err = r.RegisterIfNew(context.Background(), key0714, NewSeenSet())
	require.NoError(t, err)
	assert.Equal(t,
		"ALTER TABLE processed_logs ADD IF NOT EXISTS PARTITION (year = '2024', month = '03', day = '07', hour = '14')",
		eng.Started()[0].SQL)
}

func TestNewRegistrar_InvalidTable(t *testing.T) {
	_, err := NewRegistrar(nil, RegistrarConfig{Table: "logs; DROP TABLE x"}, nil)
	require.Error(t, err)
}

func TestOutcomeKindString(t *testing.T) {
	assert.Equal(t, "submitted", Submitted.String())
	assert.Equal(t, "already_registered", AlreadyRegistered.String())
}
