package partition

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"log-manager/internal/domain"
)

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	f := newScanFixture(t, 1)

	_, err := NewScheduler(f.scanner, "not a cron", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hourly")

	_, err = NewScheduler(f.scanner, "", "61 * * * *", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily")
}

func TestScheduler_RunHourlyAndDaily(t *testing.T) {
	f := newScanFixture(t, 2)
	f.store.Put("processed-logs/2024/03/07/14/part-0001", gz(t, "{}"))
	f.store.Put("processed-logs/2024/03/07/14/part-0002", gz(t, "{}"))
	f.store.Put("processed-logs/2024/03/07/09/part-0001", gz(t, "{}"))

	s, err := NewScheduler(f.scanner, "", "", nil)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 3, 7, 14, 5, 0, 0, time.UTC) }

	res, err := s.RunHourly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Listed)
	assert.Equal(t, "processed-logs/2024/03/07/14/", res.Prefix)

	res, err = s.RunDaily(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Listed)
	assert.Equal(t, 2, res.Partitions)
}

func TestScheduler_TriggerSkipsOverlap(t *testing.T) {
	f := newScanFixture(t, 1)
	s, err := NewScheduler(f.scanner, "", "", nil)
	require.NoError(t, err)

	var lists int
	f.store.ListFn = func(context.Context, string, int) ([]domain.ObjectInfo, error) {
		lists++
		return nil, nil
	}

	s.running[PassDaily] = true
	s.trigger(PassDaily)
	assert.Zero(t, lists)

	s.running[PassDaily] = false
	s.trigger(PassDaily)
	assert.Equal(t, 1, lists)
	assert.False(t, s.running[PassDaily])
}

func TestScheduler_StartStop(t *testing.T) {
	f := newScanFixture(t, 1)
	s, err := NewScheduler(f.scanner, "@every 1h", "@daily", nil)
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
