package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arynyklas/HDRFilmsBot/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	calls     atomic.Int32
	panicOnce atomic.Bool
	mu        sync.Mutex
	lastCtx   context.Context
}

func (q *fakeQueue) ProcessNext(ctx context.Context) (bool, error) {
	n := q.calls.Add(1)
	q.mu.Lock()
	q.lastCtx = ctx
	q.mu.Unlock()

	if n == 1 && q.panicOnce.Load() {
		panic("boom")
	}
	if n%2 == 0 {
		return true, errors.New("download failed")
	}
	return false, nil
}

type fakeTracker struct {
	calls atomic.Int32
}

func (t *fakeTracker) RunCycle(ctx context.Context) error {
	t.calls.Add(1)
	return nil
}

type fakeSweeper struct {
	calls atomic.Int32
}

func (s *fakeSweeper) SweepAll() map[string]int {
	s.calls.Add(1)
	return map[string]int{"rezka_data": 2, "short_info": 0}
}

func newTestScheduler(cfg Config) (*Scheduler, *fakeQueue, *fakeTracker, *fakeSweeper, *metrics.Metrics) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	m := metrics.New(prometheus.NewRegistry())
	queue := &fakeQueue{}
	tracker := &fakeTracker{}
	sweeper := &fakeSweeper{}
	return NewScheduler(queue, tracker, sweeper, m, cfg, logger), queue, tracker, sweeper, m
}

func TestSchedulerRunsJobs(t *testing.T) {
	s, queue, tracker, sweeper, m := newTestScheduler(Config{
		TrackInterval: time.Second,
		QueueSleep:    10 * time.Millisecond,
	})
	queue.panicOnce.Store(true)

	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return queue.calls.Load() >= 5 }, 2*time.Second, 10*time.Millisecond,
		"worker keeps going after a panic and after errors")
	assert.Eventually(t, func() bool { return tracker.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	s.Stop()

	assert.GreaterOrEqual(t, testutil.ToFloat64(m.CacheEvictions.WithLabelValues("rezka_data")), 2.0)
	assert.Zero(t, testutil.ToFloat64(m.CacheEvictions.WithLabelValues("short_info")))

	queue.mu.Lock()
	ctx := queue.lastCtx
	queue.mu.Unlock()
	require.NotNil(t, ctx)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	stopped := queue.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, queue.calls.Load(), "no iterations after Stop")
}

func TestSchedulerRejectsShortTrackInterval(t *testing.T) {
	s, _, _, _, _ := newTestScheduler(Config{TrackInterval: 100 * time.Millisecond})

	assert.Error(t, s.Start(context.Background()))
}
