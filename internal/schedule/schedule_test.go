package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) error { return nil }

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New("not a cron", time.UTC, 0, noop)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule: parse")
}

func TestNext_FridayMorning(t *testing.T) {
	s, err := New("0 10 * * FRI", time.UTC, 0, noop)
	require.NoError(t, err)

	next := s.Next()
	assert.Equal(t, time.Friday, next.Weekday())
	assert.Equal(t, 10, next.Hour())
	assert.Equal(t, 0, next.Minute())
	assert.True(t, next.After(time.Now()))
}

func TestReschedule_Location(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	s, err := New("0 10 * * FRI", time.UTC, 0, noop)
	require.NoError(t, err)
	require.NoError(t, s.Reschedule("30 9 * * MON", ny))

	next := s.Next().In(ny)
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 30, next.Minute())

	// An invalid replacement keeps the previous schedule.
	require.Error(t, s.Reschedule("bogus", ny))
	assert.Equal(t, time.Monday, s.Next().In(ny).Weekday())
}

func TestRunNow_AppliesTimeout(t *testing.T) {
	s, err := New("@daily", time.UTC, 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
	assert.True(t, errors.Is(s.RunNow(context.Background()), context.DeadlineExceeded))
}

func TestRun_FiresAndStops(t *testing.T) {
	var calls atomic.Int32
	s, err := New("@every 1s", time.UTC, 0, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTick_RecoversFailures(t *testing.T) {
	s, err := New("@daily", time.UTC, 0, func(context.Context) error { return errors.New("boom") })
	require.NoError(t, err)
	assert.NotPanics(t, s.tick)
}

func TestRunNow_NeverOverlaps(t *testing.T) {
	var calls atomic.Int32
	started, release := make(chan struct{}), make(chan struct{})
	s, err := New("@daily", time.UTC, 0, func(context.Context) error {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		return nil
	})
	require.NoError(t, err)

	first := make(chan error, 1)
	go func() { first <- s.RunNow(context.Background()) }()
	<-started

	assert.ErrorIs(t, s.RunNow(context.Background()), ErrBusy)
	s.tick()
	assert.Equal(t, int32(1), calls.Load(), "tick must not start a second run")

	close(release)
	require.NoError(t, <-first)
	require.NoError(t, s.RunNow(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}
