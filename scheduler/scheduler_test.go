package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	assert.Error(t, s.AddJob("every tuesday", "forecast", func(context.Context) error { return nil }))
	assert.Empty(t, s.Status())
}

func TestRunNowRecordsStatus(t *testing.T) {
	s := New(zerolog.Nop())
	fn := func(context.Context) error { return errors.New("source unavailable") }
	require.NoError(t, s.AddJob("@hourly", "forecast", fn))

	assert.Error(t, s.RunNow("forecast", fn))
	status := s.Status()
	require.Len(t, status, 1)
	assert.Equal(t, "forecast", status[0].Name)
	assert.Equal(t, "@hourly", status[0].Schedule)
	assert.Equal(t, 1, status[0].Runs)
	assert.False(t, status[0].Running)
	assert.Equal(t, "source unavailable", status[0].Error)

	require.NoError(t, s.RunNow("forecast", func(context.Context) error { return nil }))
	assert.Empty(t, s.Status()[0].Error)
	assert.Equal(t, 2, s.Status()[0].Runs)
}

func TestScheduledRunsDoNotOverlap(t *testing.T) {
	s := New(zerolog.Nop())
	var running, overlaps, runs atomic.Int32
	require.NoError(t, s.AddJob("@every 1s", "slow", func(ctx context.Context) error {
		if running.Add(1) > 1 {
			overlaps.Add(1)
		}
		defer running.Add(-1)
		runs.Add(1)
		select {
		case <-time.After(2500 * time.Millisecond):
		case <-ctx.Done():
		}
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 3500*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	assert.GreaterOrEqual(t, runs.Load(), int32(1))
	assert.Zero(t, overlaps.Load())
	assert.Zero(t, running.Load(), "Run waits for the job to return")
}

func TestRunNowWhileRunning(t *testing.T) {
	s := New(zerolog.Nop())
	started, release := make(chan struct{}), make(chan struct{})
	go func() {
		_ = s.RunNow("forecast", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, s.RunNow("forecast", func(context.Context) error { return nil }), ErrBusy)
	close(release)
	assert.Eventually(t, func() bool { return s.Status()[0].Runs == 1 }, time.Second, 10*time.Millisecond)
}
