package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsJob(t *testing.T) {
	var runs atomic.Int32
	s := New(100*time.Millisecond, func() bool {
		runs.Add(1)
		return true
	}, zerolog.Nop())

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 3*time.Second, 10*time.Millisecond)
}

func TestSchedulerDisabled(t *testing.T) {
	var runs atomic.Int32
	s := New(0, func() bool {
		runs.Add(1)
		return true
	}, zerolog.Nop())

	require.NoError(t, s.Start())
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	assert.Zero(t, runs.Load())
}
