package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayDoublesUntilCap(t *testing.T) {
	b := New(Config{Base: time.Second, Max: 10 * time.Second, JitterFrac: 0})
	assert.Equal(t, time.Second, b.Delay())
	b.RecordFailure()
	assert.Equal(t, 2*time.Second, b.Delay())
	b.RecordFailure()
	assert.Equal(t, 4*time.Second, b.Delay())
	b.RecordFailure()
	assert.Equal(t, 8*time.Second, b.Delay())
	b.RecordFailure()
	assert.Equal(t, 10*time.Second, b.Delay(), "delay should cap at Max")
}

func TestRecordSuccessResetsStreak(t *testing.T) {
	b := New(Config{Base: time.Second, Max: time.Minute, JitterFrac: 0})
	b.RecordFailure()
	b.RecordFailure()
	require.Equal(t, 2, b.ConsecutiveFailures())
	b.RecordSuccess()
	require.Equal(t, 0, b.ConsecutiveFailures())
	assert.Equal(t, time.Second, b.Delay())
}

func TestSleepWithContextCancels(t *testing.T) {
	done := make(chan struct{})
	close(done)
	ok := SleepWithContext(done, time.Hour)
	assert.False(t, ok)
}

func TestSleepWithContextCompletes(t *testing.T) {
	done := make(chan struct{})
	ok := SleepWithContext(done, time.Millisecond)
	assert.True(t, ok)
}
