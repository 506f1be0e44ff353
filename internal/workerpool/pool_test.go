package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	p := New(2)
	var concurrent, maxConcurrent int32
	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			_ = p.Do(context.Background(), func() error {
				n := atomic.AddInt32(&concurrent, 1)
				for {
					m := atomic.LoadInt32(&maxConcurrent)
					if n <= m || atomic.CompareAndSwapInt32(&maxConcurrent, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&concurrent, -1)
				return nil
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&maxConcurrent), int32(2))
}

func TestPoolAcquireRespectsContext(t *testing.T) {
	p := New(1)
	require.NoError(t, p.Acquire(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err := p.Acquire(ctx)
	require.Error(t, err)
	p.Release()
}

func TestQueueDepthWatermarks(t *testing.T) {
	q := NewQueueDepth(100, 20)
	assert.True(t, q.ShouldPause(150))
	assert.False(t, q.ShouldPause(50))
	assert.True(t, q.ShouldResume(10))
	assert.False(t, q.ShouldResume(50))
}
