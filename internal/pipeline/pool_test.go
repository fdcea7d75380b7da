package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_Clamp(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, MinWorkers},
		{3, 3},
		{50, MaxWorkers},
	}

	for _, tt := range tests {
		p := NewPool(tt.input)
		// exactly expected slots are available
		require.True(t, p.sem.TryAcquire(int64(tt.expected)), "input %d", tt.input)
		assert.False(t, p.sem.TryAcquire(1), "input %d", tt.input)
		p.sem.Release(int64(tt.expected))
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := NewPool(2)
	var running, peak atomic.Int32

	futures := make([]*Future[int], 0, 6)
	for i := 0; i < 6; i++ {
		futures = append(futures, Submit(context.Background(), p, func(context.Context) (int, error) {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return i, nil
		}))
	}

	for i, f := range futures {
		v, err := f.Wait()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	p.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPool_CanceledWhileQueued(t *testing.T) {
	p := NewPool(1)
	release := make(chan struct{})
	busy := Submit(context.Background(), p, func(context.Context) (struct{}, error) {
		<-release
		return struct{}{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	ran := false
	queued := Submit(ctx, p, func(context.Context) (struct{}, error) {
		ran = true
		return struct{}{}, nil
	})
	cancel()

	_, err := queued.Wait()
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, ran)

	close(release)
	_, err = busy.Wait()
	assert.NoError(t, err)
	p.Wait()
}

func TestRun_ReturnsError(t *testing.T) {
	p := NewPool(1)
	boom := errors.New("boom")
	_, err := Run(context.Background(), p, func(context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
}
