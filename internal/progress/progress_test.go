package progress

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCell(t *testing.T) {
	tests := []struct {
		name     string
		samples  [][2]int64
		expected int
	}{
		{"empty", nil, 0},
		{"unknown total ignored", [][2]int64{{10, 0}}, 0},
		{"half", [][2]int64{{50, 100}}, 50},
		{"never decreases", [][2]int64{{80, 100}, {10, 100}}, 80},
		{"total grows", [][2]int64{{50, 100}, {50, 200}}, 50},
		{"clamped", [][2]int64{{300, 100}}, 100},
		{"negative ignored", [][2]int64{{-5, 100}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Cell
			for _, s := range tt.samples {
				c.Update(s[0], s[1])
			}
			assert.Equal(t, tt.expected, c.Percent())
		})
	}
}

func TestCell_Set(t *testing.T) {
	var c Cell
	c.Set(-10)
	assert.Equal(t, 0, c.Percent())
	c.Set(40)
	c.Set(30)
	assert.Equal(t, 40, c.Percent())
	c.Set(140)
	assert.Equal(t, 100, c.Percent())
}

func TestThrottle_Property(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for run := 0; run < 200; run++ {
		threshold := 1 + rng.Intn(20)
		th := NewThrottle(threshold)
		var c Cell

		total := int64(1 + rng.Intn(1<<20))
		var done int64
		var emitted []int
		for done < total {
			done = min(done+int64(rng.Intn(1<<14)), total)
			c.Update(done, total)
			if pct, ok := th.Observe(c.Percent()); ok {
				emitted = append(emitted, pct)
			}
		}

		last := 0
		for _, pct := range emitted {
			require.GreaterOrEqual(t, pct-last, threshold, "run %d: %v", run, emitted)
			last = pct
		}
	}
}

func TestThrottle_DefaultThreshold(t *testing.T) {
	th := NewThrottle(0)

	_, ok := th.Observe(4)
	assert.False(t, ok)
	pct, ok := th.Observe(5)
	assert.True(t, ok)
	assert.Equal(t, 5, pct)
	_, ok = th.Observe(9)
	assert.False(t, ok)
}

type recorder struct {
	mu   sync.Mutex
	seen []int
}

func (r *recorder) emit(_ context.Context, pct int) {
	r.mu.Lock()
	r.seen = append(r.seen, pct)
	r.mu.Unlock()
}

func (r *recorder) values() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.seen...)
}

func TestMonitor_EmitsThrottledUpdates(t *testing.T) {
	var c Cell
	rec := &recorder{}
	m := NewMonitor(&c, 5*time.Millisecond, 5, rec.emit)

	stop := m.Start(context.Background())
	c.Set(3)
	time.Sleep(20 * time.Millisecond)
	c.Set(12)
	assert.Eventually(t, func() bool { return len(rec.values()) == 1 }, time.Second, time.Millisecond)
	c.Set(100)
	assert.Eventually(t, func() bool { return len(rec.values()) == 2 }, time.Second, time.Millisecond)
	stop()

	assert.Equal(t, []int{12, 100}, rec.values())
}

func TestMonitor_NoEmissionAfterStop(t *testing.T) {
	var c Cell
	rec := &recorder{}
	m := NewMonitor(&c, time.Millisecond, 1, rec.emit)

	stop := m.Start(context.Background())
	stop()
	stop()

	count := len(rec.values())
	c.Set(100)
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, rec.values(), count)
}

func TestMonitor_StopsWithParentContext(t *testing.T) {
	var c Cell
	ctx, cancel := context.WithCancel(context.Background())
	stop := NewMonitor(&c, time.Millisecond, 5, func(context.Context, int) {}).Start(ctx)

	cancel()
	stop()
}
