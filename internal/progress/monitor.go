package progress

import (
	"context"
	"sync"
	"time"
)

// Defaults
const (
	DefaultInterval  = time.Second
	DefaultThreshold = 5
)

// EmitFunc delivers one progress update
type EmitFunc func(ctx context.Context, percent int)

// Throttle passes a percentage only when it is at least threshold points
// above the last passed one.
type Throttle struct {
	threshold int
	last      int
}

// NewThrottle creates a throttle; a non-positive threshold uses DefaultThreshold
func NewThrottle(threshold int) *Throttle {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Throttle{threshold: threshold}
}

// Observe returns pct and true if pct should be emitted
func (t *Throttle) Observe(pct int) (int, bool) {
	if pct < t.last+t.threshold {
		return 0, false
	}
	t.last = pct
	return pct, true
}

// Monitor samples a Cell and emits throttled updates
type Monitor struct {
	cell     *Cell
	interval time.Duration
	throttle *Throttle
	emit     EmitFunc
}

// NewMonitor creates a monitor over cell
func NewMonitor(cell *Cell, interval time.Duration, threshold int, emit EmitFunc) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		cell:     cell,
		interval: interval,
		throttle: NewThrottle(threshold),
		emit:     emit,
	}
}

// Start runs the monitor until the returned stop function is called or ctx
// is done. stop cancels the monitor and waits for it to exit; once it returns
// no further emission happens. stop is safe to call more than once.
func (m *Monitor) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		m.loop(ctx)
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

func (m *Monitor) loop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// select picks randomly when both channels are ready
		if ctx.Err() != nil {
			return
		}

		if pct, ok := m.throttle.Observe(m.cell.Percent()); ok {
			m.emit(ctx, pct)
		}
	}
}
