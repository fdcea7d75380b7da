package progress

import "sync/atomic"

// Cell is the last known completion percentage of one acquisition.
// It only moves forward and stays within 0..100.
type Cell struct {
	percent atomic.Int64
}

// Update records done out of total bytes. Unknown totals are ignored.
func (c *Cell) Update(done, total int64) {
	if total <= 0 || done < 0 {
		return
	}
	c.Set(int(min(done, total) * 100 / total))
}

// Set raises the percentage to pct. Lower values are ignored.
func (c *Cell) Set(pct int) {
	next := int64(min(max(pct, 0), 100))
	for {
		cur := c.percent.Load()
		if next <= cur || c.percent.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Percent returns the last recorded percentage
func (c *Cell) Percent() int {
	return int(c.percent.Load())
}
