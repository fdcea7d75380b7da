package platform

import (
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Janitor periodically removes working files and session directories older
// than a maximum age. Paths reported by inUse are always kept.
type Janitor struct {
	fs       afero.Fs
	dir      string
	maxAge   time.Duration
	schedule string
	cleaner  *Cleaner
	inUse    func(path string) bool
	now      func() time.Time
	cron     *cron.Cron
	log      *logrus.Entry
}

// NewJanitor creates a janitor for dir. schedule uses robfig/cron syntax, e.g. "@every 1h".
func NewJanitor(fs afero.Fs, dir, schedule string, maxAge time.Duration, cleaner *Cleaner, inUse func(string) bool, log *logrus.Entry) *Janitor {
	if inUse == nil {
		inUse = func(string) bool { return false }
	}
	return &Janitor{
		fs:       fs,
		dir:      dir,
		maxAge:   maxAge,
		schedule: schedule,
		cleaner:  cleaner,
		inUse:    inUse,
		now:      time.Now,
		log:      log.WithField("component", "janitor"),
	}
}

// Start registers the sweep on the schedule and starts the cron runner
func (j *Janitor) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(j.schedule, func() { j.Sweep() }); err != nil {
		return err
	}
	j.cron = c
	c.Start()
	j.log.WithField("schedule", j.schedule).Info("janitor started")
	return nil
}

// Stop stops the cron runner and waits for a running sweep to finish
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
	j.cron = nil
}

// Sweep removes stale files from the working directory and returns how many were removed
func (j *Janitor) Sweep() int {
	entries, err := afero.ReadDir(j.fs, j.dir)
	if err != nil {
		j.log.WithError(err).Warn("sweep: read dir")
		return 0
	}

	cutoff := j.now().Add(-j.maxAge)
	var stale []string
	removed := 0
	for _, entry := range entries {
		if !entry.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(j.dir, entry.Name())
		if j.inUse(path) {
			continue
		}
		// session directories go as a whole
		if entry.IsDir() {
			if j.cleaner.RemoveDir(path) {
				removed++
			}
			continue
		}
		stale = append(stale, path)
	}

	removed += j.cleaner.Remove(stale...)
	if removed > 0 {
		j.log.WithField("removed", removed).Info("sweep finished")
	}
	return removed
}
