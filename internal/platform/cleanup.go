package platform

import (
	"errors"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Cleaner removes working files. Failures are logged, never returned.
type Cleaner struct {
	fs  afero.Fs
	log *logrus.Entry
}

// NewCleaner creates a cleaner over fs
func NewCleaner(fs afero.Fs, log *logrus.Entry) *Cleaner {
	return &Cleaner{fs: fs, log: log.WithField("component", "cleanup")}
}

// Remove deletes every path in paths, skipping empty and missing ones.
// It returns the number of files actually removed.
func (c *Cleaner) Remove(paths ...string) int {
	removed := 0
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}

		err := c.fs.Remove(path)
		switch {
		case err == nil:
			removed++
			c.log.WithField("path", path).Debug("removed")
		case errors.Is(err, os.ErrNotExist):
		default:
			c.log.WithError(err).WithField("path", path).Error("remove failed")
		}
	}
	return removed
}

// RemoveDir deletes dir and everything below it. It reports whether dir existed.
func (c *Cleaner) RemoveDir(dir string) bool {
	if dir == "" {
		return false
	}
	if _, err := c.fs.Stat(dir); err != nil {
		return false
	}
	if err := c.fs.RemoveAll(dir); err != nil {
		c.log.WithError(err).WithField("path", dir).Error("remove dir failed")
		return false
	}
	c.log.WithField("path", dir).Debug("removed dir")
	return true
}
