package download

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/ytget/yt-telegram-bot/internal/model"
)

// DefaultDirPermissions is used for the destination directory
const DefaultDirPermissions = 0o755

// Executor runs the transfers of one selection plan
type Executor struct {
	backend Backend
	fs      afero.Fs
	ceiling int64
	log     *logrus.Entry
}

// NewExecutor creates an executor. Plans whose known size exceeds ceiling are
// rejected before any byte is transferred; a non-positive ceiling disables the check.
func NewExecutor(backend Backend, fs afero.Fs, ceiling int64, log *logrus.Entry) *Executor {
	return &Executor{
		backend: backend,
		fs:      fs,
		ceiling: ceiling,
		log:     log.WithFields(logrus.Fields{"component": "executor", "backend": backend.Name()}),
	}
}

// Backend returns the extraction back end the executor drives
func (e *Executor) Backend() Backend {
	return e.backend
}

// Acquire downloads every stream of plan into destDir in plan order.
// On failure the returned acquisition still lists the files completed so far
// so the caller can clean them up.
func (e *Executor) Acquire(ctx context.Context, ref model.SourceReference, title string, plan model.SelectionPlan, destDir string, sink ProgressFunc) (model.Acquisition, error) {
	acq := model.Acquisition{Title: title, Plan: plan}

	if len(plan.Streams) == 0 {
		return acq, fmt.Errorf("%w: empty plan", model.ErrNotFound)
	}

	if known, _ := plan.KnownSize(); e.ceiling > 0 && known > e.ceiling {
		return acq, model.NewSizeRejected(known, e.ceiling)
	}

	if err := e.fs.MkdirAll(destDir, DefaultDirPermissions); err != nil {
		return acq, fmt.Errorf("create %s: %w", destDir, err)
	}

	agg := newAggregator(plan.Streams, sink)

	for i, desc := range plan.Streams {
		log := e.log.WithFields(logrus.Fields{"format_id": desc.ID, "stream": i + 1, "streams": len(plan.Streams)})
		log.Info("transfer started")

		path, err := e.backend.Transfer(ctx, ref, desc, destDir, agg.stream(i))
		if err != nil {
			log.WithError(err).Warn("transfer failed")
			if path != "" {
				acq.Streams = append(acq.Streams, model.Artifact{Path: path, Title: title})
			}
			return acq, classify(err)
		}

		info, err := e.fs.Stat(path)
		if err != nil {
			return acq, fmt.Errorf("%w: downloaded file missing: %w", model.ErrSourceUnavailable, err)
		}

		artifact := model.Artifact{
			Path:  path,
			Size:  info.Size(),
			Title: title,
			Kind:  kindOf(desc),
		}
		acq.Streams = append(acq.Streams, artifact)
		agg.finish(i, info.Size())

		if info.Size() == 0 {
			return acq, fmt.Errorf("%w: empty download for format %s", model.ErrSourceUnavailable, desc.ID)
		}

		var total int64
		for _, s := range acq.Streams {
			total += s.Size
		}
		if e.ceiling > 0 && total > e.ceiling {
			return acq, model.NewSizeRejected(total, e.ceiling)
		}

		log.WithFields(logrus.Fields{"path": path, "size": info.Size()}).Info("transfer finished")
	}

	return acq, nil
}

func kindOf(desc model.FormatDescriptor) model.FileKind {
	if desc.IsAudioOnly() {
		return model.FileAudio
	}
	return model.FileVideo
}

// classify keeps taxonomy errors and cancellation as they are and reports
// anything else as an unavailable source.
func classify(err error) error {
	switch {
	case errors.Is(err, model.ErrFormatGone),
		errors.Is(err, model.ErrSourceUnavailable),
		errors.Is(err, model.ErrSizeRejected),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
	}
}

// aggregator folds per-stream progress into one byte count over the whole plan
type aggregator struct {
	mu       sync.Mutex
	expected []int64 // known or reported totals per stream
	done     []int64
	sink     ProgressFunc
}

func newAggregator(streams []model.FormatDescriptor, sink ProgressFunc) *aggregator {
	a := &aggregator{
		expected: make([]int64, len(streams)),
		done:     make([]int64, len(streams)),
		sink:     sink,
	}
	for i, s := range streams {
		a.expected[i] = s.Size.OrElse(0)
	}
	return a
}

func (a *aggregator) stream(i int) ProgressFunc {
	return func(done, total int64) {
		a.mu.Lock()
		if total > 0 {
			a.expected[i] = total
		}
		a.done[i] = done
		d, t := a.totals()
		a.mu.Unlock()

		if a.sink != nil {
			a.sink(d, t)
		}
	}
}

func (a *aggregator) finish(i int, size int64) {
	a.mu.Lock()
	a.expected[i] = size
	a.done[i] = size
	d, t := a.totals()
	a.mu.Unlock()

	if a.sink != nil {
		a.sink(d, t)
	}
}

// totals must be called with mu held
func (a *aggregator) totals() (int64, int64) {
	var done, total int64
	for i := range a.done {
		done += a.done[i]
		total += max(a.expected[i], a.done[i])
	}
	return done, total
}
