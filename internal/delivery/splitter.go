package delivery

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/ytget/yt-telegram-bot/internal/model"
	"github.com/ytget/yt-telegram-bot/internal/platform"
)

// Splitter plans the delivery units of an artifact
type Splitter struct {
	fs       afero.Fs
	limit    int64
	partSize int64
	ceiling  int64
}

// NewSplitter creates a splitter. Artifacts up to limit are sent whole,
// larger ones are cut into parts of partSize bytes; anything above ceiling is
// rejected. A non-positive ceiling disables the rejection.
func NewSplitter(fs afero.Fs, limit, partSize, ceiling int64) (*Splitter, error) {
	if limit <= 0 || partSize <= 0 {
		return nil, errors.New("transport limit and part size must be positive")
	}
	if partSize > limit {
		return nil, fmt.Errorf("part size %d exceeds transport limit %d", partSize, limit)
	}
	return &Splitter{fs: fs, limit: limit, partSize: partSize, ceiling: ceiling}, nil
}

// Plan returns the ordered delivery units for artifact. Part files are
// written next to the artifact as <path>.partNNN; re-planning the same file
// reproduces identical boundaries and names.
func (s *Splitter) Plan(artifact model.Artifact) ([]model.DeliveryUnit, error) {
	info, err := s.fs.Stat(artifact.Path)
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}
	size := info.Size()

	if s.ceiling > 0 && size > s.ceiling {
		return nil, model.NewSizeRejected(size, s.ceiling)
	}

	if size <= s.limit {
		return []model.DeliveryUnit{{
			Path:   artifact.Path,
			Index:  1,
			Total:  1,
			Length: size,
			Whole:  true,
		}}, nil
	}

	return s.split(artifact.Path, size)
}

// Boundaries returns the byte ranges of the parts of a file of size bytes
func Boundaries(size, partSize int64) [][2]int64 {
	if size <= 0 || partSize <= 0 {
		return nil
	}
	ranges := make([][2]int64, 0, (size+partSize-1)/partSize)
	for offset := int64(0); offset < size; offset += partSize {
		ranges = append(ranges, [2]int64{offset, min(partSize, size-offset)})
	}
	return ranges
}

func (s *Splitter) split(path string, size int64) ([]model.DeliveryUnit, error) {
	src, err := s.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer src.Close()

	ranges := Boundaries(size, s.partSize)
	units := make([]model.DeliveryUnit, 0, len(ranges))

	for i, r := range ranges {
		unit := model.DeliveryUnit{
			Path:   platform.PartPath(path, i+1),
			Index:  i + 1,
			Total:  len(ranges),
			Offset: r[0],
			Length: r[1],
		}
		if err := s.writePart(src, unit); err != nil {
			s.removeUnits(units)
			s.fs.Remove(unit.Path)
			return nil, err
		}
		units = append(units, unit)
	}

	return units, nil
}

func (s *Splitter) writePart(src io.ReaderAt, unit model.DeliveryUnit) error {
	dst, err := s.fs.Create(unit.Path)
	if err != nil {
		return fmt.Errorf("create part %d: %w", unit.Index, err)
	}

	n, err := io.Copy(dst, io.NewSectionReader(src, unit.Offset, unit.Length))
	closeErr := dst.Close()
	switch {
	case err != nil:
		return fmt.Errorf("write part %d: %w", unit.Index, err)
	case closeErr != nil:
		return fmt.Errorf("close part %d: %w", unit.Index, closeErr)
	case n != unit.Length:
		return fmt.Errorf("write part %d: short write %d of %d bytes", unit.Index, n, unit.Length)
	}
	return nil
}

func (s *Splitter) removeUnits(units []model.DeliveryUnit) {
	for _, u := range units {
		if !u.Whole {
			s.fs.Remove(u.Path)
		}
	}
}
