package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/ytget/yt-telegram-bot/internal/model"
)

// Source is the catalog half of an extraction back end
type Source interface {
	QueryFormats(ctx context.Context, ref model.SourceReference) (*model.Catalog, error)
}

// Builder queries a source and normalizes its answer
type Builder struct {
	source Source
	log    *logrus.Entry
}

// NewBuilder creates a catalog builder over source
func NewBuilder(source Source, log *logrus.Entry) *Builder {
	return &Builder{
		source: source,
		log:    log.WithField("component", "catalog"),
	}
}

// Build returns the normalized catalog for ref. Extraction failures match
// model.ErrSourceUnavailable, an empty result matches model.ErrNoFormatsFound.
func (b *Builder) Build(ctx context.Context, ref model.SourceReference) (*model.Catalog, error) {
	raw, err := b.source.QueryFormats(ctx, ref)
	if err != nil {
		if errors.Is(err, model.ErrSourceUnavailable) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrNoFormatsFound, ref)
	}

	catalog := *raw
	catalog.Source = ref
	catalog.Formats = Normalize(raw.Formats)

	for _, f := range catalog.Formats {
		b.log.WithFields(logrus.Fields{
			"format_id": f.ID,
			"height":    f.Height.OrElse(0),
			"ext":       f.Container,
			"vcodec":    f.VideoCodec,
			"acodec":    f.AudioCodec,
		}).Debug("format")
	}

	if len(catalog.Formats) == 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrNoFormatsFound, ref)
	}

	b.log.WithFields(logrus.Fields{
		"title":   catalog.Title,
		"formats": len(catalog.Formats),
	}).Info("catalog ready")

	return &catalog, nil
}

// Normalize drops descriptors that carry no media or no identifier, drops
// video descriptors without a usable height and removes duplicate ids
// keeping the first occurrence.
func Normalize(formats []model.FormatDescriptor) []model.FormatDescriptor {
	usable := lo.Filter(formats, func(f model.FormatDescriptor, _ int) bool {
		if f.ID == "" || (!f.HasVideo && !f.HasAudio) {
			return false
		}
		if f.HasVideo {
			h, ok := f.Height.Get()
			return ok && h > 0
		}
		return true
	})
	return lo.UniqBy(usable, func(f model.FormatDescriptor) string {
		return f.ID
	})
}
