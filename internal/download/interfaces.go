package download

import (
	"context"

	"github.com/ytget/yt-telegram-bot/internal/model"
)

// ProgressFunc receives the bytes transferred so far and the expected total.
// total is zero while unknown. It is called per chunk, unthrottled.
type ProgressFunc func(done, total int64)

// Backend is an extraction back end.
type Backend interface {
	// Name identifies the back end in logs and metrics
	Name() string

	// QueryFormats lists every format the source offers
	QueryFormats(ctx context.Context, ref model.SourceReference) (*model.Catalog, error)

	// Transfer downloads one descriptor into destDir and returns the file path.
	// A descriptor the source no longer serves fails with model.ErrFormatGone.
	Transfer(ctx context.Context, ref model.SourceReference, desc model.FormatDescriptor, destDir string, onProgress ProgressFunc) (string, error)
}
