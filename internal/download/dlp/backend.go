// Package dlp is the yt-dlp extraction back end.
package dlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	ytdlp "github.com/lrstanley/go-ytdlp"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/ytget/yt-telegram-bot/internal/download"
	"github.com/ytget/yt-telegram-bot/internal/model"
	"github.com/ytget/yt-telegram-bot/internal/platform"
)

// Name identifies this back end
const Name = "ytdlp"

// OutputTemplate names downloaded files inside the destination directory.
// The format id keeps the streams of one merge plan apart.
const OutputTemplate = "%(title)s.f%(format_id)s.%(ext)s"

// DefaultProgressInterval throttles the yt-dlp progress callback
const DefaultProgressInterval = 500 * time.Millisecond

// noCodec is what yt-dlp reports for an absent track
const noCodec = "none"

// Messages yt-dlp prints for a format the source stopped serving
var formatGoneMarkers = []string{
	"requested format is not available",
	"requested format not available",
}

// Backend drives the yt-dlp executable
type Backend struct {
	fs       afero.Fs
	interval time.Duration
	log      *logrus.Entry
}

// New creates a yt-dlp back end. fs is used to locate files yt-dlp did not report.
func New(fs afero.Fs, log *logrus.Entry) *Backend {
	return &Backend{
		fs:       fs,
		interval: DefaultProgressInterval,
		log:      log.WithField("backend", Name),
	}
}

// Name implements download.Backend
func (b *Backend) Name() string {
	return Name
}

// QueryFormats implements download.Backend
func (b *Backend) QueryFormats(ctx context.Context, ref model.SourceReference) (*model.Catalog, error) {
	res, err := ytdlp.New().
		NoPlaylist().
		DumpSingleJSON().
		Run(ctx, ref.String())
	if err != nil {
		return nil, classify(ctx, err, res)
	}

	cat, err := parseCatalog([]byte(res.Stdout))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
	}
	b.log.WithFields(logrus.Fields{"title": cat.Title, "formats": len(cat.Formats)}).Debug("formats listed")
	return cat, nil
}

// Transfer implements download.Backend
func (b *Backend) Transfer(ctx context.Context, ref model.SourceReference, desc model.FormatDescriptor, destDir string, onProgress download.ProgressFunc) (string, error) {
	var title string

	dl := ytdlp.New().
		NoPlaylist().
		ForceOverwrites().
		RestrictFilenames().
		Format(desc.ID).
		DumpJSON().
		NoSimulate().
		Output(filepath.Join(destDir, OutputTemplate))

	dl.ProgressFunc(b.interval, func(update ytdlp.ProgressUpdate) {
		if update.Info != nil && update.Info.Title != nil {
			title = *update.Info.Title
		}
		if onProgress != nil {
			onProgress(int64(update.DownloadedBytes), int64(update.TotalBytes))
		}
	})

	res, err := dl.Run(ctx, ref.String())
	if err != nil {
		return "", classify(ctx, err, res)
	}

	var reported string
	if info, err := res.GetExtractedInfo(); err == nil && len(info) > 0 && info[0].Filename != nil {
		reported = *info[0].Filename
		if info[0].Title != nil {
			title = *info[0].Title
		}
	}

	return resolvePath(b.fs, reported, destDir, title, desc.Container)
}

// resolvePath returns the reported file when it exists, otherwise searches destDir
func resolvePath(fs afero.Fs, reported, destDir, title, container string) (string, error) {
	if reported != "" {
		if _, err := fs.Stat(reported); err == nil {
			return reported, nil
		}
	}

	path, err := platform.FindDownloadedFile(fs, destDir, title, container)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
	}
	return path, nil
}

// classify maps a failed yt-dlp run onto the error taxonomy
func classify(ctx context.Context, err error, res *ytdlp.Result) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	text := strings.ToLower(err.Error())
	if res != nil {
		text += "\n" + strings.ToLower(res.Stderr)
	}
	for _, marker := range formatGoneMarkers {
		if strings.Contains(text, marker) {
			return fmt.Errorf("%w: %w", model.ErrFormatGone, err)
		}
	}
	return fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
}

// info is the subset of the yt-dlp info JSON the catalog needs
type info struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Duration  *float64 `json:"duration"`
	ViewCount *int64   `json:"view_count"`
	Formats   []format `json:"formats"`
}

type format struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	VCodec         string   `json:"vcodec"`
	ACodec         string   `json:"acodec"`
	Height         *int     `json:"height"`
	Filesize       *int64   `json:"filesize"`
	FilesizeApprox *int64   `json:"filesize_approx"`
	ABR            *float64 `json:"abr"`
}

// parseCatalog converts --dump-single-json output into a raw catalog
func parseCatalog(data []byte) (*model.Catalog, error) {
	var raw info
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse yt-dlp output: %w", err)
	}

	cat := &model.Catalog{
		Title:   raw.Title,
		Formats: lo.Map(raw.Formats, func(f format, _ int) model.FormatDescriptor { return f.descriptor() }),
	}
	if raw.Duration != nil {
		cat.Duration = time.Duration(*raw.Duration * float64(time.Second))
	}
	if raw.ViewCount != nil {
		cat.Views = *raw.ViewCount
	}
	return cat, nil
}

func (f format) descriptor() model.FormatDescriptor {
	d := model.FormatDescriptor{
		ID:        f.FormatID,
		Container: strings.ToLower(f.Ext),
		HasVideo:  hasTrack(f.VCodec),
		HasAudio:  hasTrack(f.ACodec),
	}
	if d.HasVideo {
		d.VideoCodec = f.VCodec
	}
	if d.HasAudio {
		d.AudioCodec = f.ACodec
	}
	if f.Height != nil && *f.Height > 0 {
		d.Height = mo.Some(*f.Height)
	}

	switch {
	case f.Filesize != nil && *f.Filesize > 0:
		d.Size = mo.Some(*f.Filesize)
	case f.FilesizeApprox != nil && *f.FilesizeApprox > 0:
		d.Size = mo.Some(*f.FilesizeApprox)
	}

	if f.ABR != nil && *f.ABR > 0 {
		d.AudioBitrate = mo.Some(*f.ABR)
	}
	return d
}

func hasTrack(codec string) bool {
	return codec != "" && codec != noCodec
}
