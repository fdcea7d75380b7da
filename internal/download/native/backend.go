// Package native is a pure-Go extraction back end on github.com/kkdai/youtube/v2.
// It needs no external executable and serves the formats YouTube offers directly.
package native

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/ytget/yt-telegram-bot/internal/download"
	"github.com/ytget/yt-telegram-bot/internal/model"
	"github.com/ytget/yt-telegram-bot/internal/platform"
)

// Name identifies this back end
const Name = "youtube"

// DefaultTimeout bounds every HTTP request of the client
const DefaultTimeout = 30 * time.Minute

// DefaultFilePermissions is used for downloaded files
const DefaultFilePermissions = 0o644

const createFlags = os.O_CREATE | os.O_RDWR | os.O_TRUNC

// Client is the part of *youtube.Client the back end uses
type Client interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

var _ Client = (*youtube.Client)(nil)

// Backend downloads through the YouTube player API
type Backend struct {
	client Client
	fs     afero.Fs
	log    *logrus.Entry
}

// New creates a back end with its own HTTP client
func New(fs afero.Fs, log *logrus.Entry) *Backend {
	return NewWithClient(&youtube.Client{
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}, fs, log)
}

// NewWithClient creates a back end over client
func NewWithClient(client Client, fs afero.Fs, log *logrus.Entry) *Backend {
	return &Backend{
		client: client,
		fs:     fs,
		log:    log.WithField("backend", Name),
	}
}

// Name implements download.Backend
func (b *Backend) Name() string {
	return Name
}

// QueryFormats implements download.Backend
func (b *Backend) QueryFormats(ctx context.Context, ref model.SourceReference) (*model.Catalog, error) {
	video, err := b.client.GetVideoContext(ctx, ref.String())
	if err != nil {
		return nil, classify(ctx, err)
	}

	return &model.Catalog{
		Title:    video.Title,
		Duration: video.Duration,
		Views:    int64(video.Views),
		Formats:  lo.Map(video.Formats, func(f youtube.Format, _ int) model.FormatDescriptor { return descriptor(f) }),
	}, nil
}

// Transfer implements download.Backend. Stream URLs expire, so the video is
// looked up again and the descriptor matched by itag.
func (b *Backend) Transfer(ctx context.Context, ref model.SourceReference, desc model.FormatDescriptor, destDir string, onProgress download.ProgressFunc) (string, error) {
	itag, err := strconv.Atoi(desc.ID)
	if err != nil {
		return "", fmt.Errorf("%w: itag %q", model.ErrFormatGone, desc.ID)
	}

	video, err := b.client.GetVideoContext(ctx, ref.String())
	if err != nil {
		return "", classify(ctx, err)
	}

	matches := video.Formats.Itag(itag)
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: itag %d", model.ErrFormatGone, itag)
	}
	format := &matches[0]

	path := filepath.Join(destDir, fileName(video.Title, *format))
	file, err := b.fs.OpenFile(path, createFlags, DefaultFilePermissions)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	written, err := b.copyStream(ctx, video, format, file, onProgress)
	if err != nil && isUnexpectedStatus(err, http.StatusForbidden) {
		// chunked requests get 403 on some formats, retry as a single request
		b.log.WithField("itag", itag).Warn("403 from chunked download, retrying with single request")
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return path, fmt.Errorf("retry failed: %w", err)
		}
		if err := file.Truncate(0); err != nil {
			return path, fmt.Errorf("retry failed: %w", err)
		}
		single := *format
		single.ContentLength = 0
		written, err = b.copyStream(ctx, video, &single, file, onProgress)
	}
	if err != nil {
		return path, classify(ctx, err)
	}

	b.log.WithFields(logrus.Fields{"itag": itag, "bytes": written}).Debug("stream copied")
	return path, nil
}

func (b *Backend) copyStream(ctx context.Context, video *youtube.Video, format *youtube.Format, w io.Writer, onProgress download.ProgressFunc) (int64, error) {
	stream, size, err := b.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	return io.Copy(&progressWriter{w: w, total: size, onProgress: onProgress}, stream)
}

// progressWriter reports the running byte count after each write
type progressWriter struct {
	w          io.Writer
	done       int64
	total      int64
	onProgress download.ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.done += int64(n)
	if p.onProgress != nil {
		p.onProgress(p.done, p.total)
	}
	return n, err
}

// classify maps client errors onto the error taxonomy
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isUnexpectedStatus(err, http.StatusNotFound) || isUnexpectedStatus(err, http.StatusGone) {
		return fmt.Errorf("%w: %w", model.ErrFormatGone, err)
	}

	var statusErr *youtube.ErrPlayabiltyStatus
	switch {
	case errors.Is(err, youtube.ErrLoginRequired),
		errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrNotPlayableInEmbed),
		errors.As(err, &statusErr):
		return fmt.Errorf("%w: restricted content: %w", model.ErrSourceUnavailable, err)
	case errors.Is(err, youtube.ErrInvalidCharactersInVideoID),
		errors.Is(err, youtube.ErrVideoIDMinLength):
		return fmt.Errorf("%w: invalid video id: %w", model.ErrSourceUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
	}
}

func isUnexpectedStatus(err error, code int) bool {
	var statusErr youtube.ErrUnexpectedStatusCode
	if errors.As(err, &statusErr) {
		return int(statusErr) == code
	}
	return false
}

// descriptor converts a player format into a format descriptor
func descriptor(f youtube.Format) model.FormatDescriptor {
	mime, codecs := splitMime(f.MimeType)
	d := model.FormatDescriptor{
		ID:        strconv.Itoa(f.ItagNo),
		Container: mimeToExt(mime),
		HasVideo:  strings.HasPrefix(mime, "video/"),
		HasAudio:  f.AudioChannels > 0 || strings.HasPrefix(mime, "audio/"),
	}

	for _, codec := range codecs {
		switch {
		case isAudioCodec(codec) || !d.HasVideo:
			d.AudioCodec = codec
		default:
			d.VideoCodec = codec
		}
	}

	if d.HasVideo && f.Height > 0 {
		d.Height = mo.Some(f.Height)
	}
	if f.ContentLength > 0 {
		d.Size = mo.Some(int64(f.ContentLength))
	}
	if d.HasAudio && !d.HasVideo {
		bitrate := f.AverageBitrate
		if bitrate <= 0 {
			bitrate = f.Bitrate
		}
		if bitrate > 0 {
			d.AudioBitrate = mo.Some(float64(bitrate) / 1000)
		}
	}
	return d
}

// splitMime separates `video/mp4; codecs="avc1.4d401f, mp4a.40.2"` into its
// type and codec list
func splitMime(mime string) (string, []string) {
	base, params, _ := strings.Cut(mime, ";")
	base = strings.ToLower(strings.TrimSpace(base))

	_, list, ok := strings.Cut(params, "codecs=")
	if !ok {
		return base, nil
	}
	list = strings.Trim(strings.TrimSpace(list), `"`)

	var codecs []string
	for _, c := range strings.Split(list, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codecs = append(codecs, c)
		}
	}
	return base, codecs
}

func isAudioCodec(codec string) bool {
	c := strings.ToLower(codec)
	return strings.HasPrefix(c, "mp4a") || c == "opus" || c == "vorbis" || strings.HasPrefix(c, "ac-3") || strings.HasPrefix(c, "ec-3")
}

// mimeToExt maps a media type onto a file extension
func mimeToExt(mime string) string {
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	parts := strings.Split(strings.TrimSpace(mime), "/")
	if len(parts) != 2 {
		return "bin"
	}
	switch {
	case parts[0] == "audio" && parts[1] == "mp4":
		return "m4a"
	case parts[1] == "3gpp":
		return "3gp"
	default:
		return parts[1]
	}
}

// fileName builds the on-disk name of one downloaded stream
func fileName(title string, f youtube.Format) string {
	base := platform.SanitizeFilename(title)
	if base == "" {
		base = "video"
	}
	return fmt.Sprintf("%s.f%d.%s", base, f.ItagNo, mimeToExt(f.MimeType))
}
