package transcode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ytget/yt-telegram-bot/internal/model"
)

// FFmpeg constants
const (
	// Video is passed through untouched when muxing
	VideoCodecCopy = "copy"

	// Audio codec settings
	MuxAudioCodec     = "aac"
	ExtractAudioCodec = "libmp3lame"
	DefaultBitrate    = "192k"

	// Container flags
	FastStartFlag = "+faststart"

	// Output suffixes
	MergedSuffix       = "-merged"
	OutputExtensionMP4 = ".mp4"
	OutputExtensionMP3 = ".mp3"

	// Executable and I/O constants
	FFmpegCommand       = "ffmpeg"
	FFprobeCommand      = "ffprobe"
	FFprobeLogLevel     = "error"
	FFprobeShowEntries  = "format=duration"
	FFprobeOutputFormat = "csv=p=0"
	ProgressPipeTarget  = "pipe:2"
	ProgressTimePrefix  = "out_time_us="

	// stderr lines kept for the error message
	stderrTailLines = 5

	// longest stderr line the progress scanner accepts
	maxStderrLine = 1 << 20
)

// Options configures the ffmpeg/ffprobe executables and the mp3 bitrate
type Options struct {
	FFmpegPath   string
	FFprobePath  string
	AudioBitrate string
}

// Service runs ffmpeg and ffprobe
type Service struct {
	opts Options
	log  *logrus.Entry
}

// NewService creates a transcoder. Empty options fall back to the binaries on PATH and DefaultBitrate.
func NewService(opts Options, log *logrus.Entry) *Service {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = FFmpegCommand
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = FFprobeCommand
	}
	if opts.AudioBitrate == "" {
		opts.AudioBitrate = DefaultBitrate
	}
	return &Service{opts: opts, log: log.WithField("component", "transcode")}
}

// Mux combines videoPath and audioPath into an mp4 next to videoPath.
// Every failure matches model.ErrMergeFailed.
func (s *Service) Mux(ctx context.Context, videoPath, audioPath string, onProgress ProgressFunc) (string, error) {
	for _, in := range []string{videoPath, audioPath} {
		if err := checkNonEmpty(in); err != nil {
			return "", fmt.Errorf("%w: input: %w", model.ErrMergeFailed, err)
		}
	}

	outputPath := generateOutputPath(videoPath, MergedSuffix, OutputExtensionMP4)
	args := BuildMuxArgs(videoPath, audioPath, outputPath)

	if err := s.run(ctx, args, audioPath, outputPath, onProgress); err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrMergeFailed, err)
	}
	return outputPath, nil
}

// ExtractAudio transcodes sourcePath to an mp3 at the configured bitrate.
// Every failure matches model.ErrConversionFailed.
func (s *Service) ExtractAudio(ctx context.Context, sourcePath string, onProgress ProgressFunc) (string, error) {
	if err := checkNonEmpty(sourcePath); err != nil {
		return "", fmt.Errorf("%w: input: %w", model.ErrConversionFailed, err)
	}

	if strings.EqualFold(filepath.Ext(sourcePath), OutputExtensionMP3) {
		s.log.WithField("path", sourcePath).Debug("already mp3, conversion skipped")
		return sourcePath, nil
	}

	outputPath := generateOutputPath(sourcePath, "", OutputExtensionMP3)
	args := BuildExtractAudioArgs(sourcePath, outputPath, s.opts.AudioBitrate)

	if err := s.run(ctx, args, sourcePath, outputPath, onProgress); err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrConversionFailed, err)
	}
	return outputPath, nil
}

// BuildMuxArgs builds the ffmpeg arguments for muxing
func BuildMuxArgs(videoPath, audioPath, outputPath string) []string {
	return []string{
		"-y",            // Overwrite output file
		"-i", videoPath, // Video input
		"-i", audioPath, // Audio input
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", VideoCodecCopy,
		"-c:a", MuxAudioCodec,
		"-movflags", FastStartFlag,
		"-progress", ProgressPipeTarget, // Progress to stderr
		"-nostats",
		outputPath,
	}
}

// BuildExtractAudioArgs builds the ffmpeg arguments for mp3 extraction
func BuildExtractAudioArgs(inputPath, outputPath, bitrate string) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-vn", // Drop video
		"-c:a", ExtractAudioCodec,
		"-b:a", bitrate,
		"-progress", ProgressPipeTarget,
		"-nostats",
		outputPath,
	}
}

// run executes ffmpeg with args, reports progress against the duration of
// durationSource and verifies outputPath afterwards. A failed run leaves no output behind.
func (s *Service) run(ctx context.Context, args []string, durationSource, outputPath string, onProgress ProgressFunc) error {
	log := s.log.WithField("path", outputPath)

	duration, err := s.getDuration(ctx, durationSource)
	if err != nil {
		log.WithError(err).Warn("duration probe failed, progress unavailable")
	}

	cmd := exec.CommandContext(ctx, s.opts.FFmpegPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	tail := monitorProgress(stderr, duration, onProgress)
	err = cmd.Wait()

	if err != nil {
		os.Remove(outputPath)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.Join(tail, " | "))
	}

	if err := checkNonEmpty(outputPath); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("output: %w", err)
	}

	log.Info("ffmpeg finished")
	return nil
}

// getDuration gets the duration of a media file in microseconds using ffprobe
func (s *Service) getDuration(ctx context.Context, filePath string) (int64, error) {
	cmd := exec.CommandContext(ctx, s.opts.FFprobePath, "-v", FFprobeLogLevel, "-show_entries", FFprobeShowEntries, "-of", FFprobeOutputFormat, filePath)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("failed to run ffprobe: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	seconds, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return int64(seconds * 1_000_000), nil
}

// monitorProgress reads ffmpeg progress output until EOF and returns the last
// non-progress lines for error reporting. The reader is always drained so
// ffmpeg never blocks on a full pipe.
func monitorProgress(stderr io.Reader, totalMicros int64, onProgress ProgressFunc) []string {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxStderrLine)
	var tail []string
	defer func() {
		_, _ = io.Copy(io.Discard, stderr)
	}()

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Parse progress line: out_time_us=123456
		if value, ok := strings.CutPrefix(line, ProgressTimePrefix); ok {
			micros, err := strconv.ParseInt(value, 10, 64)
			if err != nil || micros < 0 {
				continue
			}
			if totalMicros > 0 {
				micros = min(micros, totalMicros)
			}
			if onProgress != nil {
				onProgress(micros, totalMicros)
			}
			continue
		}

		if line == "" || strings.Contains(line, "=") {
			continue
		}
		tail = append(tail, line)
		if len(tail) > stderrTailLines {
			tail = tail[1:]
		}
	}

	return tail
}

func checkNonEmpty(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return errors.New(path + " is empty")
	}
	return nil
}

// generateOutputPath replaces the extension of inputPath, inserting suffix before it
func generateOutputPath(inputPath, suffix, ext string) string {
	baseName := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
	return baseName + suffix + ext
}
