package transcode

import "context"

// ProgressFunc receives processed and total media time in microseconds.
// total is zero when the input duration could not be probed.
type ProgressFunc func(done, total int64)

// Tool is the transcoding collaborator of the pipeline
type Tool interface {
	// Mux combines a video-only and an audio-only file into one container
	Mux(ctx context.Context, videoPath, audioPath string, onProgress ProgressFunc) (string, error)

	// ExtractAudio produces an mp3 from sourcePath, or returns sourcePath unchanged if it already is one
	ExtractAudio(ctx context.Context, sourcePath string, onProgress ProgressFunc) (string, error)
}
