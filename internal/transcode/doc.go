package transcode

// Package transcode wraps ffmpeg and ffprobe: muxing a video-only and an
// audio-only stream into one mp4 (video copied, audio re-encoded to AAC) and
// extracting a fixed-bitrate mp3 from any input. Progress is read from
// ffmpeg's "-progress pipe:2" output and reported against the input duration
// probed with ffprobe.
