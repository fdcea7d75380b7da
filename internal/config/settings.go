// Package config loads the process configuration from the environment, an
// optional .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Extraction back ends
const (
	BackendYTDLP   = "ytdlp"
	BackendYouTube = "youtube"
)

// Settings keys
const (
	KeyToken             = "TELEGRAM_BOT_TOKEN"
	KeyDownloadDir       = "DOWNLOAD_DIR"
	KeyBackend           = "BACKEND"
	KeyTransportLimit    = "TRANSPORT_LIMIT"
	KeyHardCeiling       = "HARD_CEILING"
	KeyPartSize          = "PART_SIZE"
	KeyRetryAttempts     = "RETRY_ATTEMPTS"
	KeyRetryDelay        = "RETRY_DELAY"
	KeyProgressThreshold = "PROGRESS_THRESHOLD"
	KeyProgressInterval  = "PROGRESS_INTERVAL"
	KeyAudioBitrate      = "AUDIO_BITRATE"
	KeyMaxWorkers        = "MAX_WORKERS"
	KeySessionTTL        = "SESSION_TTL"
	KeyJanitorSchedule   = "JANITOR_SCHEDULE"
	KeyJanitorMaxAge     = "JANITOR_MAX_AGE"
	KeyUploadTimeout     = "UPLOAD_TIMEOUT"
	KeyLanguage          = "LANGUAGE"
	KeyMetricsAddr       = "METRICS_ADDR"
	KeyLogLevel          = "LOG_LEVEL"
	KeyLogFormat         = "LOG_FORMAT"
	KeyFFmpegPath        = "FFMPEG_PATH"
	KeyFFprobePath       = "FFPROBE_PATH"
	KeyLadderMaxLevels   = "LADDER_MAX_LEVELS"
)

// Default values
const (
	DefaultDownloadDir       = "./downloads"
	DefaultBackend           = BackendYTDLP
	DefaultTransportLimit    = "50MiB"
	DefaultHardCeiling       = "1.9GiB"
	DefaultPartSize          = "45MiB"
	DefaultRetryAttempts     = 3
	DefaultRetryDelay        = 5 * time.Second
	DefaultProgressThreshold = 5
	DefaultProgressInterval  = time.Second
	DefaultAudioBitrate      = "192k"
	DefaultMaxWorkers        = 4
	DefaultSessionTTL        = 30 * time.Minute
	DefaultJanitorSchedule   = "@every 1h"
	DefaultJanitorMaxAge     = 6 * time.Hour
	DefaultUploadTimeout     = 10 * time.Minute
	DefaultLanguage          = "en"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultFFmpegPath        = "ffmpeg"
	DefaultFFprobePath       = "ffprobe"

	MinWorkers = 1
	MaxWorkers = 10
)

// Config holds all application configuration
type Config struct {
	// Telegram
	Token         string
	UploadTimeout time.Duration
	Language      string

	// Acquisition
	DownloadDir     string
	Backend         string
	MaxWorkers      int
	LadderMaxLevels int
	SessionTTL      time.Duration

	// Delivery
	TransportLimit int64
	HardCeiling    int64
	PartSize       int64
	RetryAttempts  int
	RetryDelay     time.Duration

	// Progress
	ProgressThreshold int
	ProgressInterval  time.Duration

	// Transcoding
	AudioBitrate string
	FFmpegPath   string
	FFprobePath  string

	// Janitor
	JanitorSchedule string
	JanitorMaxAge   time.Duration

	// Ops
	MetricsAddr string
	LogLevel    string
	LogFormat   string
}

// New returns a viper instance reading .env from the working directory, the
// environment and, when configFile is set, that file.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
		return v, nil
	}

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	// Load .env file if it exists (ignore if not found)
	_ = v.ReadInConfig()

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyDownloadDir, DefaultDownloadDir)
	v.SetDefault(KeyBackend, DefaultBackend)
	v.SetDefault(KeyTransportLimit, DefaultTransportLimit)
	v.SetDefault(KeyHardCeiling, DefaultHardCeiling)
	v.SetDefault(KeyPartSize, DefaultPartSize)
	v.SetDefault(KeyRetryAttempts, DefaultRetryAttempts)
	v.SetDefault(KeyRetryDelay, DefaultRetryDelay)
	v.SetDefault(KeyProgressThreshold, DefaultProgressThreshold)
	v.SetDefault(KeyProgressInterval, DefaultProgressInterval)
	v.SetDefault(KeyAudioBitrate, DefaultAudioBitrate)
	v.SetDefault(KeyMaxWorkers, DefaultMaxWorkers)
	v.SetDefault(KeySessionTTL, DefaultSessionTTL)
	v.SetDefault(KeyJanitorSchedule, DefaultJanitorSchedule)
	v.SetDefault(KeyJanitorMaxAge, DefaultJanitorMaxAge)
	v.SetDefault(KeyUploadTimeout, DefaultUploadTimeout)
	v.SetDefault(KeyLanguage, DefaultLanguage)
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
	v.SetDefault(KeyFFmpegPath, DefaultFFmpegPath)
	v.SetDefault(KeyFFprobePath, DefaultFFprobePath)
	v.SetDefault(KeyLadderMaxLevels, 0)
}

// Load builds and validates a Config from v
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	cfg := &Config{
		Token:             strings.TrimSpace(v.GetString(KeyToken)),
		UploadTimeout:     v.GetDuration(KeyUploadTimeout),
		Language:          strings.ToLower(v.GetString(KeyLanguage)),
		Backend:           strings.ToLower(v.GetString(KeyBackend)),
		MaxWorkers:        clampWorkers(v.GetInt(KeyMaxWorkers)),
		LadderMaxLevels:   v.GetInt(KeyLadderMaxLevels),
		SessionTTL:        v.GetDuration(KeySessionTTL),
		RetryAttempts:     v.GetInt(KeyRetryAttempts),
		RetryDelay:        v.GetDuration(KeyRetryDelay),
		ProgressThreshold: v.GetInt(KeyProgressThreshold),
		ProgressInterval:  v.GetDuration(KeyProgressInterval),
		AudioBitrate:      v.GetString(KeyAudioBitrate),
		FFmpegPath:        v.GetString(KeyFFmpegPath),
		FFprobePath:       v.GetString(KeyFFprobePath),
		JanitorSchedule:   v.GetString(KeyJanitorSchedule),
		JanitorMaxAge:     v.GetDuration(KeyJanitorMaxAge),
		MetricsAddr:       v.GetString(KeyMetricsAddr),
		LogLevel:          v.GetString(KeyLogLevel),
		LogFormat:         v.GetString(KeyLogFormat),
	}

	dir, err := filepath.Abs(v.GetString(KeyDownloadDir))
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for %s: %w", KeyDownloadDir, err)
	}
	cfg.DownloadDir = dir

	sizes := []struct {
		key string
		dst *int64
	}{
		{KeyTransportLimit, &cfg.TransportLimit},
		{KeyHardCeiling, &cfg.HardCeiling},
		{KeyPartSize, &cfg.PartSize},
	}
	for _, s := range sizes {
		n, err := parseSize(v.GetString(s.key))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.key, err)
		}
		*s.dst = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the relations between values
func (c *Config) Validate() error {
	var errs []error

	if c.Backend != BackendYTDLP && c.Backend != BackendYouTube {
		errs = append(errs, fmt.Errorf("%s: unknown backend %q", KeyBackend, c.Backend))
	}
	if c.PartSize <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyPartSize))
	}
	if c.PartSize > c.TransportLimit {
		errs = append(errs, fmt.Errorf("%s must not exceed %s", KeyPartSize, KeyTransportLimit))
	}
	if c.TransportLimit > c.HardCeiling {
		errs = append(errs, fmt.Errorf("%s must not exceed %s", KeyTransportLimit, KeyHardCeiling))
	}
	if c.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", KeyRetryAttempts))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyRetryDelay))
	}
	if c.ProgressThreshold < 1 || c.ProgressThreshold > 100 {
		errs = append(errs, fmt.Errorf("%s must be within 1..100", KeyProgressThreshold))
	}
	if c.ProgressInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyProgressInterval))
	}
	if c.LadderMaxLevels < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyLadderMaxLevels))
	}

	return errors.Join(errs...)
}

// RequireToken fails when the bot token is missing
func (c *Config) RequireToken() error {
	if c.Token == "" {
		return fmt.Errorf("%s is required", KeyToken)
	}
	return nil
}

// parseSize accepts human sizes such as "50MiB" or "1.9GiB" and plain byte counts
func parseSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

func clampWorkers(n int) int {
	if n < MinWorkers {
		return MinWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}
