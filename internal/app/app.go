// Package app wires the configured components into a pipeline.
package app

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/ytget/yt-telegram-bot/internal/catalog"
	"github.com/ytget/yt-telegram-bot/internal/config"
	"github.com/ytget/yt-telegram-bot/internal/delivery"
	"github.com/ytget/yt-telegram-bot/internal/download"
	"github.com/ytget/yt-telegram-bot/internal/download/dlp"
	"github.com/ytget/yt-telegram-bot/internal/download/native"
	"github.com/ytget/yt-telegram-bot/internal/i18n"
	"github.com/ytget/yt-telegram-bot/internal/pipeline"
	"github.com/ytget/yt-telegram-bot/internal/platform"
	"github.com/ytget/yt-telegram-bot/internal/transcode"
)

// App holds the wired components shared by the entry points
type App struct {
	Config   *config.Config
	Fs       afero.Fs
	Texts    *i18n.Localization
	Cleaner  *platform.Cleaner
	Pipeline *pipeline.Service
	Log      *logrus.Entry
}

// NewBackend returns the extraction back end named by name
func NewBackend(name string, fs afero.Fs, log *logrus.Entry) (download.Backend, error) {
	switch name {
	case config.BackendYTDLP:
		return dlp.New(fs, log), nil
	case config.BackendYouTube:
		return native.New(fs, log), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

// New prepares the download directory and builds the pipeline over fs
func New(cfg *config.Config, fs afero.Fs, log *logrus.Entry) (*App, error) {
	if err := platform.CreateDirectoryIfNotExists(fs, cfg.DownloadDir); err != nil {
		return nil, fmt.Errorf("failed to ensure download dir: %w", err)
	}

	backend, err := NewBackend(cfg.Backend, fs, log)
	if err != nil {
		return nil, err
	}

	splitter, err := delivery.NewSplitter(fs, cfg.TransportLimit, cfg.PartSize, cfg.HardCeiling)
	if err != nil {
		return nil, err
	}

	texts := i18n.NewLocalization(cfg.Language)
	cleaner := platform.NewCleaner(fs, log)

	svc := pipeline.NewService(pipeline.Options{
		WorkDir:           cfg.DownloadDir,
		LadderMaxLevels:   cfg.LadderMaxLevels,
		ProgressInterval:  cfg.ProgressInterval,
		ProgressThreshold: cfg.ProgressThreshold,
		RetryAttempts:     cfg.RetryAttempts,
		RetryDelay:        cfg.RetryDelay,
		SessionTTL:        cfg.SessionTTL,
		Workers:           cfg.MaxWorkers,
	}, pipeline.Components{
		Builder:  catalog.NewBuilder(backend, log),
		Executor: download.NewExecutor(backend, fs, cfg.HardCeiling, log),
		Tool: transcode.NewService(transcode.Options{
			FFmpegPath:   cfg.FFmpegPath,
			FFprobePath:  cfg.FFprobePath,
			AudioBitrate: cfg.AudioBitrate,
		}, log),
		Splitter: splitter,
		Cleaner:  cleaner,
		Texts:    texts,
	}, log)

	log.WithFields(logrus.Fields{
		"backend":      backend.Name(),
		"download_dir": cfg.DownloadDir,
		"workers":      cfg.MaxWorkers,
	}).Info("pipeline ready")

	return &App{
		Config:   cfg,
		Fs:       fs,
		Texts:    texts,
		Cleaner:  cleaner,
		Pipeline: svc,
		Log:      log,
	}, nil
}

// NewJanitor returns a janitor sweeping the download directory of a
func (a *App) NewJanitor() *platform.Janitor {
	return platform.NewJanitor(a.Fs, a.Config.DownloadDir, a.Config.JanitorSchedule,
		a.Config.JanitorMaxAge, a.Cleaner, a.Pipeline.InUse, a.Log)
}

// Close waits for running pipeline work
func (a *App) Close() {
	a.Pipeline.Close()
}
