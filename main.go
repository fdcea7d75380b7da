package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ytget/yt-telegram-bot/internal/app"
	"github.com/ytget/yt-telegram-bot/internal/config"
	"github.com/ytget/yt-telegram-bot/internal/logging"
	"github.com/ytget/yt-telegram-bot/internal/metrics"
	"github.com/ytget/yt-telegram-bot/internal/platform"
	"github.com/ytget/yt-telegram-bot/internal/telegram"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

const AppName = "yt-bot"

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile, logLevel string

	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Telegram bot that downloads YouTube videos and audio",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.New(configFile)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}

			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			log := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
			if err := run(cmd.Context(), cfg, log); err != nil {
				log.WithError(err).Error("bot stopped")
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (yaml, json, toml or env)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level, overrides LOG_LEVEL")
	return cmd
}

func run(parent context.Context, cfg *config.Config, logger *logrus.Logger) error {
	if err := cfg.RequireToken(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logrus.NewEntry(logger).WithField("version", version)
	log.Infof("%s v%s starting...", AppName, version)

	a, err := app.New(cfg, afero.NewOsFs(), log)
	if err != nil {
		return err
	}
	defer a.Close()

	janitor := a.NewJanitor()
	if err := janitor.Start(); err != nil {
		return fmt.Errorf("failed to start janitor: %w", err)
	}
	defer janitor.Stop()

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, &http.Client{Timeout: cfg.UploadTimeout})
	if err != nil {
		return fmt.Errorf("failed to connect to telegram: %w", err)
	}
	log.WithField("bot", api.Self.UserName).Info("authorized")

	bot := telegram.New(api, a.Pipeline, platform.NewPlaylistParserService(nil), a.Texts, telegram.Options{
		TransportLimit: cfg.TransportLimit,
		HardCeiling:    cfg.HardCeiling,
		EditInterval:   telegram.DefaultEditInterval,
	}, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Run(ctx)
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			log.WithField("addr", cfg.MetricsAddr).Info("metrics server listening")
			return metrics.NewServer(cfg.MetricsAddr).Start(ctx)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("shutting down")
	return err
}
