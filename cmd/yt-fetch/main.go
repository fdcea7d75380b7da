// Command yt-fetch runs the acquisition pipeline from a terminal and saves
// the delivered files to a local directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ytget/yt-telegram-bot/internal/app"
	"github.com/ytget/yt-telegram-bot/internal/config"
	"github.com/ytget/yt-telegram-bot/internal/logging"
	"github.com/ytget/yt-telegram-bot/internal/model"
	"github.com/ytget/yt-telegram-bot/internal/platform"
)

// localChat is the chat id used for terminal sessions
const localChat int64 = 1

var (
	configFile string
	quality    string
	outDir     string
)

func main() {
	root := &cobra.Command{
		Use:           "yt-fetch",
		Short:         "Inspect and download YouTube videos with the bot pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file")

	formats := &cobra.Command{
		Use:   "formats <url>",
		Short: "Print the quality ladder of a video",
		Args:  cobra.ExactArgs(1),
		RunE:  runFormats,
	}

	get := &cobra.Command{
		Use:   "get <url>",
		Short: "Download one quality of a video",
		Args:  cobra.ExactArgs(1),
		RunE:  runGet,
	}
	get.Flags().StringVarP(&quality, "quality", "q", "720p", "ladder label such as 720p, or audio")
	get.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")

	root.AddCommand(formats, get)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func setup() (*app.App, error) {
	v, err := config.New(configFile)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	log := logrus.NewEntry(logging.NewLogger(cfg.LogLevel, cfg.LogFormat))
	return app.New(cfg, afero.NewOsFs(), log)
}

func runFormats(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	offer, err := a.Pipeline.Open(cmd.Context(), localChat, model.SourceReference(args[0]))
	if err != nil {
		return errors.New(a.Pipeline.ErrorText(err))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n", offer.Title, offer.Duration)
	for _, label := range offer.Ladder {
		fmt.Fprintln(out, "  "+label)
	}
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	offer, err := a.Pipeline.Open(ctx, localChat, model.SourceReference(args[0]))
	if err != nil {
		return errors.New(a.Pipeline.ErrorText(err))
	}

	if err := platform.CreateDirectoryIfNotExists(a.Fs, outDir); err != nil {
		return err
	}
	conv := &terminal{fs: a.Fs, dir: outDir, out: cmd.OutOrStdout(), log: a.Log}
	return a.Pipeline.Select(ctx, localChat, offer.SessionID, strings.TrimSpace(quality), conv)
}

// terminal prints statuses and copies delivered files into dir
type terminal struct {
	fs  afero.Fs
	dir string
	out io.Writer
	log *logrus.Entry
}

func (t *terminal) SendStatus(_ context.Context, text string) error {
	fmt.Fprintln(t.out, text)
	return nil
}

func (t *terminal) EditStatus(_ context.Context, text string) error {
	fmt.Fprintln(t.out, text)
	return nil
}

func (t *terminal) SendFile(ctx context.Context, upload model.Upload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := filepath.Join(t.dir, filepath.Base(upload.Path))
	if err := copyFile(t.fs, upload.Path, dst); err != nil {
		return err
	}
	t.log.WithField("path", dst).Info("file saved")
	return nil
}

func copyFile(fs afero.Fs, src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fs.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
