package telegram

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/ytget/yt-telegram-bot/internal/i18n"
	"github.com/ytget/yt-telegram-bot/internal/model"
	"github.com/ytget/yt-telegram-bot/internal/pipeline"
	"github.com/ytget/yt-telegram-bot/internal/platform"
)

// Commands
const (
	CommandStart = "start"
	CommandHelp  = "help"
)

// Polling and listing settings
const (
	PollTimeout       = 60
	MaxPlaylistVideos = 10
)

var youtubeURL = regexp.MustCompile(
	`^(https?://)?(www\.|m\.)?(youtube|youtu|youtube-nocookie)\.(com|be)/` +
		`(watch\?v=|embed/|v/|shorts/|.+\?v=)?([^&=%\?]{11})`,
)

// IsYouTubeURL reports whether text is a single-video YouTube link
func IsYouTubeURL(text string) bool {
	return youtubeURL.MatchString(strings.TrimSpace(text))
}

// Pipeline is the acquisition side the bot drives
type Pipeline interface {
	Open(ctx context.Context, chatID int64, ref model.SourceReference) (pipeline.Offer, error)
	Select(ctx context.Context, chatID int64, sessionID, label string, conv pipeline.Conversation) error
	ErrorText(err error) string
}

// PlaylistParser expands playlist links
type PlaylistParser interface {
	ParsePlaylist(ctx context.Context, url string) (*model.Playlist, error)
}

// Options configures the bot
type Options struct {
	TransportLimit int64
	HardCeiling    int64
	EditInterval   time.Duration
}

// Bot dispatches Telegram updates
type Bot struct {
	api       API
	pipeline  Pipeline
	playlists PlaylistParser
	texts     *i18n.Localization
	opts      Options
	log       *logrus.Entry

	wg sync.WaitGroup
}

// New creates a bot
func New(api API, p Pipeline, playlists PlaylistParser, texts *i18n.Localization, opts Options, log *logrus.Entry) *Bot {
	return &Bot{
		api:       api,
		pipeline:  p,
		playlists: playlists,
		texts:     texts,
		opts:      opts,
		log:       log.WithField("component", "bot"),
	}
}

// Run polls for updates until ctx is done, then waits for running handlers
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = PollTimeout
	updates := b.api.GetUpdatesChan(u)

	b.log.Info("polling for updates")
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.log.Info("polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return errors.New("updates channel closed")
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handle(ctx, update)
			}()
		}
	}
}

func (b *Bot) handle(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithField("panic", r).Error("update handler panicked")
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) conversation(chatID int64) *Conversation {
	return NewConversation(b.api, chatID, b.opts.EditInterval, b.log)
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.WithError(err).WithField("chat_id", chatID).Warn("reply failed")
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case CommandStart:
			name := ""
			if msg.From != nil {
				name = msg.From.FirstName
			}
			b.reply(chatID, b.texts.Sprintf(i18n.KeyStart, name))
		case CommandHelp:
			b.reply(chatID, b.texts.Sprintf(i18n.KeyHelp,
				humanize.IBytes(uint64(b.opts.TransportLimit)),
				humanize.IBytes(uint64(b.opts.HardCeiling))))
		}
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case IsYouTubeURL(text):
		b.openSession(ctx, chatID, model.SourceReference(text))
	case platform.IsPlaylistURL(text):
		b.listPlaylist(ctx, chatID, text)
	default:
		b.reply(chatID, b.texts.GetText(i18n.KeyInvalidURL))
	}
}

func (b *Bot) openSession(ctx context.Context, chatID int64, ref model.SourceReference) {
	conv := b.conversation(chatID)
	if err := conv.SendStatus(ctx, b.texts.GetText(i18n.KeyFetchingInfo)); err != nil {
		b.log.WithError(err).Warn("status message failed")
	}

	offer, err := b.pipeline.Open(ctx, chatID, ref)
	if err != nil {
		if err := conv.EditStatus(ctx, b.pipeline.ErrorText(err)); err != nil {
			b.log.WithError(err).Warn("error message failed")
		}
		return
	}

	text := b.texts.Sprintf(i18n.KeyChooseFormat, offer.Title, offer.Duration, humanize.Comma(offer.Views))
	if err := conv.EditStatusWithKeyboard(ctx, text, LadderKeyboard(offer.SessionID, offer.Ladder, b.texts)); err != nil {
		b.log.WithError(err).Warn("offer message failed")
	}
}

func (b *Bot) listPlaylist(ctx context.Context, chatID int64, url string) {
	playlist, err := b.playlists.ParsePlaylist(ctx, url)
	if err != nil || playlist.TotalVideos() == 0 {
		b.log.WithError(err).WithField("url", url).Warn("playlist expansion failed")
		b.reply(chatID, b.texts.GetText(i18n.KeyPlaylistFailed))
		return
	}

	var list strings.Builder
	for i, v := range playlist.Head(MaxPlaylistVideos) {
		fmt.Fprintf(&list, "%d. %s\n%s\n", i+1, v.Title, v.URL)
	}
	b.reply(chatID, b.texts.Sprintf(i18n.KeyPlaylist, playlist.Title, playlist.TotalVideos(), list.String()))
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.log.WithError(err).Debug("callback answer failed")
	}
	if query.Message == nil {
		return
	}

	chatID := query.Message.Chat.ID
	label, sessionID, ok := ParseCallback(query.Data)
	if !ok {
		b.log.WithField("data", query.Data).Warn("unknown callback")
		b.reply(chatID, b.texts.GetText(i18n.KeySessionExpired))
		return
	}

	if err := b.pipeline.Select(ctx, chatID, sessionID, label, b.conversation(chatID)); err != nil {
		b.log.WithError(err).WithFields(logrus.Fields{"chat_id": chatID, "label": label}).Info("selection ended with error")
	}
}
