package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ytget/yt-telegram-bot/internal/model"
)

// DefaultEditInterval is the minimum spacing of status edits in one chat
const DefaultEditInterval = 3 * time.Second

// notModified is returned when an edit carries the current text
const notModified = "message is not modified"

// Conversation implements pipeline.Conversation for one chat
type Conversation struct {
	api     API
	chatID  int64
	limiter *rate.Limiter
	log     *logrus.Entry

	mu       sync.Mutex
	statusID int
}

// NewConversation creates a conversation. Status edits closer than
// editInterval are dropped; sends are never dropped.
func NewConversation(api API, chatID int64, editInterval time.Duration, log *logrus.Entry) *Conversation {
	if editInterval <= 0 {
		editInterval = DefaultEditInterval
	}
	return &Conversation{
		api:     api,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Every(editInterval), 1),
		log:     log.WithField("chat_id", chatID),
	}
}

// SendStatus posts text as a new status message
func (c *Conversation) SendStatus(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := c.api.Send(tgbotapi.NewMessage(c.chatID, text))
	if err != nil {
		return classify(err)
	}

	c.mu.Lock()
	c.statusID = msg.MessageID
	c.mu.Unlock()
	return nil
}

// EditStatus replaces the text of the last status message. Without a status
// message it sends one.
func (c *Conversation) EditStatus(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	id := c.statusID
	c.mu.Unlock()
	if id == 0 {
		return c.SendStatus(ctx, text)
	}

	if !c.limiter.Allow() {
		return nil
	}

	_, err := c.api.Request(tgbotapi.NewEditMessageText(c.chatID, id, text))
	if err != nil && strings.Contains(err.Error(), notModified) {
		return nil
	}
	if err != nil {
		return classify(err)
	}
	return nil
}

// SendFile uploads one file as video, audio or document
func (c *Conversation) SendFile(ctx context.Context, upload model.Upload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file := tgbotapi.FilePath(upload.Path)
	var msg tgbotapi.Chattable

	switch upload.Kind {
	case model.FileVideo:
		video := tgbotapi.NewVideo(c.chatID, file)
		video.Caption = upload.Caption
		video.SupportsStreaming = true
		msg = video
	case model.FileAudio:
		audio := tgbotapi.NewAudio(c.chatID, file)
		audio.Caption = upload.Caption
		audio.Title = upload.Title
		msg = audio
	default:
		doc := tgbotapi.NewDocument(c.chatID, file)
		doc.Caption = upload.Caption
		msg = doc
	}

	start := time.Now()
	if _, err := c.api.Send(msg); err != nil {
		c.log.WithError(err).WithField("path", upload.Path).Warn("upload failed")
		return classify(err)
	}
	c.log.WithFields(logrus.Fields{"path": upload.Path, "kind": upload.Kind, "elapsed": time.Since(start)}).Info("file uploaded")
	return nil
}

// classify marks the Bot API failures that are worth retrying
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError || apiErr.RetryAfter > 0 {
			return model.MarkTransient(fmt.Errorf("telegram api %d: %w", apiErr.Code, err))
		}
		return fmt.Errorf("telegram api %d: %w", apiErr.Code, err)
	}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return model.MarkTransient(err)
	}
	return err
}

// EditStatusWithKeyboard replaces the last status message with text and an
// inline keyboard. It is never rate limited.
func (c *Conversation) EditStatusWithKeyboard(ctx context.Context, text string, markup tgbotapi.InlineKeyboardMarkup) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	id := c.statusID
	c.mu.Unlock()

	if id == 0 {
		msg := tgbotapi.NewMessage(c.chatID, text)
		msg.ReplyMarkup = markup
		_, err := c.api.Send(msg)
		return classify(err)
	}

	_, err := c.api.Request(tgbotapi.NewEditMessageTextAndMarkup(c.chatID, id, text, markup))
	return classify(err)
}
