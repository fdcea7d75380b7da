package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ytget/yt-telegram-bot/internal/i18n"
	"github.com/ytget/yt-telegram-bot/internal/model"
	"github.com/ytget/yt-telegram-bot/internal/pipeline"
)

// Callback data is "<choice>:<session token>", e.g. "video_720p:0190...".
const (
	CallbackVideoPrefix = "video_"
	CallbackAudio       = "audio"
	CallbackSeparator   = ":"
)

// ButtonsPerRow is the number of video buttons in one keyboard row
const ButtonsPerRow = 2

// sessionToken shortens a session id to fit the 64 byte callback data limit
func sessionToken(sessionID string) string {
	return strings.TrimPrefix(sessionID, pipeline.SessionIDPrefix)
}

// LadderKeyboard lays out the video labels two per row with the audio button
// last. Every button carries the session it was offered for.
func LadderKeyboard(sessionID string, ladder model.QualityLadder, texts *i18n.Localization) tgbotapi.InlineKeyboardMarkup {
	suffix := CallbackSeparator + sessionToken(sessionID)

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton

	for _, label := range ladder.VideoLabels() {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			texts.Sprintf(i18n.KeyButtonVideo, label),
			CallbackVideoPrefix+label+suffix,
		))
		if len(row) == ButtonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	if ladder.Contains(model.AudioLabel) {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(texts.GetText(i18n.KeyButtonAudio), CallbackAudio+suffix),
		))
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// ParseCallback returns the ladder label and session id carried by callback data
func ParseCallback(data string) (label, sessionID string, ok bool) {
	choice, token, found := strings.Cut(data, CallbackSeparator)
	if !found || token == "" {
		return "", "", false
	}
	sessionID = pipeline.SessionIDPrefix + token

	if choice == CallbackAudio {
		return model.AudioLabel, sessionID, true
	}
	label, ok = strings.CutPrefix(choice, CallbackVideoPrefix)
	if !ok {
		return "", "", false
	}
	if _, valid := model.ParseLabel(label); !valid {
		return "", "", false
	}
	return label, sessionID, true
}
