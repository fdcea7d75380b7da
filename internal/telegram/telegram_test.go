package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/yt-telegram-bot/internal/i18n"
	"github.com/ytget/yt-telegram-bot/internal/model"
	"github.com/ytget/yt-telegram-bot/internal/pipeline"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
	sendErr  error
	updates  chan tgbotapi.Update
	stopped  bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

const testSessionID = "session-0190b4c2-7d1e-7a3b-9c4d-5e6f7a8b9c0d"

func TestLadderKeyboard(t *testing.T) {
	texts := i18n.NewLocalization(i18n.LangEnglish)
	ladder := model.QualityLadder{"360p", "480p", "720p", model.AudioLabel}

	kb := LadderKeyboard(testSessionID, ladder, texts)
	require.Len(t, kb.InlineKeyboard, 3)

	assert.Len(t, kb.InlineKeyboard[0], 2)
	assert.Len(t, kb.InlineKeyboard[1], 1)
	assert.Equal(t, "📹 360p", kb.InlineKeyboard[0][0].Text)
	assert.Equal(t, "video_480p:0190b4c2-7d1e-7a3b-9c4d-5e6f7a8b9c0d", *kb.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, "video_720p:0190b4c2-7d1e-7a3b-9c4d-5e6f7a8b9c0d", *kb.InlineKeyboard[1][0].CallbackData)

	audio := kb.InlineKeyboard[2]
	require.Len(t, audio, 1)
	assert.Equal(t, "audio:0190b4c2-7d1e-7a3b-9c4d-5e6f7a8b9c0d", *audio[0].CallbackData)

	// Telegram rejects callback data above 64 bytes
	for _, row := range LadderKeyboard(testSessionID, model.QualityLadder{"2160p", model.AudioLabel}, texts).InlineKeyboard {
		for _, button := range row {
			assert.LessOrEqual(t, len(*button.CallbackData), 64)
		}
	}
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data      string
		label     string
		sessionID string
		ok        bool
	}{
		{"video_1080p:0190b4c2-7d1e-7a3b-9c4d-5e6f7a8b9c0d", "1080p", testSessionID, true},
		{"audio:0190b4c2-7d1e-7a3b-9c4d-5e6f7a8b9c0d", model.AudioLabel, testSessionID, true},
		{"video_1080p", "", "", false},
		{"audio", "", "", false},
		{"video_720p:", "", "", false},
		{"video_best:abc", "", "", false},
		{"delete:abc", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			label, sessionID, ok := ParseCallback(tt.data)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.label, label)
			assert.Equal(t, tt.sessionID, sessionID)
		})
	}
}

func TestIsYouTubeURL(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", true},
		{"youtube.com/embed/dQw4w9WgXcQ", true},
		{"https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ", true},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL123", true},
		{"https://www.youtube.com/playlist?list=PL123", false},
		{"https://vimeo.com/12345678901", false},
		{"hello", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsYouTubeURL(tt.input))
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"rate limited", &tgbotapi.Error{Code: 429, Message: "Too Many Requests"}, true},
		{"retry after", &tgbotapi.Error{Code: 400, ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 3}}, true},
		{"server error", &tgbotapi.Error{Code: 502, Message: "Bad Gateway"}, true},
		{"too large", &tgbotapi.Error{Code: 413, Message: "Request Entity Too Large"}, false},
		{"bad request", &tgbotapi.Error{Code: 400, Message: "chat not found"}, false},
		{"network timeout", fmt.Errorf("post: %w", timeoutErr{}), true},
		{"truncated", io.ErrUnexpectedEOF, true},
		{"other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, model.IsTransient(classify(tt.err)))
		})
	}
	assert.NoError(t, classify(nil))
}

func TestConversation_Status(t *testing.T) {
	api := &fakeAPI{}
	conv := NewConversation(api, 5, time.Hour, testLogger())
	ctx := context.Background()

	// without a status message an edit sends one
	require.NoError(t, conv.EditStatus(ctx, "first"))
	require.NoError(t, conv.SendStatus(ctx, "second"))
	require.NoError(t, conv.EditStatus(ctx, "allowed"))
	require.NoError(t, conv.EditStatus(ctx, "dropped"))

	assert.Equal(t, []string{"first", "second"}, api.texts())
	require.Len(t, api.requests, 1)
	edit, ok := api.requests[0].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, 2, edit.MessageID)
	assert.Equal(t, "allowed", edit.Text)
}

func TestConversation_SendFile(t *testing.T) {
	api := &fakeAPI{}
	conv := NewConversation(api, 5, time.Second, testLogger())
	ctx := context.Background()

	require.NoError(t, conv.SendFile(ctx, model.Upload{Path: "/w/a.mp4", Kind: model.FileVideo, Caption: "v"}))
	require.NoError(t, conv.SendFile(ctx, model.Upload{Path: "/w/a.mp3", Kind: model.FileAudio, Caption: "a", Title: "Clip"}))
	require.NoError(t, conv.SendFile(ctx, model.Upload{Path: "/w/a.mp4.part001", Kind: model.FileDocument, Caption: "d"}))

	require.Len(t, api.sent, 3)
	video, ok := api.sent[0].(tgbotapi.VideoConfig)
	require.True(t, ok)
	assert.Equal(t, "v", video.Caption)
	assert.True(t, video.SupportsStreaming)

	audio, ok := api.sent[1].(tgbotapi.AudioConfig)
	require.True(t, ok)
	assert.Equal(t, "Clip", audio.Title)

	doc, ok := api.sent[2].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	assert.Equal(t, "d", doc.Caption)

	api.sendErr = &tgbotapi.Error{Code: 429}
	err := conv.SendFile(ctx, model.Upload{Path: "/w/a.mp4", Kind: model.FileVideo})
	assert.True(t, model.IsTransient(err))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, conv.SendFile(canceled, model.Upload{Path: "/w/a.mp4"}), context.Canceled)
}

type fakePipeline struct {
	mu       sync.Mutex
	offer    pipeline.Offer
	openErr  error
	opened   []model.SourceReference
	selected []string
	sessions []string
}

func (f *fakePipeline) Open(_ context.Context, _ int64, ref model.SourceReference) (pipeline.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, ref)
	return f.offer, f.openErr
}

func (f *fakePipeline) Select(ctx context.Context, _ int64, sessionID, label string, conv pipeline.Conversation) error {
	f.mu.Lock()
	f.selected = append(f.selected, label)
	f.sessions = append(f.sessions, sessionID)
	f.mu.Unlock()
	return conv.SendStatus(ctx, "done "+label)
}

func (f *fakePipeline) ErrorText(err error) string {
	return "failed: " + err.Error()
}

type fakePlaylists struct {
	playlist *model.Playlist
	err      error
}

func (f *fakePlaylists) ParsePlaylist(context.Context, string) (*model.Playlist, error) {
	return f.playlist, f.err
}

func textMessage(chatID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text, From: &tgbotapi.User{FirstName: "Ann"}}
	if strings.HasPrefix(text, "/") {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return tgbotapi.Update{Message: msg}
}

func newTestBot(api *fakeAPI, p *fakePipeline, pl *fakePlaylists) *Bot {
	return New(api, p, pl, i18n.NewLocalization(i18n.LangEnglish), Options{
		TransportLimit: 50 << 20,
		HardCeiling:    2 << 30,
		EditInterval:   time.Millisecond,
	}, testLogger())
}

func TestBot_Commands(t *testing.T) {
	api := &fakeAPI{}
	b := newTestBot(api, &fakePipeline{}, &fakePlaylists{})
	ctx := context.Background()

	b.handle(ctx, textMessage(1, "/start"))
	b.handle(ctx, textMessage(1, "/help"))
	b.handle(ctx, textMessage(1, "not a link"))

	texts := api.texts()
	require.Len(t, texts, 3)
	assert.Contains(t, texts[0], "Ann")
	assert.Contains(t, texts[1], "50 MiB")
	assert.Contains(t, texts[1], "2.0 GiB")
	assert.Equal(t, b.texts.GetText(i18n.KeyInvalidURL), texts[2])
}

func TestBot_OpenSession(t *testing.T) {
	api := &fakeAPI{}
	p := &fakePipeline{offer: pipeline.Offer{
		SessionID: testSessionID,
		Title:     "Clip",
		Duration:  "03:32",
		Views:     1234567,
		Ladder:    model.QualityLadder{"720p", model.AudioLabel},
	}}
	b := newTestBot(api, p, &fakePlaylists{})

	b.handle(context.Background(), textMessage(1, "https://youtu.be/dQw4w9WgXcQ"))

	assert.Equal(t, []model.SourceReference{"https://youtu.be/dQw4w9WgXcQ"}, p.opened)
	assert.Equal(t, []string{b.texts.GetText(i18n.KeyFetchingInfo)}, api.texts())

	require.Len(t, api.requests, 1)
	edit, ok := api.requests[0].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Contains(t, edit.Text, "Clip")
	assert.Contains(t, edit.Text, "1,234,567")
	require.NotNil(t, edit.ReplyMarkup)
	require.Len(t, edit.ReplyMarkup.InlineKeyboard, 2)
	label, sessionID, ok := ParseCallback(*edit.ReplyMarkup.InlineKeyboard[0][0].CallbackData)
	require.True(t, ok)
	assert.Equal(t, "720p", label)
	assert.Equal(t, testSessionID, sessionID)
}

func TestBot_OpenSessionFailure(t *testing.T) {
	api := &fakeAPI{}
	p := &fakePipeline{openErr: model.ErrSessionBusy}
	b := newTestBot(api, p, &fakePlaylists{})

	b.handle(context.Background(), textMessage(1, "https://youtu.be/dQw4w9WgXcQ"))

	require.Len(t, api.requests, 1)
	edit, ok := api.requests[0].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, "failed: already in progress", edit.Text)
}

func TestBot_Playlist(t *testing.T) {
	playlist := model.NewPlaylist("https://www.youtube.com/playlist?list=PL1")
	playlist.Title = "Mix Playlist"
	for i := 1; i <= 12; i++ {
		playlist.AddVideo(&model.PlaylistVideo{ID: fmt.Sprint(i), Title: fmt.Sprintf("Song %d", i), URL: fmt.Sprintf("https://www.youtube.com/watch?v=%011d", i)})
	}

	api := &fakeAPI{}
	b := newTestBot(api, &fakePipeline{}, &fakePlaylists{playlist: playlist})
	b.handle(context.Background(), textMessage(1, "https://www.youtube.com/playlist?list=PL1"))

	texts := api.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Mix Playlist")
	assert.Contains(t, texts[0], "10. Song 10")
	assert.NotContains(t, texts[0], "Song 11")

	api = &fakeAPI{}
	b = newTestBot(api, &fakePipeline{}, &fakePlaylists{err: errors.New("nope")})
	b.handle(context.Background(), textMessage(1, "https://www.youtube.com/playlist?list=PL1"))
	assert.Equal(t, []string{b.texts.GetText(i18n.KeyPlaylistFailed)}, api.texts())
}

func TestBot_Callback(t *testing.T) {
	api := &fakeAPI{}
	p := &fakePipeline{}
	b := newTestBot(api, p, &fakePlaylists{})

	chat := &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 3}}
	b.handle(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID: "q1", Data: "video_720p:0190b4c2-7d1e-7a3b-9c4d-5e6f7a8b9c0d", Message: chat,
	}})
	b.handle(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID: "q2", Data: "video_720p", Message: chat,
	}})

	assert.Equal(t, []string{"720p"}, p.selected)
	assert.Equal(t, []string{testSessionID}, p.sessions)
	assert.Equal(t, []string{"done 720p", b.texts.GetText(i18n.KeySessionExpired)}, api.texts())

	// both callbacks are answered
	answered := 0
	for _, r := range api.requests {
		if _, ok := r.(tgbotapi.CallbackConfig); ok {
			answered++
		}
	}
	assert.Equal(t, 2, answered)
}

func TestBot_RunStopsOnCancel(t *testing.T) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update, 1)}
	p := &fakePipeline{}
	b := newTestBot(api, p, &fakePlaylists{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	api.updates <- textMessage(1, "/start")
	require.Eventually(t, func() bool { return len(api.texts()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.True(t, api.stopped)
}
