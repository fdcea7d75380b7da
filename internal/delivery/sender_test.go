package delivery

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/yt-telegram-bot/internal/model"
	"github.com/ytget/yt-telegram-bot/internal/platform"
)

type scriptedTransport struct {
	mu      sync.Mutex
	results []error // consumed per call, nil after exhaustion
	calls   []string
}

func (s *scriptedTransport) SendFile(_ context.Context, upload model.Upload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, upload.Path)
	if len(s.results) == 0 {
		return nil
	}
	err := s.results[0]
	s.results = s.results[1:]
	return err
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newSender(tr Transport, attempts int, fs afero.Fs) *Sender {
	return NewSender(tr, attempts, time.Millisecond, platform.NewCleaner(fs, testLogger()), testLogger())
}

func transient(msg string) error {
	return model.MarkTransient(errors.New(msg))
}

func TestSender_Send(t *testing.T) {
	tests := []struct {
		name      string
		attempts  int
		results   []error
		wantCalls int
		wantErr   bool
	}{
		{
			name:      "succeeds first time",
			attempts:  3,
			wantCalls: 1,
		},
		{
			name:      "two transient failures then success",
			attempts:  3,
			results:   []error{transient("timeout"), transient("timeout")},
			wantCalls: 3,
		},
		{
			name:      "transient failures exhaust attempts",
			attempts:  3,
			results:   []error{transient("a"), transient("b"), transient("c"), nil},
			wantCalls: 3,
			wantErr:   true,
		},
		{
			name:      "permanent failure is not retried",
			attempts:  3,
			results:   []error{errors.New("Bad Request: file is too big")},
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:      "single attempt policy",
			attempts:  1,
			results:   []error{transient("a")},
			wantCalls: 1,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &scriptedTransport{results: tt.results}
			s := newSender(tr, tt.attempts, afero.NewMemMapFs())

			err := s.Send(context.Background(), model.Upload{Path: "/work/clip.mp4"})

			assert.Len(t, tr.calls, tt.wantCalls)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, model.ErrDeliveryFailed)
		})
	}
}

func TestSender_Send_LastErrorSurfaced(t *testing.T) {
	tr := &scriptedTransport{results: []error{transient("first"), transient("second"), transient("third")}}
	s := newSender(tr, 3, afero.NewMemMapFs())

	err := s.Send(context.Background(), model.Upload{Path: "/x"})
	require.ErrorIs(t, err, model.ErrDeliveryFailed)
	assert.Contains(t, err.Error(), "third")
	assert.Contains(t, err.Error(), "3 attempt(s)")
	assert.True(t, model.IsTransient(err))
}

func TestSender_Send_Canceled(t *testing.T) {
	tr := &scriptedTransport{results: []error{transient("a"), transient("b"), transient("c")}}
	s := NewSender(tr, 3, time.Hour, platform.NewCleaner(afero.NewMemMapFs(), testLogger()), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := s.Send(ctx, model.Upload{Path: "/x"})
	require.ErrorIs(t, err, model.ErrDeliveryFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, tr.calls, 1)
}

func TestSender_SendAll(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeArtifact(t, fs, "/work/clip.mp4", 120)
	splitter, err := NewSplitter(fs, 50, 50, 0)
	require.NoError(t, err)
	units, err := splitter.Plan(model.Artifact{Path: "/work/clip.mp4"})
	require.NoError(t, err)

	tr := &scriptedTransport{}
	s := newSender(tr, 3, fs)

	err = s.SendAll(context.Background(), units, func(u model.DeliveryUnit) model.Upload {
		return model.Upload{Path: u.Path, Kind: model.FileDocument}
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"/work/clip.mp4.part001", "/work/clip.mp4.part002", "/work/clip.mp4.part003"}, tr.calls)
	for _, u := range units {
		exists, _ := afero.Exists(fs, u.Path)
		assert.False(t, exists, "sent part %s must be deleted", u.Path)
	}
	exists, _ := afero.Exists(fs, "/work/clip.mp4")
	assert.True(t, exists, "artifact is left for the cleanup manager")
}

func TestSender_SendAll_AbortsOnFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeArtifact(t, fs, "/work/clip.mp4", 120)
	splitter, err := NewSplitter(fs, 50, 50, 0)
	require.NoError(t, err)
	units, err := splitter.Plan(model.Artifact{Path: "/work/clip.mp4"})
	require.NoError(t, err)

	// part 1 ok, part 2 fails on every attempt
	tr := &scriptedTransport{results: []error{nil, transient("x"), transient("y")}}
	s := newSender(tr, 2, fs)

	err = s.SendAll(context.Background(), units, func(u model.DeliveryUnit) model.Upload {
		return model.Upload{Path: u.Path}
	})
	require.ErrorIs(t, err, model.ErrDeliveryFailed)
	assert.Contains(t, err.Error(), "unit 2/3")

	assert.Equal(t, []string{"/work/clip.mp4.part001", "/work/clip.mp4.part002", "/work/clip.mp4.part002"}, tr.calls)
	for _, u := range units {
		exists, _ := afero.Exists(fs, u.Path)
		assert.False(t, exists, "part %s must be removed", u.Path)
	}
}

func TestSender_SendAll_WholeUnitKept(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeArtifact(t, fs, "/work/clip.mp4", 10)
	tr := &scriptedTransport{results: []error{errors.New("forbidden")}}
	s := newSender(tr, 3, fs)

	units := []model.DeliveryUnit{{Path: "/work/clip.mp4", Index: 1, Total: 1, Length: 10, Whole: true}}
	err := s.SendAll(context.Background(), units, func(u model.DeliveryUnit) model.Upload {
		return model.Upload{Path: u.Path}
	})
	require.ErrorIs(t, err, model.ErrDeliveryFailed)

	exists, _ := afero.Exists(fs, "/work/clip.mp4")
	assert.True(t, exists)
}
