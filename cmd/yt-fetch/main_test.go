package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/yt-telegram-bot/internal/model"
)

func TestTerminal(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/s1/Clip.mp4.part001", []byte("payload"), 0o644))
	require.NoError(t, fs.MkdirAll("/out", 0o755))

	l := logrus.New()
	l.SetOutput(io.Discard)
	var out bytes.Buffer
	conv := &terminal{fs: fs, dir: "/out", out: &out, log: logrus.NewEntry(l)}

	ctx := context.Background()
	require.NoError(t, conv.SendStatus(ctx, "starting"))
	require.NoError(t, conv.EditStatus(ctx, "50%"))
	require.NoError(t, conv.SendFile(ctx, model.Upload{Path: "/work/s1/Clip.mp4.part001", Kind: model.FileDocument}))

	data, err := afero.ReadFile(fs, "/out/Clip.mp4.part001")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, "starting\n50%\n", out.String())

	err = conv.SendFile(ctx, model.Upload{Path: "/work/s1/missing.mp4"})
	assert.Error(t, err)
}
