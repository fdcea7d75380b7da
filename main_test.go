package main

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/yt-telegram-bot/internal/config"
)

func TestRootCommandFlags(t *testing.T) {
	cmd := newRootCommand()
	assert.Equal(t, AppName, cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("config"))
	assert.NotNil(t, cmd.Flags().Lookup("log-level"))
}

func TestRunRequiresToken(t *testing.T) {
	cfg, err := config.Load(viper.New())
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	err = run(context.Background(), cfg, logger)
	assert.ErrorContains(t, err, config.KeyToken)
}
