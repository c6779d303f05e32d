package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/hesabgar/hesabgar-bot/pkg/config"
)

func TestBuildSettingsPolling(t *testing.T) {
	cfg := &config.Config{}
	cfg.Bot.Token = "token"
	cfg.Bot.Mode = "polling"
	cfg.Bot.Timeout = 10 * time.Second

	settings := buildSettings(cfg)

	assert.Equal(t, "token", settings.Token)
	poller, ok := settings.Poller.(*telebot.LongPoller)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, poller.Timeout)
}

func TestBuildSettingsWebhook(t *testing.T) {
	cfg := &config.Config{}
	cfg.Bot.Token = "token"
	cfg.Bot.Mode = "webhook"
	cfg.Server.Port = ":8443"

	settings := buildSettings(cfg)

	poller, ok := settings.Poller.(*telebot.Webhook)
	require.True(t, ok)
	assert.Equal(t, ":8443", poller.Listen)
}

func TestBuildSettingsDefaultsToPolling(t *testing.T) {
	cfg := &config.Config{}

	_, ok := buildSettings(cfg).Poller.(*telebot.LongPoller)
	assert.True(t, ok)
}
