package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/ishbor-bot/internal/storage"
	"github.com/xaenox/ishbor-bot/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func dryConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Telegram.DryRun = true
	cfg.Telegram.PremiumEmojiMode = config.EmojiModeAuto
	cfg.Auth.MaxLoginAttempts = 5
	cfg.Auth.LockoutMinutes = 15
	cfg.Channels.Targets = map[string]string{"toshkent-shahri": "@ishbor_toshkent"}
	cfg.Channels.SyncTimeout = time.Second
	return cfg
}

func TestNewRanker_WithoutKeyIsDisabled(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	cfg := dryConfig()
	cfg.Ranker.Provider = "openai"

	r := newRanker(context.Background(), cfg, zap.New(core))
	assert.False(t, r.Enabled())
	require.Equal(t, 1, logs.FilterMessage("ai rerank disabled").Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)

	cfg.Ranker.Provider = "none"
	assert.False(t, newRanker(context.Background(), cfg, zap.NewNop()).Enabled())
}

func TestNewRanker_OpenAI(t *testing.T) {
	cfg := dryConfig()
	cfg.Ranker.Provider = "openai"
	cfg.OpenAI.APIKey = "sk-test"
	cfg.OpenAI.Model = "gpt-4o-mini"

	assert.True(t, newRanker(context.Background(), cfg, zap.NewNop()).Enabled())
}

func TestNewComponents_DryRun(t *testing.T) {
	ctx := context.Background()
	c, err := newComponents(ctx, dryConfig(), zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.store.(*storage.MemoryStorage)
	assert.True(t, ok, "dry run keeps data in memory")
	_, ok = c.locker.(*storage.MutexLocker)
	assert.True(t, ok)
	_, ok = c.lockouts.(*storage.MemoryLockoutStore)
	assert.True(t, ok)
	assert.Nil(t, c.redis)
	assert.Equal(t, map[string]string{"toshkent-shahri": "@ishbor_toshkent"}, c.syncer.Targets())

	me, err := c.tg.GetMe(ctx)
	require.NoError(t, err)
	assert.NotZero(t, me.ID)
	assert.NotNil(t, c.newEngine(ctx))
}
