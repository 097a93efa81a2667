package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xaenox/ishbor-bot/internal/bot"
	"github.com/xaenox/ishbor-bot/internal/channel"
	"github.com/xaenox/ishbor-bot/internal/logger"
	"github.com/xaenox/ishbor-bot/internal/otp"
	"github.com/xaenox/ishbor-bot/internal/ranker"
	"github.com/xaenox/ishbor-bot/internal/storage"
	"github.com/xaenox/ishbor-bot/internal/telegram"
	"github.com/xaenox/ishbor-bot/pkg/config"
	"go.uber.org/zap"
)

// components are the long lived parts of a running bot.
type components struct {
	cfg    *config.Config
	logger *zap.Logger

	tg       *telegram.Client
	store    storage.Storage
	locker   storage.Locker
	lockouts storage.LockoutStore
	redis    *redis.Client
	syncer   *channel.Syncer
}

func newComponents(ctx context.Context, cfg *config.Config, log *zap.Logger) (*components, error) {
	c := &components{cfg: cfg, logger: log}
	c.tg = newTelegram(cfg, log)

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	c.store = store

	if cfg.Redis.URL != "" {
		client, err := storage.ConnectRedis(cfg.Redis.URL)
		if err != nil {
			c.Close()
			return nil, err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			c.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		c.redis = client
		c.locker = storage.NewRedisLocker(client, log)
		c.lockouts = storage.NewRedisLockoutStore(client)
		log.Info("using redis locks")
	} else {
		c.locker = storage.NewMutexLocker()
		c.lockouts = storage.NewMemoryLockoutStore()
		log.Info("using in-process locks")
	}

	c.syncer = channel.NewSyncer(channel.Config{
		Targets:     cfg.Channels.Targets,
		PromoText:   cfg.Channels.PromoText,
		SiteURL:     cfg.Channels.SiteURL,
		PostsPerMin: cfg.Channels.PostsPerMin,
		Timeout:     cfg.Channels.SyncTimeout,
		LockTTL:     cfg.Redis.LockTTL,
	}, c.tg, c.store, c.store, c.locker, log.Named("channel"))
	return c, nil
}

func newTelegram(cfg *config.Config, log *zap.Logger) *telegram.Client {
	tc := telegram.Config{
		Token:       cfg.Telegram.Token,
		APIEndpoint: cfg.Telegram.APIEndpoint,
		Timeout:     cfg.Telegram.Timeout,
		MaxRetries:  cfg.Telegram.MaxRetries,
		EmojiMode:   telegram.EmojiMode(cfg.Telegram.PremiumEmojiMode),
	}
	if cfg.Telegram.DryRun {
		tc.HTTPClient = telegram.NewDryRun()
		if tc.Token == "" {
			tc.Token = "dry-run"
		}
		log.Warn("dry run: Telegram API calls are simulated")
	}
	return telegram.New(tc, nil, log.Named("telegram"))
}

func openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Storage, error) {
	if cfg.Database.UseInMemory || cfg.Telegram.DryRun {
		log.Info("using in-memory storage")
		return storage.NewMemoryStorage(), nil
	}
	store, err := storage.NewSQLStorage(ctx, storage.DatabaseConfig{
		Driver:   cfg.Database.Driver,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		Path:     cfg.Database.Path,
	}, log.Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}
	return store, nil
}

// newRanker picks the language model provider. A provider without
// credentials is logged and skipped; search then relies on scores alone.
func newRanker(ctx context.Context, cfg *config.Config, log *zap.Logger) *ranker.Ranker {
	opts := []ranker.Option{ranker.WithTopN(cfg.Ranker.TopN), ranker.WithTimeout(cfg.Ranker.Timeout)}

	var (
		completer ranker.Completer
		model     string
		err       error
	)
	switch cfg.Ranker.Provider {
	case "openai":
		model = cfg.OpenAI.Model
		completer, err = ranker.NewOpenAICompleter(ranker.OpenAIConfig{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.Temperature,
		})
	case "gemini":
		model = cfg.Gemini.Model
		completer, err = ranker.NewGeminiCompleter(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model,
			cfg.OpenAI.MaxTokens, cfg.OpenAI.Temperature)
	}
	aiLog := logger.WithAIFields(log.Named("ranker"), cfg.Ranker.Provider, model)
	if err != nil {
		aiLog.Warn("ai rerank disabled", zap.Error(err))
		return ranker.New(nil, aiLog, opts...)
	}
	if completer == nil {
		aiLog.Info("ai rerank disabled")
	}
	return ranker.New(completer, aiLog, opts...)
}

func (c *components) newEngine(ctx context.Context) *bot.Engine {
	cfg := c.cfg
	return bot.NewEngine(bot.Config{
		MaxLoginAttempts:  cfg.Auth.MaxLoginAttempts,
		LockoutDuration:   time.Duration(cfg.Auth.LockoutMinutes) * time.Minute,
		OTPTTL:            cfg.Auth.OTPTTL,
		OTPMaxAttempts:    cfg.Auth.OTPMaxAttempts,
		OTPResendInterval: cfg.Auth.OTPResend,
		SessionLockTTL:    cfg.Redis.LockTTL,
		SiteURL:           cfg.Channels.SiteURL,
	}, bot.Deps{
		Telegram: c.tg,
		Store:    c.store,
		Locker:   c.locker,
		Lockouts: c.lockouts,
		OTP:      otp.LogSender{Logger: c.logger.Named("otp"), Reveal: cfg.Telegram.DryRun},
		Ranker:   newRanker(ctx, cfg, c.logger),
		Channels: c.syncer,
	}, c.logger.Named("bot"))
}

// Close waits for background channel syncs and releases connections.
func (c *components) Close() {
	if c.syncer != nil {
		c.syncer.Wait()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.logger.Warn("close redis", zap.Error(err))
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.logger.Warn("close storage", zap.Error(err))
		}
	}
}
