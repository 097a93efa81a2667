package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/xaenox/ishbor-bot/internal/bot"
	"github.com/xaenox/ishbor-bot/internal/events"
	"github.com/xaenox/ishbor-bot/internal/server"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const eventPollInterval = time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot: webhook server, or long polling with --poll",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Bool("poll", false, "use getUpdates long polling instead of the webhook")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := newComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	engine := c.newEngine(ctx)
	poll, _ := cmd.Flags().GetBool("poll")

	g, gctx := errgroup.WithContext(ctx)
	if poll {
		g.Go(func() error {
			return bot.NewPoller(c.tg, engine, log.Named("poller"),
				bot.WithHandlerTimeout(cfg.Server.HandlerTimeout)).Run(gctx)
		})
	}
	// The HTTP server also carries the internal sync endpoint and health
	// checks, so it runs in polling mode too.
	srv := server.New(server.Config{
		Addr:           cfg.Server.Addr,
		WebhookSecret:  cfg.Telegram.WebhookSecret,
		InternalSecret: cfg.Server.InternalSecret,
		HandlerTimeout: cfg.Server.HandlerTimeout,
	}, engine, c.syncer, log.Named("server"))
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topic != "" {
		consumer, err := events.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, []string{cfg.Kafka.Topic})
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		defer consumer.Close()
		worker := events.NewWorker(consumer, c.syncer, eventPollInterval, cfg.Channels.SyncTimeout, log.Named("events"))
		g.Go(func() error {
			return worker.Run(gctx)
		})
		log.Info("consuming publish events",
			zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	log.Info("bot started", zap.Bool("poll", poll), zap.String("addr", cfg.Server.Addr),
		zap.Bool("dry_run", cfg.Telegram.DryRun))
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("bot stopped")
	return err
}
