package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/xaenox/ishbor-bot/internal/telegram"
	"github.com/xaenox/ishbor-bot/pkg/config"
)

const adminTimeout = 30 * time.Second

var (
	webhookCmd = &cobra.Command{
		Use:   "webhook",
		Short: "Manage the Telegram webhook registration",
	}

	webhookSetCmd = &cobra.Command{
		Use:   "set",
		Short: "Register the webhook URL with Telegram",
		RunE:  runWebhookSet,
	}

	webhookInfoCmd = &cobra.Command{
		Use:   "info",
		Short: "Show the current webhook state",
		RunE:  runWebhookInfo,
	}

	meCmd = &cobra.Command{
		Use:   "me",
		Short: "Check the bot token and print the bot account",
		RunE:  runMe,
	}
)

func init() {
	webhookSetCmd.Flags().String("url", "", "public webhook URL (default: telegram.webhook_url)")
	webhookCmd.AddCommand(webhookSetCmd, webhookInfoCmd)
	rootCmd.AddCommand(webhookCmd, meCmd)
}

// adminClient loads the configuration and builds a bare Telegram client.
func adminClient(cmd *cobra.Command) (*config.Config, *telegram.Client, context.Context, context.CancelFunc, error) {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), adminTimeout)
	return cfg, newTelegram(cfg, log), ctx, cancel, nil
}

func runWebhookSet(cmd *cobra.Command, args []string) error {
	cfg, tg, ctx, cancel, err := adminClient(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	url, _ := cmd.Flags().GetString("url")
	if url == "" {
		url = cfg.Telegram.WebhookURL
	}
	if url == "" {
		return errors.New("webhook url is required: pass --url or set WEBHOOK_URL")
	}
	if err := tg.SetWebhook(ctx, url, cfg.Telegram.WebhookSecret); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "webhook set to %s\n", url)
	return nil
}

func runWebhookInfo(cmd *cobra.Command, args []string) error {
	_, tg, ctx, cancel, err := adminClient(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	info, err := tg.GetWebhookInfo(ctx)
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "url:              %s\n", info.URL)
	fmt.Fprintf(out, "pending updates:  %d\n", info.PendingUpdateCount)
	if info.LastErrorDate != 0 {
		fmt.Fprintf(out, "last error:       %s (%s)\n", info.LastErrorMessage,
			time.Unix(int64(info.LastErrorDate), 0).Format(time.RFC3339))
	}
	return nil
}

func runMe(cmd *cobra.Command, args []string) error {
	_, tg, ctx, cancel, err := adminClient(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	me, err := tg.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("get me: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "@%s (id %d)\n", me.UserName, me.ID)
	return nil
}
