package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/xaenox/ishbor-bot/internal/models"
	"github.com/xaenox/ishbor-bot/internal/telegram"
)

var (
	channelsCmd = &cobra.Command{
		Use:   "channels",
		Short: "Inspect the regional channels",
	}

	channelsCheckCmd = &cobra.Command{
		Use:   "check",
		Short: "Verify the bot is an admin allowed to post in every configured channel",
		RunE:  runChannelsCheck,
	}

	syncCmd = &cobra.Command{
		Use:       "sync job|resume <id>",
		Short:     "Post or update the channel message of one listing",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(models.EntityJob), string(models.EntityResume)},
		RunE:      runSync,
	}
)

func init() {
	channelsCmd.AddCommand(channelsCheckCmd)
	rootCmd.AddCommand(channelsCmd, syncCmd)
}

func runChannelsCheck(cmd *cobra.Command, args []string) error {
	cfg, tg, ctx, cancel, err := adminClient(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	me, err := tg.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("get me: %w", err)
	}
	slugs := make([]string, 0, len(cfg.Channels.Targets))
	for slug := range cfg.Channels.Targets {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	out := cmd.OutOrStdout()
	failed := 0
	for _, slug := range slugs {
		handle := cfg.Channels.Targets[slug]
		member, err := tg.GetChatMember(ctx, telegram.Channel(handle), me.ID)
		switch {
		case err != nil:
			failed++
			fmt.Fprintf(out, "%-20s %-28s error: %v\n", slug, handle, err)
		case member.Status == "creator" || (member.Status == "administrator" && member.CanPostMessages):
			fmt.Fprintf(out, "%-20s %-28s ok\n", slug, handle)
		default:
			failed++
			fmt.Fprintf(out, "%-20s %-28s %s, cannot post\n", slug, handle, member.Status)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d channels are not ready", failed, len(slugs))
	}
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	entityType := models.EntityType(args[0])
	if entityType != models.EntityJob && entityType != models.EntityResume {
		return fmt.Errorf("unknown listing type %q: want job or resume", args[0])
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid id %q", args[1])
	}

	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	c, err := newComponents(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := cmd.Context()
	if cfg.Channels.SyncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Channels.SyncTimeout)
		defer cancel()
	}
	outcome, err := c.syncer.SyncByID(ctx, entityType, id)
	if err != nil {
		return fmt.Errorf("sync %s %d: %w", entityType, id, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d: %s\n", entityType, id, outcome)
	return nil
}
