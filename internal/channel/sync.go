// Package channel mirrors active vacancies and public resumes into the
// regional Telegram channels, one post per listing, edited in place when
// the listing changes.
package channel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/ishbor-bot/internal/matching"
	"github.com/xaenox/ishbor-bot/internal/models"
	"github.com/xaenox/ishbor-bot/internal/storage"
	"github.com/xaenox/ishbor-bot/internal/telegram"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultSyncTimeout = 30 * time.Second
	defaultLockTTL     = 30 * time.Second
)

// Outcome says what a sync did.
type Outcome string

const (
	OutcomePosted    Outcome = "posted"
	OutcomeEdited    Outcome = "edited"
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeIneligible: the listing must not be shown; any existing post is left alone.
	OutcomeIneligible Outcome = "ineligible"
	// OutcomeNoChannel: no channel is configured for the listing's region.
	OutcomeNoChannel Outcome = "no_channel"
)

// Poster is the part of the Bot API client channel sync needs.
type Poster interface {
	SendMessage(ctx context.Context, to telegram.Recipient, text string, opts *telegram.MessageOptions) (*tgbotapi.Message, error)
	EditMessage(ctx context.Context, to telegram.Recipient, messageID int, text string, opts *telegram.MessageOptions) (*tgbotapi.Message, error)
}

type Config struct {
	// Targets maps a region slug to a channel handle.
	Targets     map[string]string
	PromoText   string
	SiteURL     string
	PostsPerMin int
	Timeout     time.Duration
	LockTTL     time.Duration
}

type Syncer struct {
	cfg     Config
	poster  Poster
	posts   storage.ChannelPostStore
	catalog storage.CatalogReader
	locker  storage.Locker
	limiter *rate.Limiter
	logger  *zap.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewSyncer wires channel sync. A PostsPerMin of zero disables pacing.
func NewSyncer(cfg Config, poster Poster, posts storage.ChannelPostStore, catalog storage.CatalogReader, locker storage.Locker, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = storage.NewMutexLocker()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSyncTimeout
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.PostsPerMin > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.PostsPerMin)), 1)
	}

	return &Syncer{
		cfg:     cfg,
		poster:  poster,
		posts:   posts,
		catalog: catalog,
		locker:  locker,
		limiter: limiter,
		logger:  logger,
		now:     time.Now,
	}
}

// JobEligible reports whether a vacancy may appear in a channel.
func JobEligible(job *models.Job) bool {
	return job != nil && job.IsActive && job.Status == models.StatusActive
}

// ResumeEligible reports whether a resume may appear in a channel.
func ResumeEligible(r *models.Resume) bool {
	return r != nil && r.IsPublic && r.Status == models.StatusActive &&
		(r.PostToChannel == nil || *r.PostToChannel)
}

// ContentHash identifies rendered post text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ChannelFor resolves the channel of a region, by slug or by id.
func (s *Syncer) ChannelFor(slug string, regionID int64) (string, bool) {
	if slug == "" {
		if region, ok := matching.RegionByID(regionID); ok {
			slug = region.Slug
		}
	}
	handle, ok := s.cfg.Targets[slug]
	if !ok || strings.TrimSpace(handle) == "" {
		return "", false
	}
	return handle, true
}

// Targets lists the configured channels.
func (s *Syncer) Targets() map[string]string {
	out := make(map[string]string, len(s.cfg.Targets))
	for slug, handle := range s.cfg.Targets {
		out[slug] = handle
	}
	return out
}

func (s *Syncer) footer(channelID string) Footer {
	return Footer{Channel: channelID, Promo: s.cfg.PromoText, SiteURL: s.cfg.SiteURL}
}

func (s *Syncer) SyncJob(ctx context.Context, job *models.Job) (Outcome, error) {
	if !JobEligible(job) {
		return OutcomeIneligible, nil
	}
	channelID, ok := s.ChannelFor(job.RegionSlug, job.RegionID)
	if !ok {
		s.logger.Debug("no channel for region",
			zap.Int64("job_id", job.ID), zap.String("region", job.RegionSlug))
		return OutcomeNoChannel, nil
	}
	text := RenderJob(job, s.footer(channelID))
	return s.sync(ctx, models.EntityJob, job.ID, job.RegionSlug, channelID, text)
}

func (s *Syncer) SyncResume(ctx context.Context, r *models.Resume) (Outcome, error) {
	if !ResumeEligible(r) {
		return OutcomeIneligible, nil
	}
	channelID, ok := s.ChannelFor(r.RegionSlug, r.RegionID)
	if !ok {
		s.logger.Debug("no channel for region",
			zap.Int64("resume_id", r.ID), zap.String("region", r.RegionSlug))
		return OutcomeNoChannel, nil
	}
	text := RenderResume(r, s.footer(channelID))
	return s.sync(ctx, models.EntityResume, r.ID, r.RegionSlug, channelID, text)
}

// SyncByID loads a listing from the catalog and syncs it.
func (s *Syncer) SyncByID(ctx context.Context, entityType models.EntityType, id int64) (Outcome, error) {
	if s.catalog == nil {
		return "", errors.New("channel sync: no catalog configured")
	}
	switch entityType {
	case models.EntityJob:
		job, err := s.catalog.GetJob(ctx, id)
		if err != nil {
			return "", fmt.Errorf("load job %d: %w", id, err)
		}
		return s.SyncJob(ctx, job)
	case models.EntityResume:
		r, err := s.catalog.GetResume(ctx, id)
		if err != nil {
			return "", fmt.Errorf("load resume %d: %w", id, err)
		}
		return s.SyncResume(ctx, r)
	default:
		return "", fmt.Errorf("unknown entity type %q", entityType)
	}
}

// SyncAsync syncs a listing in the background under its own deadline.
// Failures are logged.
func (s *Syncer) SyncAsync(entityType models.EntityType, id int64) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("channel sync panicked",
					zap.String("entity_type", string(entityType)),
					zap.Int64("entity_id", id),
					zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()

		outcome, err := s.SyncByID(ctx, entityType, id)
		if err != nil {
			s.logger.Warn("channel sync failed",
				zap.String("entity_type", string(entityType)),
				zap.Int64("entity_id", id),
				zap.Error(err))
			return
		}
		s.logger.Info("channel sync done",
			zap.String("entity_type", string(entityType)),
			zap.Int64("entity_id", id),
			zap.String("outcome", string(outcome)))
	}()
}

// Wait blocks until background syncs finish.
func (s *Syncer) Wait() {
	s.wg.Wait()
}

func (s *Syncer) sync(ctx context.Context, entityType models.EntityType, id int64, slug, channelID, text string) (Outcome, error) {
	key := fmt.Sprintf("channel:%s:%d", entityType, id)
	unlock, err := s.locker.Lock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return "", fmt.Errorf("lock %s: %w", key, err)
	}
	defer unlock()

	log := s.logger.With(
		zap.String("entity_type", string(entityType)),
		zap.Int64("entity_id", id),
		zap.String("channel", channelID))

	hash := ContentHash(text)
	post, err := s.posts.GetChannelPost(ctx, entityType, id, channelID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("load channel post: %w", err)
	}

	if post != nil && post.ContentHash == hash {
		return OutcomeUnchanged, nil
	}

	if post != nil {
		edited, err := s.edit(ctx, post, text)
		if err != nil {
			return "", err
		}
		if edited {
			post.ContentHash = hash
			post.RegionSlug = slug
			post.UpdatedAt = s.now()
			if err := s.posts.SaveChannelPost(ctx, post); err != nil {
				return "", fmt.Errorf("save channel post: %w", err)
			}
			log.Info("channel post edited", zap.Int("message_id", post.MessageID))
			return OutcomeEdited, nil
		}
		log.Warn("channel post vanished, posting again", zap.Int("message_id", post.MessageID))
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	msg, err := s.poster.SendMessage(ctx, telegram.Channel(channelID), text, &telegram.MessageOptions{DisablePreview: true})
	if err != nil {
		return "", fmt.Errorf("post to %s: %w", channelID, err)
	}
	if msg == nil {
		return "", fmt.Errorf("post to %s: empty result", channelID)
	}

	saved := &models.ChannelPost{
		EntityType:  entityType,
		EntityID:    id,
		RegionSlug:  slug,
		ChannelID:   channelID,
		ContentHash: hash,
		MessageID:   msg.MessageID,
		UpdatedAt:   s.now(),
	}
	if err := s.posts.SaveChannelPost(ctx, saved); err != nil {
		return "", fmt.Errorf("save channel post: %w", err)
	}
	log.Info("channel post created", zap.Int("message_id", msg.MessageID))
	return OutcomePosted, nil
}

// edit updates the post in place. It reports false when the message is
// gone and has to be posted again.
func (s *Syncer) edit(ctx context.Context, post *models.ChannelPost, text string) (bool, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return false, err
	}
	_, err := s.poster.EditMessage(ctx, telegram.Channel(post.ChannelID), post.MessageID, text,
		&telegram.MessageOptions{DisablePreview: true})
	switch {
	case err == nil, telegram.IsNotModified(err):
		return true, nil
	case telegram.IsMessageGone(err):
		return false, nil
	default:
		return false, fmt.Errorf("edit %s/%d: %w", post.ChannelID, post.MessageID, err)
	}
}
