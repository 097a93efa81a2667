package channel

import (
	"context"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/ishbor-bot/internal/models"
	"github.com/xaenox/ishbor-bot/internal/storage"
	"github.com/xaenox/ishbor-bot/internal/telegram"
)

var testTargets = map[string]string{
	"toshkent-shahri": "@ishbor_toshkent",
	"samarqand":       "@ishbor_samarqand",
}

func newDrySyncer(t *testing.T) (*Syncer, *telegram.DryRun, *storage.MemoryStorage) {
	t.Helper()
	dry := telegram.NewDryRun()
	client := telegram.New(telegram.Config{Token: "test", HTTPClient: dry}, nil, nil)
	store := storage.NewMemoryStorage()
	s := NewSyncer(Config{Targets: testTargets, PromoText: "promo"}, client, store, store, storage.NewMutexLocker(), nil)
	return s, dry, store
}

func TestSyncJob_PostThenNoop(t *testing.T) {
	s, dry, store := newDrySyncer(t)
	ctx := context.Background()
	job := sampleJob()

	outcome, err := s.SyncJob(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, OutcomePosted, outcome)

	sends := dry.CallsTo("sendMessage")
	require.Len(t, sends, 1)
	assert.Equal(t, "@ishbor_toshkent", sends[0].Params.Get("chat_id"))
	assert.Equal(t, "HTML", sends[0].Params.Get("parse_mode"))

	post, err := store.GetChannelPost(ctx, models.EntityJob, job.ID, "@ishbor_toshkent")
	require.NoError(t, err)
	assert.Equal(t, 1, post.MessageID)
	assert.Equal(t, ContentHash(RenderJob(job, Footer{Channel: "@ishbor_toshkent", Promo: "promo"})), post.ContentHash)

	outcome, err = s.SyncJob(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)
	assert.Len(t, dry.Calls(), 1)
}

func TestSyncJob_EditsInPlace(t *testing.T) {
	s, dry, store := newDrySyncer(t)
	ctx := context.Background()
	job := sampleJob()

	_, err := s.SyncJob(ctx, job)
	require.NoError(t, err)
	before, err := store.GetChannelPost(ctx, models.EntityJob, job.ID, "@ishbor_toshkent")
	require.NoError(t, err)

	job.SalaryMax = 20000000
	outcome, err := s.SyncJob(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEdited, outcome)

	edits := dry.CallsTo("editMessageText")
	require.Len(t, edits, 1)
	assert.Equal(t, "1", edits[0].Params.Get("message_id"))
	assert.Len(t, dry.CallsTo("sendMessage"), 1)

	after, err := store.GetChannelPost(ctx, models.EntityJob, job.ID, "@ishbor_toshkent")
	require.NoError(t, err)
	assert.Equal(t, before.MessageID, after.MessageID)
	assert.NotEqual(t, before.ContentHash, after.ContentHash)
	assert.Len(t, store.ChannelPosts(), 1)
}

func TestSyncJob_IneligibleLeavesPostAlone(t *testing.T) {
	s, dry, store := newDrySyncer(t)
	ctx := context.Background()
	job := sampleJob()

	_, err := s.SyncJob(ctx, job)
	require.NoError(t, err)
	before, err := store.GetChannelPost(ctx, models.EntityJob, job.ID, "@ishbor_toshkent")
	require.NoError(t, err)
	dry.Reset()

	for _, mutate := range []func(*models.Job){
		func(j *models.Job) { j.IsActive = false },
		func(j *models.Job) { j.Status = "archived" },
	} {
		j := sampleJob()
		j.Title = "Changed"
		mutate(j)

		outcome, err := s.SyncJob(ctx, j)
		require.NoError(t, err)
		assert.Equal(t, OutcomeIneligible, outcome)
	}

	assert.Empty(t, dry.Calls())
	after, err := store.GetChannelPost(ctx, models.EntityJob, job.ID, "@ishbor_toshkent")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSyncJob_UnknownRegionSkipped(t *testing.T) {
	s, dry, store := newDrySyncer(t)
	job := sampleJob()
	job.RegionSlug = "atlantis"

	outcome, err := s.SyncJob(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoChannel, outcome)
	assert.Empty(t, dry.Calls())
	assert.Empty(t, store.ChannelPosts())
}

func TestSyncJob_RegionFromID(t *testing.T) {
	s, dry, _ := newDrySyncer(t)
	job := sampleJob()
	job.RegionSlug = ""

	outcome, err := s.SyncJob(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, OutcomePosted, outcome)
	assert.Equal(t, "@ishbor_toshkent", dry.CallsTo("sendMessage")[0].Params.Get("chat_id"))
}

func TestSyncJob_ConcurrentSyncsPostOnce(t *testing.T) {
	s, dry, store := newDrySyncer(t)
	job := sampleJob()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j := *job
			_, err := s.SyncJob(context.Background(), &j)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, dry.CallsTo("sendMessage"), 1)
	assert.Len(t, store.ChannelPosts(), 1)
}

func TestResumeEligible(t *testing.T) {
	yes, no := true, false
	base := models.Resume{IsPublic: true, Status: models.StatusActive}

	r := base
	assert.True(t, ResumeEligible(&r))
	r.PostToChannel = &yes
	assert.True(t, ResumeEligible(&r))
	r.PostToChannel = &no
	assert.False(t, ResumeEligible(&r))

	r = base
	r.IsPublic = false
	assert.False(t, ResumeEligible(&r))

	r = base
	r.Status = "draft"
	assert.False(t, ResumeEligible(&r))
	assert.False(t, ResumeEligible(nil))
}

func TestSyncAsync(t *testing.T) {
	s, dry, store := newDrySyncer(t)
	store.PutJob(sampleJob())

	s.SyncAsync(models.EntityJob, 42)
	s.SyncAsync(models.EntityJob, 404)
	s.Wait()

	assert.Len(t, dry.CallsTo("sendMessage"), 1)
	assert.Len(t, store.ChannelPosts(), 1)
}

type scriptedPoster struct {
	editErr error
	sends   int
	edits   int
}

func (p *scriptedPoster) SendMessage(ctx context.Context, to telegram.Recipient, text string, opts *telegram.MessageOptions) (*tgbotapi.Message, error) {
	p.sends++
	return &tgbotapi.Message{MessageID: 100 + p.sends}, nil
}

func (p *scriptedPoster) EditMessage(ctx context.Context, to telegram.Recipient, messageID int, text string, opts *telegram.MessageOptions) (*tgbotapi.Message, error) {
	p.edits++
	return nil, p.editErr
}

func seededSyncer(t *testing.T, poster Poster) (*Syncer, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	require.NoError(t, store.SaveChannelPost(context.Background(), &models.ChannelPost{
		EntityType:  models.EntityJob,
		EntityID:    42,
		ChannelID:   "@ishbor_toshkent",
		ContentHash: "stale",
		MessageID:   9,
	}))
	return NewSyncer(Config{Targets: testTargets}, poster, store, store, nil, nil), store
}

func TestSyncJob_NotModifiedCountsAsSuccess(t *testing.T) {
	poster := &scriptedPoster{editErr: &telegram.APIError{Method: "editMessageText", Code: 400,
		Description: "Bad Request: message is not modified: specified new message content and reply markup are exactly the same"}}
	s, store := seededSyncer(t, poster)

	outcome, err := s.SyncJob(context.Background(), sampleJob())
	require.NoError(t, err)
	assert.Equal(t, OutcomeEdited, outcome)
	assert.Equal(t, 0, poster.sends)

	post, err := store.GetChannelPost(context.Background(), models.EntityJob, 42, "@ishbor_toshkent")
	require.NoError(t, err)
	assert.NotEqual(t, "stale", post.ContentHash)
	assert.Equal(t, 9, post.MessageID)
}

func TestSyncJob_VanishedPostIsRecreated(t *testing.T) {
	poster := &scriptedPoster{editErr: &telegram.APIError{Method: "editMessageText", Code: 400,
		Description: "Bad Request: message to edit not found"}}
	s, store := seededSyncer(t, poster)

	outcome, err := s.SyncJob(context.Background(), sampleJob())
	require.NoError(t, err)
	assert.Equal(t, OutcomePosted, outcome)

	post, err := store.GetChannelPost(context.Background(), models.EntityJob, 42, "@ishbor_toshkent")
	require.NoError(t, err)
	assert.Equal(t, 101, post.MessageID)
}

func TestSyncJob_EditFailureKeepsRecord(t *testing.T) {
	poster := &scriptedPoster{editErr: &telegram.APIError{Method: "editMessageText", Code: 403, Description: "Forbidden"}}
	s, store := seededSyncer(t, poster)

	_, err := s.SyncJob(context.Background(), sampleJob())
	require.Error(t, err)

	post, err := store.GetChannelPost(context.Background(), models.EntityJob, 42, "@ishbor_toshkent")
	require.NoError(t, err)
	assert.Equal(t, "stale", post.ContentHash)
}
