package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/ishbor-bot/internal/models"
)

func newSQLiteStorage(t *testing.T) *SQLStorage {
	t.Helper()
	s, err := NewSQLStorage(context.Background(), DatabaseConfig{
		Driver: DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "bot.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLStorage_SessionCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStorage(t)

	_, err := s.GetSession(ctx, 100)
	require.ErrorIs(t, err, ErrNotFound)

	sess := models.NewSession(100, models.LangRu)
	sess.State = "AwaitingPhone"
	sess.Answers["region"] = "1"
	require.NoError(t, s.SaveSession(ctx, sess))
	assert.Equal(t, int64(1), sess.Version)

	// A second insert of a brand new session for the same chat loses.
	dup := models.NewSession(100, models.LangUz)
	assert.ErrorIs(t, s.SaveSession(ctx, dup), ErrVersionConflict)

	a, err := s.GetSession(ctx, 100)
	require.NoError(t, err)
	b, err := s.GetSession(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "1", a.Answers["region"])
	assert.Equal(t, models.LangRu, a.Lang)

	a.State = "AwaitingOtp"
	require.NoError(t, s.SaveSession(ctx, a))
	assert.ErrorIs(t, s.SaveSession(ctx, b), ErrVersionConflict)

	stored, err := s.GetSession(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "AwaitingOtp", stored.State)
	assert.Equal(t, int64(2), stored.Version)
}

func TestSQLStorage_ChannelPostUpsert(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStorage(t)

	post := &models.ChannelPost{
		EntityType:  models.EntityJob,
		EntityID:    5,
		ChannelID:   "@ishbor_toshkent",
		RegionSlug:  "toshkent",
		ContentHash: "aaa",
		MessageID:   10,
	}
	require.NoError(t, s.SaveChannelPost(ctx, post))

	post.ContentHash = "bbb"
	require.NoError(t, s.SaveChannelPost(ctx, post))

	got, err := s.GetChannelPost(ctx, models.EntityJob, 5, "@ishbor_toshkent")
	require.NoError(t, err)
	assert.Equal(t, "bbb", got.ContentHash)
	assert.Equal(t, 10, got.MessageID)

	_, err = s.GetChannelPost(ctx, models.EntityResume, 5, "@ishbor_toshkent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStorage_Catalog(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStorage(t)

	u := &models.User{Phone: "+998901112233", Name: "Aziz", Role: models.RoleSeeker}
	require.NoError(t, s.CreateUser(ctx, u))
	require.NotZero(t, u.ID)
	require.NoError(t, s.LinkTelegram(ctx, u.ID, 77))

	got, err := s.GetUserByPhone(ctx, "+998901112233")
	require.NoError(t, err)
	assert.Equal(t, int64(77), got.TelegramChatID)
	assert.False(t, got.HasPassword())

	_, err = s.DB().ExecContext(ctx, `
		INSERT INTO jobs (title, category_id, region_id, salary_max, requirements, is_active, status, created_at)
		VALUES ('Backend', 1, 1, 6000000, '["Go","SQL"]', TRUE, 'active', 0),
		       ('Hidden', 1, 1, 0, '[]', FALSE, 'active', 0)`)
	require.NoError(t, err)

	jobs, err := s.ListActiveJobs(ctx, CatalogFilter{CategoryID: 1})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Backend", jobs[0].Title)
	assert.Equal(t, []string{"Go", "SQL"}, jobs[0].Requirements)

	yes := true
	r := &models.Resume{UserID: u.ID, Title: "Driver", Skills: []string{"B", "C"}, IsPublic: true, Status: models.StatusActive, PostToChannel: &yes}
	require.NoError(t, s.SaveResume(ctx, r))
	require.NotZero(t, r.ID)

	r.Title = "Truck driver"
	require.NoError(t, s.SaveResume(ctx, r))

	loaded, err := s.GetResumeByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Truck driver", loaded.Title)
	assert.Equal(t, []string{"B", "C"}, loaded.Skills)
	require.NotNil(t, loaded.PostToChannel)
	assert.True(t, *loaded.PostToChannel)

	resumes, err := s.ListPublicResumes(ctx, CatalogFilter{})
	require.NoError(t, err)
	assert.Len(t, resumes, 1)

	app := &models.Application{UserID: u.ID, JobID: jobs[0].ID, Source: "telegram"}
	require.NoError(t, s.SaveApplication(ctx, app))
	require.NoError(t, s.SaveApplication(ctx, app))
}
