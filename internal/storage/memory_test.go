package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/ishbor-bot/internal/models"
)

func TestMemoryStorage_SaveSessionCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	_, err := s.GetSession(ctx, 42)
	require.ErrorIs(t, err, ErrNotFound)

	sess := models.NewSession(42, models.LangUz)
	require.NoError(t, s.SaveSession(ctx, sess))
	assert.Equal(t, int64(1), sess.Version)

	first, err := s.GetSession(ctx, 42)
	require.NoError(t, err)
	second, err := s.GetSession(ctx, 42)
	require.NoError(t, err)

	first.State = "Idle"
	require.NoError(t, s.SaveSession(ctx, first))

	second.State = "AwaitingPhone"
	assert.ErrorIs(t, s.SaveSession(ctx, second), ErrVersionConflict)

	stored, err := s.GetSession(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Idle", stored.State)
	assert.Equal(t, int64(2), stored.Version)
}

func TestMemoryStorage_GetSessionReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	sess := models.NewSession(7, models.LangRu)
	sess.Answers["title"] = "Driver"
	require.NoError(t, s.SaveSession(ctx, sess))

	loaded, err := s.GetSession(ctx, 7)
	require.NoError(t, err)
	loaded.Answers["title"] = "changed"

	again, err := s.GetSession(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Driver", again.Answers["title"])
}

func TestMemoryStorage_ListActiveJobs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	s.PutJob(&models.Job{ID: 1, CategoryID: 3, IsActive: true, Status: models.StatusActive})
	s.PutJob(&models.Job{ID: 2, CategoryID: 3, IsActive: false, Status: models.StatusActive})
	s.PutJob(&models.Job{ID: 3, CategoryID: 4, IsActive: true, Status: models.StatusActive})
	s.PutJob(&models.Job{ID: 4, CategoryID: 3, IsActive: true, Status: "draft"})

	jobs, err := s.ListActiveJobs(ctx, CatalogFilter{})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, int64(3), jobs[0].ID)

	jobs, err = s.ListActiveJobs(ctx, CatalogFilter{CategoryID: 3})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, int64(1), jobs[0].ID)
}

func TestMemoryStorage_UsersAndResumes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	u := &models.User{Phone: "+998901234567", Role: models.RoleSeeker}
	require.NoError(t, s.CreateUser(ctx, u))
	require.NotZero(t, u.ID)
	require.NoError(t, s.LinkTelegram(ctx, u.ID, 555))

	byPhone, err := s.GetUserByPhone(ctx, "+998901234567")
	require.NoError(t, err)
	assert.Equal(t, int64(555), byPhone.TelegramChatID)

	assert.ErrorIs(t, s.LinkTelegram(ctx, 999999, 1), ErrNotFound)

	r := &models.Resume{UserID: u.ID, Title: "Go developer"}
	require.NoError(t, s.SaveResume(ctx, r))
	got, err := s.GetResumeByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
}
