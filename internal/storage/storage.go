package storage

import (
	"context"
	"errors"
	"time"

	"github.com/xaenox/ishbor-bot/internal/models"
)

var (
	ErrNotFound        = errors.New("storage: not found")
	ErrVersionConflict = errors.New("storage: session was modified concurrently")
	ErrLocked          = errors.New("storage: lock is held by another worker")
)

// Storage is everything the bot reads and writes.
type Storage interface {
	SessionStore
	ChannelPostStore
	CatalogReader
	CatalogWriter
	Close() error
}

// SessionStore persists per-chat conversation state.
//
// SaveSession is a compare-and-swap on Session.Version: it fails with
// ErrVersionConflict when the stored version differs from the one that
// was loaded, and bumps the version on success.
type SessionStore interface {
	GetSession(ctx context.Context, chatID int64) (*models.Session, error)
	SaveSession(ctx context.Context, s *models.Session) error
}

// ChannelPostStore keeps one record per mirrored listing and channel.
type ChannelPostStore interface {
	GetChannelPost(ctx context.Context, entityType models.EntityType, entityID int64, channelID string) (*models.ChannelPost, error)
	SaveChannelPost(ctx context.Context, post *models.ChannelPost) error
}

// CatalogFilter narrows candidate listings before scoring.
type CatalogFilter struct {
	CategoryID int64
	Limit      int
}

const defaultCatalogLimit = 500

func (f CatalogFilter) limit() int {
	if f.Limit <= 0 {
		return defaultCatalogLimit
	}
	return f.Limit
}

// CatalogReader gives read access to the marketplace tables.
type CatalogReader interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	GetJob(ctx context.Context, id int64) (*models.Job, error)
	GetResume(ctx context.Context, id int64) (*models.Resume, error)
	GetResumeByUser(ctx context.Context, userID int64) (*models.Resume, error)
	ListActiveJobs(ctx context.Context, filter CatalogFilter) ([]*models.Job, error)
	ListPublicResumes(ctx context.Context, filter CatalogFilter) ([]*models.Resume, error)
}

// CatalogWriter covers the few rows the bot is allowed to write.
type CatalogWriter interface {
	CreateUser(ctx context.Context, user *models.User) error
	LinkTelegram(ctx context.Context, userID, chatID int64) error
	SaveResume(ctx context.Context, resume *models.Resume) error
	SaveApplication(ctx context.Context, app *models.Application) error
}

// Locker serializes work on a key across handlers and processes.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
