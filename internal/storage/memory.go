package storage

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/xaenox/ishbor-bot/internal/models"
)

// MemoryStorage keeps everything in process memory. It backs tests and
// dry-run mode.
type MemoryStorage struct {
	mu           sync.RWMutex
	sessions     map[int64]*models.Session
	posts        map[string]*models.ChannelPost
	users        map[int64]*models.User
	jobs         map[int64]*models.Job
	resumes      map[int64]*models.Resume
	applications []*models.Application
	nextID       int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[int64]*models.Session),
		posts:    make(map[string]*models.ChannelPost),
		users:    make(map[int64]*models.User),
		jobs:     make(map[int64]*models.Job),
		resumes:  make(map[int64]*models.Resume),
		nextID:   1000,
	}
}

// Session methods
func (s *MemoryStorage) GetSession(ctx context.Context, chatID int64) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	return sess.Clone(), nil
}

func (s *MemoryStorage) SaveSession(ctx context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stored int64
	if existing, ok := s.sessions[sess.ChatID]; ok {
		stored = existing.Version
	}
	if stored != sess.Version {
		return ErrVersionConflict
	}

	sess.Version++
	sess.UpdatedAt = time.Now()
	s.sessions[sess.ChatID] = sess.Clone()
	return nil
}

// Channel post methods
func postKey(entityType models.EntityType, entityID int64, channelID string) string {
	return string(entityType) + ":" + channelID + ":" + strconv.FormatInt(entityID, 10)
}

func (s *MemoryStorage) GetChannelPost(ctx context.Context, entityType models.EntityType, entityID int64, channelID string) (*models.ChannelPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[postKey(entityType, entityID, channelID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *post
	return &cp, nil
}

func (s *MemoryStorage) SaveChannelPost(ctx context.Context, post *models.ChannelPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post.UpdatedAt = time.Now()
	cp := *post
	s.posts[postKey(post.EntityType, post.EntityID, post.ChannelID)] = &cp
	return nil
}

// ChannelPosts returns a snapshot of all stored channel posts.
func (s *MemoryStorage) ChannelPosts() []models.ChannelPost {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ChannelPost, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, *p)
	}
	return out
}

// Catalog methods
func (s *MemoryStorage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Phone == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if j, ok := s.jobs[id]; ok {
		cp := *j
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) GetResume(ctx context.Context, id int64) (*models.Resume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.resumes[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) GetResumeByUser(ctx context.Context, userID int64) (*models.Resume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *models.Resume
	for _, r := range s.resumes {
		if r.UserID == userID && (found == nil || r.ID > found.ID) {
			found = r
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (s *MemoryStorage) ListActiveJobs(ctx context.Context, filter CatalogFilter) ([]*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Job, 0)
	for _, j := range s.jobs {
		if !j.IsActive || j.Status != models.StatusActive {
			continue
		}
		if filter.CategoryID != 0 && j.CategoryID != filter.CategoryID {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID > out[k].ID })
	if len(out) > filter.limit() {
		out = out[:filter.limit()]
	}
	return out, nil
}

func (s *MemoryStorage) ListPublicResumes(ctx context.Context, filter CatalogFilter) ([]*models.Resume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Resume, 0)
	for _, r := range s.resumes {
		if !r.IsPublic || r.Status != models.StatusActive {
			continue
		}
		if filter.CategoryID != 0 && r.CategoryID != filter.CategoryID {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID > out[k].ID })
	if len(out) > filter.limit() {
		out = out[:filter.limit()]
	}
	return out, nil
}

func (s *MemoryStorage) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == 0 {
		s.nextID++
		user.ID = s.nextID
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStorage) LinkTelegram(ctx context.Context, userID, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.TelegramChatID = chatID
	return nil
}

func (s *MemoryStorage) SaveResume(ctx context.Context, resume *models.Resume) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if resume.ID == 0 {
		s.nextID++
		resume.ID = s.nextID
	}
	if resume.CreatedAt.IsZero() {
		resume.CreatedAt = time.Now()
	}
	cp := *resume
	s.resumes[resume.ID] = &cp
	return nil
}

func (s *MemoryStorage) SaveApplication(ctx context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.applications {
		if a.UserID == app.UserID && a.JobID == app.JobID {
			return nil
		}
	}
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now()
	}
	cp := *app
	s.applications = append(s.applications, &cp)
	return nil
}

// PutJob inserts or replaces a vacancy. Used by tests and dry-run seeding.
func (s *MemoryStorage) PutJob(job *models.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *job
	s.jobs[job.ID] = &cp
}

// Applications returns a snapshot of written applications.
func (s *MemoryStorage) Applications() []models.Application {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Application, 0, len(s.applications))
	for _, a := range s.applications {
		out = append(out, *a)
	}
	return out
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
