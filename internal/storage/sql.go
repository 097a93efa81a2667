package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/xaenox/ishbor-bot/internal/models"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// Path is the database file for the sqlite driver.
	Path string
}

func (c DatabaseConfig) dsn() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// SQLStorage implements Storage on database/sql. The same queries run on
// PostgreSQL (lib/pq) and SQLite (modernc.org/sqlite); times are stored as
// unix seconds and lists as JSON text so the schema stays portable.
type SQLStorage struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

func NewSQLStorage(ctx context.Context, config DatabaseConfig, logger *zap.Logger) (*SQLStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Driver == "" {
		config.Driver = DriverPostgres
	}

	db, err := sql.Open(config.Driver, config.dsn())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if config.Driver == DriverSQLite {
		db.SetMaxOpenConns(1) // SQLite: single writer
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	storage := &SQLStorage{db: db, driver: config.Driver, logger: logger}
	if err := storage.initializeSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database schema: %w", err)
	}

	logger.Info("database connected", zap.String("driver", config.Driver))
	return storage, nil
}

func (s *SQLStorage) initializeSchema(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		// The catalog tables belong to the web application; only local
		// SQLite databases get a copy of them.
		if strings.HasPrefix(name, "sqlite_") && s.driver != DriverSQLite {
			continue
		}
		data, err := migrations.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		for _, stmt := range strings.Split(string(data), ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("execute migration %s: %w", name, err)
			}
		}
		s.logger.Debug("migration applied", zap.String("file", name))
	}
	return nil
}

// Session methods
func (s *SQLStorage) GetSession(ctx context.Context, chatID int64) (*models.Session, error) {
	var (
		data    string
		version int64
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, version, updated_at FROM bot_sessions WHERE chat_id = $1`, chatID,
	).Scan(&data, &version, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	var sess models.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decode session %d: %w", chatID, err)
	}
	if sess.Answers == nil {
		sess.Answers = make(map[string]string)
	}
	sess.ChatID = chatID
	sess.Version = version
	sess.UpdatedAt = time.Unix(updated, 0)
	return &sess, nil
}

func (s *SQLStorage) SaveSession(ctx context.Context, sess *models.Session) error {
	now := time.Now()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %d: %w", sess.ChatID, err)
	}

	var result sql.Result
	if sess.Version == 0 {
		result, err = s.db.ExecContext(ctx, `
			INSERT INTO bot_sessions (chat_id, data, version, updated_at)
			VALUES ($1, $2, 1, $3)
			ON CONFLICT (chat_id) DO NOTHING`,
			sess.ChatID, string(data), now.Unix())
	} else {
		result, err = s.db.ExecContext(ctx, `
			UPDATE bot_sessions
			SET data = $1, version = version + 1, updated_at = $2
			WHERE chat_id = $3 AND version = $4`,
			string(data), now.Unix(), sess.ChatID, sess.Version)
	}
	if err != nil {
		return fmt.Errorf("save session %d: %w", sess.ChatID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrVersionConflict
	}

	sess.Version++
	sess.UpdatedAt = now
	return nil
}

// Channel post methods
func (s *SQLStorage) GetChannelPost(ctx context.Context, entityType models.EntityType, entityID int64, channelID string) (*models.ChannelPost, error) {
	post := &models.ChannelPost{EntityType: entityType, EntityID: entityID, ChannelID: channelID}
	var updated int64
	err := s.db.QueryRowContext(ctx, `
		SELECT region_slug, content_hash, message_id, updated_at
		FROM channel_posts
		WHERE entity_type = $1 AND entity_id = $2 AND channel_id = $3`,
		string(entityType), entityID, channelID,
	).Scan(&post.RegionSlug, &post.ContentHash, &post.MessageID, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query channel post: %w", err)
	}
	post.UpdatedAt = time.Unix(updated, 0)
	return post, nil
}

func (s *SQLStorage) SaveChannelPost(ctx context.Context, post *models.ChannelPost) error {
	post.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channel_posts (entity_type, entity_id, channel_id, region_slug, content_hash, message_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (entity_type, entity_id, channel_id) DO UPDATE
		SET region_slug = excluded.region_slug,
		    content_hash = excluded.content_hash,
		    message_id = excluded.message_id,
		    updated_at = excluded.updated_at`,
		string(post.EntityType), post.EntityID, post.ChannelID, post.RegionSlug,
		post.ContentHash, post.MessageID, post.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("save channel post: %w", err)
	}
	return nil
}

// Catalog methods
const userColumns = `id, phone, name, password_hash, role, telegram_chat_id, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var role string
	var created int64
	if err := row.Scan(&u.ID, &u.Phone, &u.Name, &u.PasswordHash, &role, &u.TelegramChatID, &created); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	u.CreatedAt = time.Unix(created, 0)
	return u, nil
}

func (s *SQLStorage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (s *SQLStorage) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user by phone: %w", err)
	}
	return u, nil
}

const jobColumns = `id, employer_id, title, company, description, category_id, region_id, district_id,
	region_slug, address, latitude, longitude, salary_min, salary_max, experience_years,
	employment_type, remote, requirements, benefits, contact_phone, contact_name,
	is_active, status, created_at`

func scanJob(row interface{ Scan(...any) error }) (*models.Job, error) {
	j := &models.Job{}
	var requirements, benefits string
	var created int64
	err := row.Scan(&j.ID, &j.EmployerID, &j.Title, &j.Company, &j.Description, &j.CategoryID,
		&j.RegionID, &j.DistrictID, &j.RegionSlug, &j.Address, &j.Latitude, &j.Longitude,
		&j.SalaryMin, &j.SalaryMax, &j.ExperienceYrs, &j.EmploymentType, &j.Remote,
		&requirements, &benefits, &j.ContactPhone, &j.ContactName, &j.IsActive, &j.Status, &created)
	if err != nil {
		return nil, err
	}
	j.Requirements = decodeList(requirements)
	j.Benefits = decodeList(benefits)
	j.CreatedAt = time.Unix(created, 0)
	return j, nil
}

func (s *SQLStorage) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}
	return j, nil
}

func (s *SQLStorage) ListActiveJobs(ctx context.Context, filter CatalogFilter) ([]*models.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE is_active = TRUE AND status = 'active' AND ($1 = 0 OR category_id = $1)
		ORDER BY id DESC
		LIMIT $2`, filter.CategoryID, filter.limit())
	if err != nil {
		return nil, fmt.Errorf("query active jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

const resumeColumns = `id, user_id, full_name, title, about, category_id, region_id, district_id,
	region_slug, salary_min, experience, employment_type, skills, phone, is_public, status,
	post_to_channel, created_at`

func scanResume(row interface{ Scan(...any) error }) (*models.Resume, error) {
	r := &models.Resume{}
	var skills string
	var postToChannel sql.NullBool
	var created int64
	err := row.Scan(&r.ID, &r.UserID, &r.FullName, &r.Title, &r.About, &r.CategoryID,
		&r.RegionID, &r.DistrictID, &r.RegionSlug, &r.SalaryMin, &r.Experience,
		&r.EmploymentType, &skills, &r.Phone, &r.IsPublic, &r.Status, &postToChannel, &created)
	if err != nil {
		return nil, err
	}
	r.Skills = decodeList(skills)
	if postToChannel.Valid {
		v := postToChannel.Bool
		r.PostToChannel = &v
	}
	r.CreatedAt = time.Unix(created, 0)
	return r, nil
}

func (s *SQLStorage) GetResume(ctx context.Context, id int64) (*models.Resume, error) {
	r, err := scanResume(s.db.QueryRowContext(ctx, `SELECT `+resumeColumns+` FROM resumes WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query resume: %w", err)
	}
	return r, nil
}

func (s *SQLStorage) GetResumeByUser(ctx context.Context, userID int64) (*models.Resume, error) {
	r, err := scanResume(s.db.QueryRowContext(ctx,
		`SELECT `+resumeColumns+` FROM resumes WHERE user_id = $1 ORDER BY id DESC LIMIT 1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query resume by user: %w", err)
	}
	return r, nil
}

func (s *SQLStorage) ListPublicResumes(ctx context.Context, filter CatalogFilter) ([]*models.Resume, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+resumeColumns+`
		FROM resumes
		WHERE is_public = TRUE AND status = 'active' AND ($1 = 0 OR category_id = $1)
		ORDER BY id DESC
		LIMIT $2`, filter.CategoryID, filter.limit())
	if err != nil {
		return nil, fmt.Errorf("query public resumes: %w", err)
	}
	defer rows.Close()

	var resumes []*models.Resume
	for rows.Next() {
		r, err := scanResume(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resume: %w", err)
		}
		resumes = append(resumes, r)
	}
	return resumes, rows.Err()
}

func (s *SQLStorage) CreateUser(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (phone, name, password_hash, role, telegram_chat_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		user.Phone, user.Name, user.PasswordHash, string(user.Role), user.TelegramChatID, user.CreatedAt.Unix(),
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *SQLStorage) LinkTelegram(ctx context.Context, userID, chatID int64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET telegram_chat_id = $1 WHERE id = $2`, chatID, userID)
	if err != nil {
		return fmt.Errorf("link telegram chat: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStorage) SaveResume(ctx context.Context, r *models.Resume) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	var postToChannel sql.NullBool
	if r.PostToChannel != nil {
		postToChannel = sql.NullBool{Bool: *r.PostToChannel, Valid: true}
	}
	skills := encodeList(r.Skills)

	if r.ID != 0 {
		_, err := s.db.ExecContext(ctx, `
			UPDATE resumes
			SET full_name = $1, title = $2, about = $3, category_id = $4, region_id = $5,
			    district_id = $6, region_slug = $7, salary_min = $8, experience = $9,
			    employment_type = $10, skills = $11, phone = $12, is_public = $13,
			    status = $14, post_to_channel = $15
			WHERE id = $16`,
			r.FullName, r.Title, r.About, r.CategoryID, r.RegionID, r.DistrictID, r.RegionSlug,
			r.SalaryMin, r.Experience, r.EmploymentType, skills, r.Phone, r.IsPublic, r.Status,
			postToChannel, r.ID)
		if err != nil {
			return fmt.Errorf("update resume: %w", err)
		}
		return nil
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO resumes (user_id, full_name, title, about, category_id, region_id, district_id,
			region_slug, salary_min, experience, employment_type, skills, phone, is_public, status,
			post_to_channel, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`,
		r.UserID, r.FullName, r.Title, r.About, r.CategoryID, r.RegionID, r.DistrictID, r.RegionSlug,
		r.SalaryMin, r.Experience, r.EmploymentType, skills, r.Phone, r.IsPublic, r.Status,
		postToChannel, r.CreatedAt.Unix(),
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("create resume: %w", err)
	}
	return nil
}

func (s *SQLStorage) SaveApplication(ctx context.Context, app *models.Application) error {
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_applications (user_id, job_id, resume_id, source, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, job_id) DO NOTHING`,
		app.UserID, app.JobID, app.ResumeID, app.Source, app.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("save application: %w", err)
	}
	return nil
}

// DB exposes the handle for seeding in tools and tests.
func (s *SQLStorage) DB() *sql.DB {
	return s.db
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}

func decodeList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}
