// Package bot is the conversation engine: it turns Telegram updates into
// replies, driving every chat through a persisted state machine.
package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/ishbor-bot/internal/logger"
	"github.com/xaenox/ishbor-bot/internal/matching"
	"github.com/xaenox/ishbor-bot/internal/models"
	"github.com/xaenox/ishbor-bot/internal/otp"
	"github.com/xaenox/ishbor-bot/internal/ranker"
	"github.com/xaenox/ishbor-bot/internal/storage"
	"github.com/xaenox/ishbor-bot/internal/telegram"
	"go.uber.org/zap"
)

const (
	defaultMaxLoginAttempts = 5
	defaultLockout          = 15 * time.Minute
	defaultSessionLockTTL   = 30 * time.Second
	defaultPageSize         = 5
	defaultOTPResend        = time.Minute
)

// Messenger is the part of the Bot API client the engine talks through.
type Messenger interface {
	SendMessage(ctx context.Context, to telegram.Recipient, text string, opts *telegram.MessageOptions) (*tgbotapi.Message, error)
	EditMessage(ctx context.Context, to telegram.Recipient, messageID int, text string, opts *telegram.MessageOptions) (*tgbotapi.Message, error)
	SendLocation(ctx context.Context, to telegram.Recipient, latitude, longitude float64) (*tgbotapi.Message, error)
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	DeleteMessage(ctx context.Context, to telegram.Recipient, messageID int) error
}

// Reranker adds an AI opinion to deterministic matches.
type Reranker interface {
	RerankForProfile(ctx context.Context, profile matching.Profile, results []matching.MatchResult, lang models.Language) map[int64]ranker.Rerank
}

// ChannelSyncer mirrors a listing into the public channels in the background.
type ChannelSyncer interface {
	SyncAsync(entityType models.EntityType, id int64)
}

type Config struct {
	MaxLoginAttempts  int
	LockoutDuration   time.Duration
	OTPTTL            time.Duration
	OTPMaxAttempts    int
	OTPResendInterval time.Duration
	SessionLockTTL    time.Duration
	PageSize          int
	SiteURL           string
}

func (c *Config) setDefaults() {
	if c.MaxLoginAttempts <= 0 {
		c.MaxLoginAttempts = defaultMaxLoginAttempts
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = defaultLockout
	}
	if c.OTPTTL <= 0 {
		c.OTPTTL = otp.TTL
	}
	if c.OTPMaxAttempts <= 0 {
		c.OTPMaxAttempts = otp.MaxAttempts
	}
	if c.OTPResendInterval <= 0 {
		c.OTPResendInterval = defaultOTPResend
	}
	if c.SessionLockTTL <= 0 {
		c.SessionLockTTL = defaultSessionLockTTL
	}
	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
}

// Deps are the collaborators of the engine. Ranker and Channels may be nil.
type Deps struct {
	Telegram Messenger
	Store    storage.Storage
	Locker   storage.Locker
	Lockouts storage.LockoutStore
	OTP      otp.Sender
	Ranker   Reranker
	Channels ChannelSyncer
}

type Engine struct {
	cfg      Config
	tg       Messenger
	store    storage.Storage
	locker   storage.Locker
	lockouts storage.LockoutStore
	otp      otp.Sender
	ranker   Reranker
	channels ChannelSyncer
	logger   *zap.Logger
	now      func() time.Time

	routes    map[route]handlerFunc
	commands  map[string]handlerFunc
	callbacks map[string]handlerFunc

	resumeWizard *wizard
	searchWizard *wizard
}

func NewEngine(cfg Config, deps Deps, log *zap.Logger) *Engine {
	cfg.setDefaults()
	if deps.Locker == nil {
		deps.Locker = storage.NewMutexLocker()
	}
	if deps.Lockouts == nil {
		deps.Lockouts = storage.NewMemoryLockoutStore()
	}
	if deps.OTP == nil {
		deps.OTP = otp.LogSender{Logger: log}
	}
	if deps.Ranker == nil {
		deps.Ranker = ranker.New(nil, log)
	}

	e := &Engine{
		cfg:      cfg,
		tg:       deps.Telegram,
		store:    deps.Store,
		locker:   deps.Locker,
		lockouts: deps.Lockouts,
		otp:      deps.OTP,
		ranker:   deps.Ranker,
		channels: deps.Channels,
		logger:   logger.WithFields(log),
		now:      time.Now,
	}
	e.resumeWizard = e.newResumeWizard()
	e.searchWizard = e.newSearchWizard()
	e.registerRoutes()
	return e
}

// HandleUpdate processes one update end to end: lock the chat, load the
// session, dispatch, and save the session with a version check. When a
// handler fails the user gets a generic error and the session is left as
// it was, so the same step can be retried.
func (e *Engine) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	in, ok := parseInput(update)
	if !ok {
		return nil
	}

	unlock, err := e.locker.Lock(ctx, "session:"+strconv.FormatInt(in.ChatID, 10), e.cfg.SessionLockTTL)
	if err != nil {
		return fmt.Errorf("lock chat %d: %w", in.ChatID, err)
	}
	defer unlock()

	sess, err := e.store.GetSession(ctx, in.ChatID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		sess = models.NewSession(in.ChatID, detectLanguage(in.LanguageCode))
		sess.State = string(StateIdle)
	case err != nil:
		return fmt.Errorf("load session %d: %w", in.ChatID, err)
	}

	state, err := ParseState(sess.State)
	if err != nil {
		e.logger.Warn("resetting unknown state",
			zap.Int64(logger.FieldChatID, in.ChatID), zap.String(logger.FieldState, sess.State))
		state = StateIdle
	}

	c := &convo{
		Engine: e,
		ctx:    ctx,
		in:     in,
		sess:   sess.Clone(),
		state:  state,
		log:    logger.ForChat(e.logger, in.ChatID, string(state)),
	}

	if err := c.run(); err != nil {
		c.log.Error("update handling failed", zap.Error(err))
		c.answerCallback("")
		c.replyPlain(tr(c.sess.Lang, "generic_error"))
		return nil
	}
	c.answerCallback("")

	c.sess.State = string(c.state)
	if err := e.store.SaveSession(ctx, c.sess); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			c.log.Warn("session changed concurrently, update dropped")
			return nil
		}
		return fmt.Errorf("save session %d: %w", in.ChatID, err)
	}
	return nil
}

// run dispatches with panic recovery.
func (c *convo) run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			c.log.Error("handler panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
	}()
	return c.dispatch()
}

// SetClock replaces the time source. Tests use it to move past lockouts.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}
