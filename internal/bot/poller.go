package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	defaultPollTimeout = 8 // seconds
	defaultPollWorkers = 16
	defaultPollHandler = 25 * time.Second
	pollBackoff        = time.Second
)

// UpdateSource is the getUpdates side of the Bot API.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset, timeout int) ([]tgbotapi.Update, error)
}

// UpdateHandler consumes one update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

// Poller feeds long-polled updates to a handler. It is the alternative to
// the webhook for local runs without a public URL. Updates are handled
// concurrently; the engine serializes work per chat.
type Poller struct {
	source         UpdateSource
	handler        UpdateHandler
	timeout        int
	workers        int
	handlerTimeout time.Duration
	logger         *zap.Logger
}

type PollerOption func(*Poller)

// WithHandlerTimeout bounds the handling of a single update.
func WithHandlerTimeout(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.handlerTimeout = d
		}
	}
}

func NewPoller(source UpdateSource, handler UpdateHandler, logger *zap.Logger, opts ...PollerOption) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Poller{
		source:         source,
		handler:        handler,
		timeout:        defaultPollTimeout,
		workers:        defaultPollWorkers,
		handlerTimeout: defaultPollHandler,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is cancelled and waits for in-flight updates.
func (p *Poller) Run(ctx context.Context) error {
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	defer wg.Wait()

	offset := 0
	p.logger.Info("long polling started")
	for {
		updates, err := p.source.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("getUpdates failed", zap.Error(err))
		}
		for _, update := range updates {
			offset = max(offset, update.UpdateID+1)
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return nil
			}
			wg.Add(1)
			go func(update tgbotapi.Update) {
				defer wg.Done()
				defer func() { <-sem }()
				p.handle(ctx, update)
			}(update)
		}
		if len(updates) == 0 || err != nil {
			select {
			case <-time.After(pollBackoff):
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (p *Poller) handle(ctx context.Context, update tgbotapi.Update) {
	// Finish the update even when shutdown begins mid-way, within the
	// same bound a webhook request gets.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.handlerTimeout)
	defer cancel()
	if err := p.handler.HandleUpdate(ctx, update); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("failed to handle update", zap.Int("update_id", update.UpdateID), zap.Error(err))
	}
}
