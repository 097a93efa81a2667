// Package events turns marketplace publish events into channel syncs.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xaenox/ishbor-bot/internal/channel"
	"github.com/xaenox/ishbor-bot/internal/models"
	"go.uber.org/zap"
)

const (
	defaultInterval  = 2 * time.Second
	defaultBatchSize = 50
)

type Message struct {
	Topic   string
	Key     string
	Payload []byte
}

type Consumer interface {
	Poll(ctx context.Context, max int) ([]Message, error)
}

// Syncer is the channel sync entry point the worker drives.
type Syncer interface {
	SyncByID(ctx context.Context, entityType models.EntityType, id int64) (channel.Outcome, error)
}

// Published is the payload of an entity publish event.
type Published struct {
	EntityType models.EntityType `json:"entity_type"`
	EntityID   int64             `json:"entity_id"`
}

func (p Published) validate() error {
	if p.EntityType != models.EntityJob && p.EntityType != models.EntityResume {
		return fmt.Errorf("unknown entity type %q", p.EntityType)
	}
	if p.EntityID <= 0 {
		return fmt.Errorf("invalid entity id %d", p.EntityID)
	}
	return nil
}

type Worker struct {
	consumer    Consumer
	syncer      Syncer
	interval    time.Duration
	syncTimeout time.Duration
	logger      *zap.Logger
}

func NewWorker(consumer Consumer, syncer Syncer, interval, syncTimeout time.Duration, logger *zap.Logger) *Worker {
	if interval <= 0 {
		interval = defaultInterval
	}
	if syncTimeout <= 0 {
		syncTimeout = channel.DefaultSyncTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		consumer:    consumer,
		syncer:      syncer,
		interval:    interval,
		syncTimeout: syncTimeout,
		logger:      logger,
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.processOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("event poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Worker) processOnce(ctx context.Context) error {
	msgs, err := w.consumer.Poll(ctx, defaultBatchSize)
	for _, msg := range msgs {
		w.handle(ctx, msg)
	}
	return err
}

func (w *Worker) handle(ctx context.Context, msg Message) {
	var event Published
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		w.logger.Warn("undecodable publish event",
			zap.String("topic", msg.Topic), zap.String("key", msg.Key), zap.Error(err))
		return
	}
	if err := event.validate(); err != nil {
		w.logger.Warn("invalid publish event", zap.String("topic", msg.Topic), zap.Error(err))
		return
	}

	syncCtx, cancel := context.WithTimeout(ctx, w.syncTimeout)
	defer cancel()

	outcome, err := w.syncer.SyncByID(syncCtx, event.EntityType, event.EntityID)
	if err != nil {
		w.logger.Warn("channel sync from event failed",
			zap.String("entity_type", string(event.EntityType)),
			zap.Int64("entity_id", event.EntityID),
			zap.Error(err))
		return
	}
	w.logger.Debug("channel sync from event",
		zap.String("entity_type", string(event.EntityType)),
		zap.Int64("entity_id", event.EntityID),
		zap.String("outcome", string(outcome)))
}
