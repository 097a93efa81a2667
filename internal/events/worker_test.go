package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/ishbor-bot/internal/channel"
	"github.com/xaenox/ishbor-bot/internal/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type batchConsumer struct {
	mu      sync.Mutex
	batches [][]Message
	err     error
}

func (c *batchConsumer) Poll(ctx context.Context, max int) ([]Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.batches) == 0 {
		return nil, c.err
	}
	next := c.batches[0]
	c.batches = c.batches[1:]
	return next, nil
}

type syncCall struct {
	entityType models.EntityType
	id         int64
}

type recordingSyncer struct {
	mu    sync.Mutex
	calls []syncCall
	err   error
}

func (s *recordingSyncer) SyncByID(ctx context.Context, entityType models.EntityType, id int64) (channel.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, syncCall{entityType, id})
	if _, ok := ctx.Deadline(); !ok {
		return "", errors.New("sync without deadline")
	}
	return channel.OutcomePosted, s.err
}

func (s *recordingSyncer) Calls() []syncCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]syncCall(nil), s.calls...)
}

func TestWorker_ProcessOnce(t *testing.T) {
	consumer := &batchConsumer{batches: [][]Message{{
		{Topic: DefaultTopic, Payload: []byte(`{"entity_type":"job","entity_id":42}`)},
		{Topic: DefaultTopic, Payload: []byte(`{"entity_type":"resume","entity_id":7}`)},
		{Topic: DefaultTopic, Payload: []byte(`{"entity_type":"company","entity_id":1}`)},
		{Topic: DefaultTopic, Payload: []byte(`{"entity_type":"job","entity_id":0}`)},
		{Topic: DefaultTopic, Payload: []byte(`not json`)},
	}}}
	syncer := &recordingSyncer{}
	core, observed := observer.New(zapcore.WarnLevel)

	w := NewWorker(consumer, syncer, time.Millisecond, time.Second, zap.New(core))
	require.NoError(t, w.processOnce(context.Background()))

	assert.Equal(t, []syncCall{{models.EntityJob, 42}, {models.EntityResume, 7}}, syncer.Calls())
	assert.Equal(t, 3, observed.Len())
}

func TestWorker_SyncFailureIsLogged(t *testing.T) {
	consumer := &batchConsumer{batches: [][]Message{{
		{Topic: DefaultTopic, Payload: []byte(`{"entity_type":"job","entity_id":1}`)},
		{Topic: DefaultTopic, Payload: []byte(`{"entity_type":"job","entity_id":2}`)},
	}}}
	syncer := &recordingSyncer{err: errors.New("telegram down")}
	core, observed := observer.New(zapcore.WarnLevel)

	w := NewWorker(consumer, syncer, time.Millisecond, time.Second, zap.New(core))
	require.NoError(t, w.processOnce(context.Background()))

	assert.Len(t, syncer.Calls(), 2)
	assert.Equal(t, 2, observed.FilterMessage("channel sync from event failed").Len())
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	consumer := &batchConsumer{batches: [][]Message{
		{{Topic: DefaultTopic, Payload: []byte(`{"entity_type":"job","entity_id":1}`)}},
		{{Topic: DefaultTopic, Payload: []byte(`{"entity_type":"job","entity_id":2}`)}},
	}}
	syncer := &recordingSyncer{}
	w := NewWorker(consumer, syncer, time.Millisecond, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(syncer.Calls()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestNewKafkaConsumer_Validates(t *testing.T) {
	_, err := NewKafkaConsumer(nil, "group", []string{DefaultTopic})
	assert.Error(t, err)
	_, err = NewKafkaConsumer([]string{"localhost:9092"}, "", []string{DefaultTopic})
	assert.Error(t, err)
	_, err = NewKafkaConsumer([]string{"localhost:9092"}, "group", nil)
	assert.Error(t, err)
}
