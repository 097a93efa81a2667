package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/ishbor-bot/internal/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingHandler struct {
	mu      sync.Mutex
	updates []tgbotapi.Update
	err     error
	panic   bool
}

func (h *recordingHandler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if h.panic {
		panic("boom")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, update)
	return h.err
}

type recordingSyncer struct {
	mu    sync.Mutex
	calls []string
}

func (s *recordingSyncer) SyncAsync(entityType models.EntityType, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, string(entityType)+":"+strconv.FormatInt(id, 10))
}

const sampleUpdate = `{"update_id":10,"message":{"message_id":1,"date":1700000000,"chat":{"id":555,"type":"private"},"from":{"id":555,"is_bot":false,"first_name":"Ali"},"text":"/start"}}`

func newTestServer(handler UpdateHandler, syncer ChannelSyncer, logger *zap.Logger) http.Handler {
	return New(Config{WebhookSecret: "hook-secret", InternalSecret: "internal-secret"}, handler, syncer, logger).Router()
}

func do(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := do(t, newTestServer(&recordingHandler{}, &recordingSyncer{}, nil), http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestWebhook(t *testing.T) {
	handler := &recordingHandler{}
	srv := newTestServer(handler, &recordingSyncer{}, nil)

	rec := do(t, srv, http.MethodPost, "/telegram/webhook", sampleUpdate, map[string]string{secretTokenHeader: "hook-secret"})
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, handler.updates, 1)
	assert.Equal(t, 10, handler.updates[0].UpdateID)
	assert.Equal(t, int64(555), handler.updates[0].Message.Chat.ID)
	assert.Equal(t, "/start", handler.updates[0].Message.Text)
}

func TestWebhook_RejectsWrongSecret(t *testing.T) {
	handler := &recordingHandler{}
	srv := newTestServer(handler, &recordingSyncer{}, nil)

	rec := do(t, srv, http.MethodPost, "/telegram/webhook", sampleUpdate, map[string]string{secretTokenHeader: "guess"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = do(t, srv, http.MethodPost, "/telegram/webhook", sampleUpdate, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, handler.updates)
}

func TestWebhook_AlwaysOK(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	handler := &recordingHandler{err: errors.New("store down")}
	srv := newTestServer(handler, &recordingSyncer{}, zap.New(core))
	headers := map[string]string{secretTokenHeader: "hook-secret"}

	rec := do(t, srv, http.MethodPost, "/telegram/webhook", "{not json", headers)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodPost, "/telegram/webhook", sampleUpdate, headers)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1, observed.FilterMessage("undecodable update").Len())
	assert.Equal(t, 1, observed.FilterMessage("update failed").Len())
}

func TestWebhook_PanicRecovered(t *testing.T) {
	core, observed := observer.New(zapcore.ErrorLevel)
	srv := newTestServer(&recordingHandler{panic: true}, &recordingSyncer{}, zap.New(core))

	rec := do(t, srv, http.MethodPost, "/telegram/webhook", sampleUpdate, map[string]string{secretTokenHeader: "hook-secret"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, observed.FilterMessage("panic recovered").Len())
}

func TestChannelSync(t *testing.T) {
	syncer := &recordingSyncer{}
	srv := newTestServer(&recordingHandler{}, syncer, nil)
	auth := map[string]string{"Authorization": "Bearer internal-secret"}

	rec := do(t, srv, http.MethodPost, "/internal/channel-sync/job/7", "", auth)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"status":"accepted","entity_type":"job","entity_id":7}`, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/internal/channel-sync/resume/3", "", auth)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	assert.Equal(t, []string{"job:7", "resume:3"}, syncer.calls)
}

func TestChannelSync_Rejects(t *testing.T) {
	syncer := &recordingSyncer{}
	srv := newTestServer(&recordingHandler{}, syncer, nil)
	auth := map[string]string{"Authorization": "Bearer internal-secret"}

	tests := []struct {
		name    string
		target  string
		headers map[string]string
		want    int
	}{
		{"no token", "/internal/channel-sync/job/1", nil, http.StatusUnauthorized},
		{"wrong token", "/internal/channel-sync/job/1", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"not bearer", "/internal/channel-sync/job/1", map[string]string{"Authorization": "internal-secret"}, http.StatusUnauthorized},
		{"bad type", "/internal/channel-sync/company/1", auth, http.StatusBadRequest},
		{"bad id", "/internal/channel-sync/job/abc", auth, http.StatusBadRequest},
		{"zero id", "/internal/channel-sync/job/0", auth, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, tt.target, "", tt.headers)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Empty(t, syncer.calls)
}

func TestChannelSync_DisabledWithoutSecret(t *testing.T) {
	syncer := &recordingSyncer{}
	srv := New(Config{}, &recordingHandler{}, syncer, nil).Router()

	rec := do(t, srv, http.MethodPost, "/internal/channel-sync/job/1", "", map[string]string{"Authorization": "Bearer "})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, syncer.calls)
}
