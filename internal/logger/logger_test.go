package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{name: "non-positive limit", input: "salom dunyo", limit: 0, expect: ""},
		{name: "shorter than limit", input: "salom", limit: 10, expect: "salom"},
		{name: "truncates", input: "salom dunyo", limit: 5, expect: "salom..."},
		{name: "counts runes", input: "привет мир", limit: 6, expect: "привет..."},
		{name: "trims whitespace", input: "  spaced  ", limit: 5, expect: "space..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expect, TruncateForLog(tt.input, tt.limit))
		})
	}
}

func TestNew(t *testing.T) {
	l, err := New(true, true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New(false, false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestForChat(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	ForChat(zap.New(core), 42, "Idle").Info("update handled")
	ForChat(nil, 1, "").Info("dropped")

	entries := observed.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, int64(42), ctx[FieldChatID])
	assert.Equal(t, "Idle", ctx[FieldState])
}

func TestWithAIFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithAIFields(zap.New(core), "  openai ", "").Info("rerank")

	ctx := observed.All()[0].ContextMap()
	assert.Equal(t, "openai", ctx[FieldProvider])
	_, hasModel := ctx[FieldModel]
	assert.False(t, hasModel)
}
