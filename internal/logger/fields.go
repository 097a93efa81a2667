package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	FieldChatID   = "chat_id"
	FieldState    = "state"
	FieldProvider = "ai_provider"
	FieldModel    = "ai_model"
)

// WithFields attaches fields to the logger, defaulting to a no-op logger
// when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// ForChat scopes a logger to one conversation.
func ForChat(logger *zap.Logger, chatID int64, state string) *zap.Logger {
	fields := []zap.Field{zap.Int64(FieldChatID, chatID)}
	if state != "" {
		fields = append(fields, zap.String(FieldState, state))
	}
	return WithFields(logger, fields...)
}

// WithAIFields attaches the provider and model, skipping empty values.
func WithAIFields(logger *zap.Logger, provider, model string) *zap.Logger {
	var fields []zap.Field
	if p := strings.TrimSpace(provider); p != "" {
		fields = append(fields, zap.String(FieldProvider, p))
	}
	if m := strings.TrimSpace(model); m != "" {
		fields = append(fields, zap.String(FieldModel, m))
	}
	return WithFields(logger, fields...)
}
