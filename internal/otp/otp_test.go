package otp

import (
	"bytes"
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGenerate(t *testing.T) {
	digits := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 50; i++ {
		code, err := Generate()
		require.NoError(t, err)
		assert.Regexp(t, digits, code)
	}
}

func TestGenerate_PadsLeadingZeros(t *testing.T) {
	code, err := generate(bytes.NewReader(make([]byte, 64)))
	require.NoError(t, err)
	assert.Equal(t, "000000", code)
}

func TestVerify(t *testing.T) {
	hash := Hash("+998901234567", "123456")

	assert.True(t, Verify(hash, "+998901234567", "123456"))
	assert.True(t, Verify(hash, "+998901234567", " 123456 "))
	assert.False(t, Verify(hash, "+998901234567", "123457"))
	assert.False(t, Verify(hash, "+998907654321", "123456"))
	assert.False(t, Verify("", "+998901234567", "123456"))
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "+998*******67", MaskPhone("+998901234567"))
	assert.Equal(t, "****", MaskPhone("1234"))
}

func TestLogSender(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	require.NoError(t, LogSender{Logger: zap.New(core)}.Send(context.Background(), "+998901234567", "654321"))
	require.NoError(t, LogSender{Logger: zap.New(core), Reveal: true}.Send(context.Background(), "+998901234567", "654321"))

	entries := observed.All()
	require.Len(t, entries, 2)
	assert.NotContains(t, entries[0].ContextMap(), "code")
	assert.Equal(t, "+998*******67", entries[0].ContextMap()["phone"])
	assert.Equal(t, "654321", entries[1].ContextMap()["code"])
}
