package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockoutStore(t *testing.T) {
	s := NewMemoryLockoutStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 1; i < 3; i++ {
		state, err := s.RecordFailure(ctx, "phone:1", now, 3, 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, state.FailedCount)
		assert.False(t, state.Locked(now))
	}

	state, err := s.RecordFailure(ctx, "phone:1", now, 3, 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, state.Locked(now))
	assert.False(t, state.Locked(now.Add(15*time.Minute)))

	got, err := s.Get(ctx, "phone:1")
	require.NoError(t, err)
	assert.Equal(t, state, got)

	other, err := s.Get(ctx, "phone:2")
	require.NoError(t, err)
	assert.Equal(t, LockoutState{}, other)

	require.NoError(t, s.Clear(ctx, "phone:1"))
	got, err = s.Get(ctx, "phone:1")
	require.NoError(t, err)
	assert.Equal(t, LockoutState{}, got)
}
