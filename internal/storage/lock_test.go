package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutexLocker_SerializesSameKey(t *testing.T) {
	l := NewMutexLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "chat:1", time.Second)
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, l.slots)
}

func TestMutexLocker_ContextExpires(t *testing.T) {
	l := NewMutexLocker()

	unlock, err := l.Lock(context.Background(), "chat:2", time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "chat:2", time.Second)
	assert.ErrorIs(t, err, ErrLocked)

	unlock()
	unlock() // second call is a no-op

	other, err := l.Lock(context.Background(), "chat:2", time.Second)
	require.NoError(t, err)
	other()
}

func TestMutexLocker_IndependentKeys(t *testing.T) {
	l := NewMutexLocker()
	a, err := l.Lock(context.Background(), "a", time.Second)
	require.NoError(t, err)
	defer a()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	b, err := l.Lock(ctx, "b", time.Second)
	require.NoError(t, err)
	b()
}
