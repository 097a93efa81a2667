package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MutexLocker is an in-process Locker. It is enough when a single bot
// process serves the webhook.
type MutexLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func NewMutexLocker() *MutexLocker {
	return &MutexLocker{slots: make(map[string]*lockSlot)}
}

// Lock waits for the key until ctx is done. ttl is ignored: an in-process
// holder cannot disappear without releasing.
func (l *MutexLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, slot, false)
		return nil, fmt.Errorf("%w: %s: %v", ErrLocked, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, slot, true) })
	}, nil
}

func (l *MutexLocker) release(key string, slot *lockSlot, held bool) {
	if held {
		<-slot.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}
