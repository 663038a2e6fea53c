package services

import "sync"

// keyLock serializes work per key. Waiters on one key are admitted in arrival order
// (blocked channel senders are queued FIFO by the runtime).
type keyLock struct {
	mu    sync.Mutex
	slots map[string]*keySlot
}

type keySlot struct {
	ch   chan struct{}
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{slots: make(map[string]*keySlot)}
}

func (l *keyLock) Lock(key string) (unlock func()) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &keySlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	slot.ch <- struct{}{}

	return func() {
		<-slot.ch
		l.mu.Lock()
		slot.refs--
		if slot.refs == 0 {
			delete(l.slots, key)
		}
		l.mu.Unlock()
	}
}
