package chat

import "sync"

// lockTable hands out per-room mutexes and reclaims an entry once its last
// holder releases, so the table tracks only rooms with an operation in
// flight rather than every room ever touched.
type lockTable struct {
	mu      sync.Mutex
	entries map[string]*roomLock
}

type roomLock struct {
	sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[string]*roomLock)}
}

// acquire blocks until the caller holds the room's mutex. The returned
// lock must be handed back through release with the same room.
func (t *lockTable) acquire(room string) *roomLock {
	t.mu.Lock()
	l := t.entries[room]
	if l == nil {
		l = &roomLock{}
		t.entries[room] = l
	}
	l.refs++
	t.mu.Unlock()

	l.Lock()
	return l
}

func (t *lockTable) release(room string, l *roomLock) {
	l.Unlock()

	t.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(t.entries, room)
	}
	t.mu.Unlock()
}
