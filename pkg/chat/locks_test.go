package chat

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/atultiwari1305/coon/pkg/store"
)

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func TestLockTableReclaimsIdleEntries(t *testing.T) {
	tbl := newLockTable()
	for i := 0; i < 50; i++ {
		room := fmt.Sprintf("room%d", i)
		l := tbl.acquire(room)
		tbl.release(room, l)
	}
	if n := tbl.size(); n != 0 {
		t.Fatalf("expected empty table after release, %d entries remain", n)
	}
}

func TestLockTableMutualExclusion(t *testing.T) {
	tbl := newLockTable()
	var inside int32
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				l := tbl.acquire("general")
				if n := atomic.AddInt32(&inside, 1); n != 1 {
					t.Errorf("%d holders inside the critical section", n)
				}
				atomic.AddInt32(&inside, -1)
				tbl.release("general", l)
			}
		}()
	}
	wg.Wait()
	if n := tbl.size(); n != 0 {
		t.Fatalf("expected empty table after contention, %d entries remain", n)
	}
}

func TestServiceLocksDoNotAccumulate(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		room := fmt.Sprintf("room%d", i)
		if _, err := f.svc.SendMessage(ctx, room, "alice", "x", time.Now()); err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
		if err := f.svc.JoinRoom(ctx, room, newFakeConn(fmt.Sprintf("c%d", i))); err != nil {
			t.Fatalf("JoinRoom: %v", err)
		}
	}

	if n := f.svc.locks.size(); n != 0 {
		t.Fatalf("lock table should be empty when no operation is in flight, %d entries remain", n)
	}
}
