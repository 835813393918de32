package keylock_test

import (
	"sync"
	"testing"
	"time"

	"github.com/edgard/keywatch/internal/keylock"
)

func TestLock_SerializesSameKey(t *testing.T) {
	t.Parallel()

	m := keylock.New[int64]()
	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock(42)
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxSeen)
	}
	if n := m.Len(); n != 0 {
		t.Errorf("Len() = %d after all unlocks, want 0", n)
	}
}

func TestLock_DistinctKeysIndependent(t *testing.T) {
	t.Parallel()

	m := keylock.New[string]()
	unlockA := m.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := m.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Lock(b) blocked while only a was held")
	}
}

func TestLock_UnlockIdempotent(t *testing.T) {
	t.Parallel()

	m := keylock.New[int]()
	unlock := m.Lock(1)
	unlock()
	unlock()

	if n := m.Len(); n != 0 {
		t.Errorf("Len() = %d, want 0", n)
	}

	unlock = m.Lock(1)
	unlock()
}
