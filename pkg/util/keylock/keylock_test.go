package keylock

import (
	"sync"
	"testing"
	"time"
)

func TestSameKeySerializes(t *testing.T) {
	l := New()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("C1")
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
		t.Fatalf("critical section entered concurrently: %d", maxSeen)
	}
	if l.Len() != 0 {
		t.Fatalf("idle keys not released: %d", l.Len())
	}
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	l := New()
	unlockA := l.Lock("A")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := l.Lock("B")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on B blocked by A")
	}
}

func TestUnlockIsIdempotent(t *testing.T) {
	l := New()
	unlock := l.Lock("K")
	unlock()
	unlock()
	if l.Len() != 0 {
		t.Fatalf("len = %d", l.Len())
	}
}
