package bot

import (
	"sync"
	"testing"
)

func TestSessionStoreCreatesIdleSession(t *testing.T) {
	store := newSessionStore()

	sess := store.get(100)
	if sess == nil {
		t.Fatal("expected a session")
	}
	if sess.State != stateIdle {
		t.Fatalf("fresh session should be idle, got %q", sess.State)
	}

	// Same user gets the same session back.
	sess.State = stateAwaitDomain
	if again := store.get(100); again.State != stateAwaitDomain {
		t.Fatalf("expected persisted state, got %q", again.State)
	}
}

func TestSessionStoreIsolatesUsers(t *testing.T) {
	store := newSessionStore()

	a := store.get(1)
	a.State = stateAwaitRedirect
	a.Domain = "one.com"

	b := store.get(2)
	if b.State != stateIdle || b.Domain != "" {
		t.Fatalf("second user's session leaked state: %+v", b)
	}
}

func TestSessionStoreReset(t *testing.T) {
	store := newSessionStore()

	sess := store.get(7)
	sess.State = stateAwaitDeposit
	store.reset(7)

	if after := store.get(7); after.State != stateIdle {
		t.Fatalf("reset should discard state, got %q", after.State)
	}
}

func TestSessionStoreConcurrentAccess(t *testing.T) {
	store := newSessionStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			s := store.get(id % 5)
			store.set(id%5, s)
			store.reset(id % 5)
		}(int64(i))
	}
	wg.Wait()
}
