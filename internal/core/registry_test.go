package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/vovakirdan/linechat-server/internal/proto"
	"github.com/vovakirdan/linechat-server/internal/store"
)

func authedSession(h *Hub, id int64, login string) *Session {
	s := newSession(h, newPipeConn("test"))
	s.user.Store(&store.User{ID: id, Login: login, Username: login})
	s.state.Store(int32(StateAuthenticated))
	return s
}

func TestRegistryRegisterRequiresUser(t *testing.T) {
	h := NewHub(nil, nil, DuplicateReject, nil)
	s := newSession(h, newPipeConn("test"))

	if _, err := h.Registry().Register(s); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestRegistryUnregisterIsIdempotent(t *testing.T) {
	h := NewHub(nil, nil, DuplicateReject, nil)
	r := h.Registry()
	s := authedSession(h, 1, "alice")

	r.Unregister(s)
	if _, err := r.Register(s); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.Unregister(s)
	r.Unregister(s)

	if r.Count() != 0 || r.Lookup("alice") != nil {
		t.Fatalf("expected empty registry")
	}
}

func TestRegistryRejectsClosedSession(t *testing.T) {
	h := NewHub(nil, nil, DuplicateReject, nil)
	s := authedSession(h, 1, "alice")
	s.close()

	if _, err := h.Registry().Register(s); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestRegistryDuplicatePolicies(t *testing.T) {
	h := NewHub(nil, nil, DuplicateReject, nil)
	first := authedSession(h, 1, "alice")
	second := authedSession(h, 1, "alice")

	reject := NewRegistry(DuplicateReject)
	if _, err := reject.Register(first); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := reject.Register(second); !errors.Is(err, ErrAlreadyOnline) {
		t.Fatalf("expected ErrAlreadyOnline, got %v", err)
	}
	if reject.Lookup("alice") != first {
		t.Fatalf("first session must stay registered")
	}

	replace := NewRegistry(DuplicateReplace)
	if _, err := replace.Register(first); err != nil {
		t.Fatalf("register: %v", err)
	}
	evicted, err := replace.Register(second)
	if err != nil || evicted != first {
		t.Fatalf("expected first to be evicted, got %v, %v", evicted, err)
	}
	replace.Unregister(first)
	if replace.Lookup("alice") != second {
		t.Fatalf("unregistering the evicted session removed its replacement")
	}
}

func TestRegistrySnapshotIsSortedCopy(t *testing.T) {
	h := NewHub(nil, nil, DuplicateReject, nil)
	r := h.Registry()
	for i, login := range []string{"carol", "alice", "bob"} {
		if _, err := r.Register(authedSession(h, int64(i+1), login)); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	snap := r.SnapshotOnline()
	if len(snap) != 3 || snap[0].Login != "alice" || snap[1].Login != "bob" || snap[2].Login != "carol" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	snap[0].Login = "mutated"
	if r.Lookup("alice") == nil || r.Lookup("alice").User().Login != "alice" {
		t.Fatalf("snapshot must not alias registry state")
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	h := NewHub(nil, nil, DuplicateReject, nil)
	r := h.Registry()
	router := NewRouter(r, h.log)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := authedSession(h, int64(i), fmt.Sprintf("u%d", i))
			if _, err := r.Register(s); err != nil {
				t.Errorf("register: %v", err)
				return
			}
			_ = r.SnapshotOnline()
			router.Deliver(context.Background(), proto.RoutedMessage{Receiver: fmt.Sprintf("u%d", (i+1)%50), Sender: "x", Text: "y"})
			if i%2 == 0 {
				r.Unregister(s)
			}
		}(i)
	}
	wg.Wait()

	if r.Count() != 25 {
		t.Fatalf("expected 25 sessions, got %d", r.Count())
	}
}

func TestParseDuplicatePolicy(t *testing.T) {
	for in, want := range map[string]DuplicatePolicy{"": DuplicateReject, "reject": DuplicateReject, "REPLACE": DuplicateReplace} {
		got, err := ParseDuplicatePolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParseDuplicatePolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseDuplicatePolicy("first-wins"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
