package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/vovakirdan/linechat-server/internal/store"
)

// DuplicatePolicy decides what happens when a login that is already online authenticates again.
type DuplicatePolicy int

const (
	// DuplicateReject refuses the second session and keeps the first.
	DuplicateReject DuplicatePolicy = iota
	// DuplicateReplace evicts the first session in favor of the second.
	DuplicateReplace
)

// ParseDuplicatePolicy maps a config value to a policy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return DuplicateReject, nil
	case "replace":
		return DuplicateReplace, nil
	default:
		return DuplicateReject, fmt.Errorf("unknown duplicate login policy %q", s)
	}
}

func (p DuplicatePolicy) String() string {
	if p == DuplicateReplace {
		return "replace"
	}
	return "reject"
}

// Registry maps online logins to their sessions.
// Register, Unregister, Lookup and SnapshotOnline share one lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	policy   DuplicatePolicy
}

// NewRegistry creates an empty registry.
func NewRegistry(policy DuplicatePolicy) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		policy:   policy,
	}
}

// Register adds an authenticated session under its login. Under DuplicateReplace the
// previously registered session, if any, is returned so the caller can close it.
func (r *Registry) Register(s *Session) (evicted *Session, err error) {
	user := s.User()
	if user == nil {
		return nil, ErrNotAuthenticated
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// close marks the state before it unregisters, so a session closed
	// concurrently with its login is either seen here or removed afterwards.
	if s.State() == StateClosed {
		return nil, ErrSessionClosed
	}

	if existing, ok := r.sessions[user.Login]; ok && existing != s {
		if r.policy == DuplicateReject {
			return nil, ErrAlreadyOnline
		}
		evicted = existing
	}
	r.sessions[user.Login] = s
	return evicted, nil
}

// Unregister removes s. It is a no-op if s is absent or has been replaced.
func (r *Registry) Unregister(s *Session) {
	user := s.User()
	if user == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sessions[user.Login]; ok && current == s {
		delete(r.sessions, user.Login)
	}
}

// Lookup returns the session for login, or nil.
func (r *Registry) Lookup(login string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[login]
}

// SnapshotOnline returns a copy of the online users ordered by login.
func (r *Registry) SnapshotOnline() []store.User {
	r.mu.RLock()
	users := make([]store.User, 0, len(r.sessions))
	for _, s := range r.sessions {
		users = append(users, *s.User())
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].Login < users[j].Login })
	return users
}

// Count returns the number of online sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
