package core

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/auth"
	"github.com/vovakirdan/linechat-server/internal/store"
)

// Credentials verifies and creates users. Implemented by auth.Service.
type Credentials interface {
	Verify(ctx context.Context, login, password string) (*store.User, error)
	Create(ctx context.Context, reg auth.Registration) (*store.User, error)
	FindByLogin(ctx context.Context, login string) (*store.User, error)
}

// Friends records friend edges and answers mutual-friend queries.
// Implemented by friends.Service.
type Friends interface {
	MutualFriendIDs(ctx context.Context, userID int64) (map[int64]struct{}, error)
	AddDirectedEdge(ctx context.Context, fromID, toID int64) error
}

// Hub owns the presence registry and router and runs one Session per connection.
type Hub struct {
	registry *Registry
	router   *Router
	creds    Credentials
	friends  Friends
	log      *zerolog.Logger
}

// HubOption tunes a Hub at construction.
type HubOption func(*Hub)

// WithSenderCheck makes the router drop routed lines whose sender field
// differs from the sending session's login.
func WithSenderCheck(enabled bool) HubOption {
	return func(h *Hub) {
		h.router.enforceSender = enabled
	}
}

// NewHub creates a hub. A nil logger disables logging.
func NewHub(creds Credentials, friends Friends, policy DuplicatePolicy, logger *zerolog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	registry := NewRegistry(policy)
	h := &Hub{
		registry: registry,
		router:   NewRouter(registry, logger),
		creds:    creds,
		friends:  friends,
		log:      logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Registry exposes the presence registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Online returns a snapshot of the online users.
func (h *Hub) Online() []store.User {
	return h.registry.SnapshotOnline()
}

// Serve runs the protocol on conn until the client leaves, the connection fails,
// or ctx is cancelled. The connection is closed when Serve returns.
func (h *Hub) Serve(ctx context.Context, conn Conn) {
	s := newSession(h, conn)
	s.run(ctx)
}
