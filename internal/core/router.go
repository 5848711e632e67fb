package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/proto"
)

// Router delivers routed messages to online recipients. Misses are dropped silently.
type Router struct {
	registry      *Registry
	log           *zerolog.Logger
	enforceSender bool
}

// NewRouter creates a router over registry.
func NewRouter(registry *Registry, logger *zerolog.Logger) *Router {
	return &Router{registry: registry, log: logger}
}

// Route parses a `<receiver>;<sender>;<text>` line sent by from and delivers it.
// Malformed lines are discarded. The sender field is forwarded verbatim unless
// sender enforcement is on, in which case lines naming another login are discarded.
func (rt *Router) Route(ctx context.Context, from *Session, line string) bool {
	msg, ok := proto.ParseRoutedMessage(line)
	if !ok {
		rt.log.Debug().Str("session", from.ID()).Msg("discarding malformed message")
		return false
	}

	if user := from.User(); rt.enforceSender && (user == nil || user.Login != msg.Sender) {
		rt.log.Debug().
			Str("session", from.ID()).
			Str("claimed_sender", msg.Sender).
			Msg("discarding message with foreign sender")
		return false
	}

	return rt.Deliver(ctx, msg)
}

// Deliver writes msg to the receiver's session if it is online.
// The registry lock is released before the write.
func (rt *Router) Deliver(ctx context.Context, msg proto.RoutedMessage) bool {
	target := rt.registry.Lookup(msg.Receiver)
	if target == nil {
		return false
	}

	if err := target.Deliver(ctx, msg.Sender, msg.Text); err != nil {
		if !errors.Is(err, ErrSessionClosed) {
			rt.log.Debug().Err(err).Str("session", target.ID()).Msg("delivery failed")
		}
		return false
	}
	return true
}
