package core

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/auth"
	"github.com/vovakirdan/linechat-server/internal/proto"
	"github.com/vovakirdan/linechat-server/internal/store"
)

// State is a session's position in the protocol.
type State int32

const (
	StateConnected State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the server side of one client connection.
type Session struct {
	id    string
	conn  Conn
	hub   *Hub
	log   zerolog.Logger
	state atomic.Int32

	// user is set once before the session is registered and never changed.
	user atomic.Pointer[store.User]
	// friendIDs is only touched by the session goroutine.
	friendIDs map[int64]struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newSession(h *Hub, conn Conn) *Session {
	id := uuid.NewString()
	return &Session{
		id:   id,
		conn: conn,
		hub:  h,
		log: h.log.With().
			Str("session", id).
			Str("remote", conn.RemoteAddr()).
			Logger(),
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// User returns the authenticated user, or nil before login.
func (s *Session) User() *store.User {
	return s.user.Load()
}

// State returns the current protocol state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Deliver writes a routed message to this session's client.
func (s *Session) Deliver(ctx context.Context, sender, text string) error {
	return s.writeLines(ctx, proto.FormatDelivery(sender, text))
}

func (s *Session) run(ctx context.Context) {
	defer s.close()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("session panicked")
		}
	}()

	stop := context.AfterFunc(ctx, s.close)
	defer stop()

	s.log.Debug().Msg("connection accepted")

	if !s.authenticate(ctx) {
		return
	}
	s.serveCommands(ctx)
}

// authenticate handles the single login or register attempt of the connection.
func (s *Session) authenticate(ctx context.Context) bool {
	if err := s.writeLines(ctx, proto.Greeting); err != nil {
		return false
	}

	line, err := s.conn.ReadLine(ctx)
	if err != nil {
		s.logReadError(err)
		return false
	}

	req, err := proto.ParseAuthLine(line)
	if err != nil {
		var fe *proto.FailureError
		if errors.As(err, &fe) {
			s.log.Info().Int("code", int(fe.Code)).Str("reason", fe.Reason).Msg("rejecting first line")
			s.reject(ctx, fe.Code)
		}
		return false
	}

	user, code := s.resolveUser(ctx, req)
	if user == nil {
		s.reject(ctx, code)
		return false
	}

	friendIDs, err := s.hub.friends.MutualFriendIDs(ctx, user.ID)
	if err != nil {
		friendIDs = map[int64]struct{}{}
	}
	s.friendIDs = friendIDs
	s.user.Store(user)

	// Registration and the Login Ok reply happen under the write lock so no delivery
	// can reach the client ahead of the reply.
	s.writeMu.Lock()
	evicted, err := s.hub.registry.Register(s)
	if err != nil {
		s.writeMu.Unlock()
		if errors.Is(err, ErrAlreadyOnline) {
			s.log.Info().Str("login", user.Login).Msg("login refused: already online")
			s.reject(ctx, proto.FailAlreadyOnline)
		}
		return false
	}
	if !s.state.CompareAndSwap(int32(StateConnected), int32(StateAuthenticated)) {
		s.writeMu.Unlock()
		return false
	}
	err = s.conn.WriteLine(ctx, proto.LoginOK)
	s.writeMu.Unlock()

	if evicted != nil {
		evicted.log.Info().Str("login", user.Login).Str("replaced_by", s.id).Msg("session replaced by new login")
		evicted.close()
	}
	if err != nil {
		s.log.Debug().Err(err).Msg("write login reply failed")
		return false
	}

	s.log.Info().
		Str("login", user.Login).
		Int64("user_id", user.ID).
		Int("online", s.hub.registry.Count()).
		Msg("user online")
	return true
}

func (s *Session) resolveUser(ctx context.Context, req proto.AuthRequest) (*store.User, proto.FailureCode) {
	switch req.Kind {
	case proto.AuthRegister:
		user, err := s.hub.creds.Create(ctx, auth.Registration{
			Login:    req.Login,
			Password: req.Password,
			Username: req.Username,
			Birthday: req.Birthday,
			City:     req.City,
		})
		if err != nil {
			s.log.Info().Err(err).Str("login", req.Login).Msg("registration failed")
			if errors.Is(err, auth.ErrInvalidLogin) || errors.Is(err, auth.ErrInvalidPassword) {
				return nil, proto.FailMalformedRegister
			}
			return nil, proto.FailRegisterRefused
		}
		return user, 0
	default:
		user, err := s.hub.creds.Verify(ctx, req.Login, req.Password)
		if err != nil {
			s.log.Info().Err(err).Str("login", req.Login).Msg("login failed")
			return nil, proto.FailBadCredentials
		}
		return user, 0
	}
}

func (s *Session) reject(ctx context.Context, code proto.FailureCode) {
	_ = s.writeLines(ctx, proto.LoginFailed(code))
}

func (s *Session) serveCommands(ctx context.Context) {
	for {
		line, err := s.conn.ReadLine(ctx)
		if err != nil {
			s.logReadError(err)
			return
		}

		cmd := proto.ParseCommand(line)
		switch cmd.Kind {
		case proto.CommandOnlineFriends:
			if err := s.sendOnlineFriends(ctx); err != nil {
				return
			}
		case proto.CommandAddFriend:
			s.addFriend(ctx, cmd.Arg)
		case proto.CommandExit:
			s.log.Debug().Msg("client exit")
			return
		default:
			s.hub.router.Route(ctx, s, cmd.Arg)
		}
	}
}

func (s *Session) sendOnlineFriends(ctx context.Context) error {
	if ids, err := s.hub.friends.MutualFriendIDs(ctx, s.User().ID); err == nil {
		s.friendIDs = ids
	}

	lines := []string{proto.FriendsMarker}
	for _, u := range s.hub.registry.SnapshotOnline() {
		if _, ok := s.friendIDs[u.ID]; ok {
			lines = append(lines, proto.FormatFriend(u.ID, u.Username, u.Login))
		}
	}
	lines = append(lines, proto.FriendsMarker)

	return s.writeLines(ctx, lines...)
}

func (s *Session) addFriend(ctx context.Context, login string) {
	target, err := s.hub.creds.FindByLogin(ctx, login)
	if err != nil {
		s.log.Debug().Err(err).Str("target", login).Msg("add friend: target not resolved")
		return
	}

	if err := s.hub.friends.AddDirectedEdge(ctx, s.User().ID, target.ID); err != nil {
		s.log.Debug().Err(err).Str("target", login).Msg("add friend failed")
		return
	}
	s.log.Info().Str("target", login).Msg("friend added")
}

// writeLines writes lines as one uninterrupted block.
func (s *Session) writeLines(ctx context.Context, lines ...string) error {
	s.writeMu.Lock()
	err := s.writeLocked(ctx, lines)
	s.writeMu.Unlock()

	if err != nil && !errors.Is(err, ErrSessionClosed) {
		s.log.Debug().Err(err).Msg("write failed, closing session")
		s.close()
	}
	return err
}

func (s *Session) writeLocked(ctx context.Context, lines []string) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	for _, line := range lines {
		if err := s.conn.WriteLine(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

// close tears the session down exactly once: the connection is closed and
// the session leaves the registry.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		prev := State(s.state.Swap(int32(StateClosed)))
		if err := s.conn.Close(); err != nil && !isClosedConnErr(err) {
			s.log.Debug().Err(err).Msg("close connection")
		}
		s.hub.registry.Unregister(s)
		if prev == StateAuthenticated {
			s.log.Info().
				Str("login", s.User().Login).
				Int("online", s.hub.registry.Count()).
				Msg("user offline")
		} else {
			s.log.Debug().Msg("connection closed")
		}
	})
}

func (s *Session) logReadError(err error) {
	if errors.Is(err, io.EOF) || isClosedConnErr(err) || s.State() == StateClosed {
		s.log.Debug().Err(err).Msg("connection ended")
		return
	}
	s.log.Warn().Err(err).Msg("read failed")
}

func isClosedConnErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, context.Canceled)
}
