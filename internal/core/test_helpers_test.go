package core

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/linechat-server/internal/auth"
	"github.com/vovakirdan/linechat-server/internal/store"
)

// pipeConn is an in-memory Conn. The test plays the client through send/expect.
type pipeConn struct {
	in     chan string
	out    chan string
	closed chan struct{}
	once   sync.Once
	addr   string
}

func newPipeConn(addr string) *pipeConn {
	return &pipeConn{
		in:     make(chan string),
		out:    make(chan string, 64),
		closed: make(chan struct{}),
		addr:   addr,
	}
}

func (c *pipeConn) ReadLine(ctx context.Context) (string, error) {
	select {
	case line, ok := <-c.in:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-c.closed:
		return "", net.ErrClosed
	}
}

func (c *pipeConn) WriteLine(ctx context.Context, line string) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	select {
	case c.out <- line:
		return nil
	case <-c.closed:
		return net.ErrClosed
	}
}

func (c *pipeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *pipeConn) RemoteAddr() string { return c.addr }

func (c *pipeConn) send(t *testing.T, line string) {
	t.Helper()
	select {
	case c.in <- line:
	case <-c.closed:
		t.Fatalf("send %q: connection closed", line)
	case <-time.After(2 * time.Second):
		t.Fatalf("send %q: timed out", line)
	}
}

func (c *pipeConn) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-c.out:
		if got != want {
			t.Fatalf("expected line %q, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected line %q not received", want)
	}
}

func (c *pipeConn) expectNothing(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case got := <-c.out:
		t.Fatalf("unexpected line %q", got)
	case <-time.After(wait):
	}
}

func (c *pipeConn) expectClosed(t *testing.T) {
	t.Helper()
	select {
	case <-c.closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("connection was not closed")
	}
}

// memCredentials is an in-memory credential store.
type memCredentials struct {
	mu        sync.Mutex
	nextID    int64
	users     map[string]*store.User
	passwords map[string]string
}

func newMemCredentials() *memCredentials {
	return &memCredentials{
		users:     make(map[string]*store.User),
		passwords: make(map[string]string),
	}
}

func (m *memCredentials) Verify(_ context.Context, login, password string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[login]
	if !ok || m.passwords[login] != password {
		return nil, auth.ErrInvalidCredentials
	}
	copied := *u
	return &copied, nil
}

func (m *memCredentials) Create(_ context.Context, reg auth.Registration) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reg.Login == "" {
		return nil, auth.ErrInvalidLogin
	}
	if _, ok := m.users[reg.Login]; ok {
		return nil, auth.ErrUserExists
	}
	m.nextID++
	u := &store.User{
		ID:       m.nextID,
		Login:    reg.Login,
		Username: reg.Username,
		Birthday: reg.Birthday,
		City:     reg.City,
	}
	m.users[reg.Login] = u
	m.passwords[reg.Login] = reg.Password
	copied := *u
	return &copied, nil
}

func (m *memCredentials) FindByLogin(_ context.Context, login string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[login]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memCredentials) add(t *testing.T, login, password string) *store.User {
	t.Helper()
	u, err := m.Create(context.Background(), auth.Registration{Login: login, Password: password, Username: login + "-name"})
	if err != nil {
		t.Fatalf("create %s: %v", login, err)
	}
	return u
}

// memFriends is an in-memory friend store.
type memFriends struct {
	mu    sync.Mutex
	edges map[[2]int64]struct{}
	fail  bool
}

func newMemFriends() *memFriends {
	return &memFriends{edges: make(map[[2]int64]struct{})}
}

var errStoreDown = errors.New("store down")

func (m *memFriends) MutualFriendIDs(_ context.Context, userID int64) (map[int64]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errStoreDown
	}
	ids := make(map[int64]struct{})
	for e := range m.edges {
		if e[0] != userID {
			continue
		}
		if _, ok := m.edges[[2]int64{e[1], e[0]}]; ok {
			ids[e[1]] = struct{}{}
		}
	}
	return ids, nil
}

func (m *memFriends) AddDirectedEdge(_ context.Context, fromID, toID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStoreDown
	}
	m.edges[[2]int64{fromID, toID}] = struct{}{}
	return nil
}

func (m *memFriends) setFail(fail bool) {
	m.mu.Lock()
	m.fail = fail
	m.mu.Unlock()
}

func (m *memFriends) hasEdge(fromID, toID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.edges[[2]int64{fromID, toID}]
	return ok
}

type testEnv struct {
	hub     *Hub
	creds   *memCredentials
	friends *memFriends
	ctx     context.Context
}

func newTestEnv(t *testing.T, policy DuplicatePolicy, opts ...HubOption) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	creds := newMemCredentials()
	friends := newMemFriends()
	return &testEnv{
		hub:     NewHub(creds, friends, policy, nil, opts...),
		creds:   creds,
		friends: friends,
		ctx:     ctx,
	}
}

// connect starts a session and consumes the greeting.
func (e *testEnv) connect(t *testing.T) *pipeConn {
	t.Helper()
	c := newPipeConn("pipe")
	go e.hub.Serve(e.ctx, c)
	c.expect(t, "Server Ok")
	return c
}

func (e *testEnv) login(t *testing.T, login, password string) *pipeConn {
	t.Helper()
	c := e.connect(t)
	c.send(t, "login;"+login+";"+password)
	c.expect(t, "Login Ok")
	return c
}
