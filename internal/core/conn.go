package core

import "context"

// Conn is a line-oriented duplex connection to one client.
// ReadLine is only called from the session goroutine; WriteLine calls are
// serialized by the session. Close must unblock a pending ReadLine.
type Conn interface {
	ReadLine(ctx context.Context) (string, error)
	WriteLine(ctx context.Context, line string) error
	Close() error
	RemoteAddr() string
}
