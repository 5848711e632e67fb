package tcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// ErrLineTooLong is returned when a client sends a line longer than the configured limit.
var ErrLineTooLong = errors.New("line too long")

// lineConn adapts a net.Conn to core.Conn.
type lineConn struct {
	conn         net.Conn
	scanner      *bufio.Scanner
	idleTimeout  time.Duration
	writeTimeout time.Duration
}

func newLineConn(conn net.Conn, maxLineBytes int, idleTimeout, writeTimeout time.Duration) *lineConn {
	scanner := bufio.NewScanner(conn)
	// The scanner's limit is the larger of max and cap(buf).
	scanner.Buffer(make([]byte, 0, min(4096, maxLineBytes)), maxLineBytes)
	return &lineConn{
		conn:         conn,
		scanner:      scanner,
		idleTimeout:  idleTimeout,
		writeTimeout: writeTimeout,
	}
}

// ReadLine returns the next line without its terminator.
// Returns io.EOF when the peer closes the connection.
func (c *lineConn) ReadLine(_ context.Context) (string, error) {
	if c.idleTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout)); err != nil {
			return "", fmt.Errorf("set read deadline: %w", err)
		}
	}

	if !c.scanner.Scan() {
		err := c.scanner.Err()
		if err == nil {
			return "", io.EOF
		}
		if errors.Is(err, bufio.ErrTooLong) {
			return "", ErrLineTooLong
		}
		return "", err
	}
	return strings.TrimSuffix(c.scanner.Text(), "\r"), nil
}

func (c *lineConn) WriteLine(_ context.Context, line string) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

func (c *lineConn) Close() error {
	return c.conn.Close()
}

func (c *lineConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
