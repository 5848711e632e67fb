package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/linechat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	login := flag.String("login", "tester", "login to register or log in with")
	password := flag.String("password", "tester", "password")
	to := flag.String("to", "", "receiver login; empty sends to self")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(line string) error {
		if err := conn.Write(ctx, websocket.MessageText, []byte(line)); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		log.Printf("-> %s", line)
		return nil
	}
	recv := func() (string, error) {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return "", fmt.Errorf("read: %w", err)
		}
		log.Printf("<- %s", data)
		return string(data), nil
	}

	if line, err := recv(); err != nil {
		return err
	} else if line != proto.Greeting {
		return fmt.Errorf("unexpected greeting %q", line)
	}

	// Try to register first; an existing login falls back to a fresh connection with login.
	reg := strings.Join([]string{proto.TagRegister, *login, *password, *login, "2000-01-01", "Smoke"}, proto.Separator)
	if err := send(reg); err != nil {
		return err
	}
	line, err := recv()
	if err != nil {
		return err
	}
	if line != proto.LoginOK {
		_ = conn.Close(websocket.StatusNormalClosure, "retry")
		conn, _, err = websocket.Dial(ctx, *addr, nil)
		if err != nil {
			return fmt.Errorf("redial: %w", err)
		}
		defer conn.CloseNow()
		if _, err := recv(); err != nil {
			return err
		}
		if err := send(strings.Join([]string{proto.TagLogin, *login, *password}, proto.Separator)); err != nil {
			return err
		}
		if line, err = recv(); err != nil {
			return err
		}
		if line != proto.LoginOK {
			return fmt.Errorf("login rejected: %q", line)
		}
	}

	receiver := *to
	if receiver == "" {
		receiver = *login
	}
	if err := send(strings.Join([]string{receiver, *login, *text}, proto.Separator)); err != nil {
		return err
	}
	if receiver == *login {
		want := proto.FormatDelivery(*login, *text)
		if line, err := recv(); err != nil {
			return err
		} else if line != want {
			return fmt.Errorf("unexpected delivery %q", line)
		}
	}

	if err := send(proto.FriendsMarker); err != nil {
		return err
	}
	for {
		line, err := recv()
		if err != nil {
			return err
		}
		if line == proto.FriendsMarker {
			break
		}
	}
	for {
		line, err := recv()
		if err != nil {
			return err
		}
		if line == proto.FriendsMarker {
			break
		}
	}

	return send(proto.ExitCommand)
}
