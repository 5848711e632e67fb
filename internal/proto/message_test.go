package proto

import (
	"errors"
	"testing"
	"time"
)

func TestParseAuthLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantCode FailureCode
		want     AuthRequest
	}{
		{
			name: "login",
			line: "login;alice;secret",
			want: AuthRequest{Kind: AuthLogin, Login: "alice", Password: "secret"},
		},
		{
			name: "register dashed date",
			line: "register;bob;pw;Bob B;1999-12-31;Odesa",
			want: AuthRequest{
				Kind: AuthRegister, Login: "bob", Password: "pw", Username: "Bob B",
				Birthday: time.Date(1999, time.December, 31, 0, 0, 0, 0, time.UTC), City: "Odesa",
			},
		},
		{
			name: "register dotted date",
			line: "register;bob;pw;Bob;2001.2.3;Lviv",
			want: AuthRequest{
				Kind: AuthRegister, Login: "bob", Password: "pw", Username: "Bob",
				Birthday: time.Date(2001, time.February, 3, 0, 0, 0, 0, time.UTC), City: "Lviv",
			},
		},
		{name: "empty line", line: "", wantCode: FailFieldCount},
		{name: "login too few fields", line: "login;alice", wantCode: FailFieldCount},
		{name: "login too many fields", line: "login;alice;pw;extra", wantCode: FailFieldCount},
		{name: "unknown tag", line: "hello;alice;pw", wantCode: FailUnknownTag},
		{name: "register prefix is not the register tag", line: "registered;alice;pw", wantCode: FailUnknownTag},
		{name: "register wrong count", line: "register;bob;pw;Bob;2001-01-01", wantCode: FailMalformedRegister},
		{name: "register bad date", line: "register;bob;pw;Bob;2001-13-01;Lviv", wantCode: FailMalformedRegister},
		{name: "register empty password", line: "register;bob;;Bob;2001-01-01;Lviv", wantCode: FailMalformedRegister},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAuthLine(tt.line)
			if tt.wantCode != 0 {
				var fe *FailureError
				if !errors.As(err, &fe) {
					t.Fatalf("expected FailureError, got %v", err)
				}
				if fe.Code != tt.wantCode {
					t.Fatalf("expected code %d, got %d", tt.wantCode, fe.Code)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Kind != tt.want.Kind || got.Login != tt.want.Login || got.Password != tt.want.Password ||
				got.Username != tt.want.Username || got.City != tt.want.City || !got.Birthday.Equal(tt.want.Birthday) {
				t.Fatalf("unexpected request: %+v", got)
			}
		})
	}
}

func TestParseBirthdayRejectsRollover(t *testing.T) {
	for _, s := range []string{"2001-02-30", "2001-00-10", "2001-02", "abc", "2001-02-03-04"} {
		if _, err := ParseBirthday(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		kind CommandKind
		arg  string
	}{
		{"<<<", CommandOnlineFriends, ""},
		{">>>exit<<<", CommandExit, ""},
		{"+++bob", CommandAddFriend, "bob"},
		{"bob;alice;hi", CommandRoute, "bob;alice;hi"},
		{"<<< ", CommandRoute, "<<< "},
		{"onlyonefield", CommandRoute, "onlyonefield"},
	}

	for _, tt := range tests {
		cmd := ParseCommand(tt.line)
		if cmd.Kind != tt.kind || cmd.Arg != tt.arg {
			t.Fatalf("ParseCommand(%q) = %+v", tt.line, cmd)
		}
	}
}

func TestParseRoutedMessage(t *testing.T) {
	msg, ok := ParseRoutedMessage("bob;alice;hello there")
	if !ok || msg.Receiver != "bob" || msg.Sender != "alice" || msg.Text != "hello there" {
		t.Fatalf("unexpected parse: %+v %v", msg, ok)
	}

	for _, line := range []string{"onlyonefield", "a;b", "a;b;c;d", ";alice;hi"} {
		if _, ok := ParseRoutedMessage(line); ok {
			t.Fatalf("expected %q to be rejected", line)
		}
	}
}

func TestFormatting(t *testing.T) {
	if got := FormatDelivery("alice", "hello"); got != ">>>alice>>>hello" {
		t.Fatalf("FormatDelivery = %q", got)
	}
	if got := FormatFriend(7, "Bob", "bob"); got != "7;Bob;bob" {
		t.Fatalf("FormatFriend = %q", got)
	}
	if got := LoginFailed(FailBadCredentials); got != "Login failed 3" {
		t.Fatalf("LoginFailed = %q", got)
	}
}
