// Package proto implements the newline-delimited text protocol spoken between
// chat clients and the server.
package proto

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	Separator = ";"

	Greeting        = "Server Ok"
	LoginOK         = "Login Ok"
	loginFailedText = "Login failed"

	TagLogin    = "login"
	TagRegister = "register"

	FriendsMarker   = "<<<"
	AddFriendPrefix = "+++"
	ExitCommand     = ">>>exit<<<"
	DeliveryMarker  = ">>>"
)

// FailureCode is the diagnostic number sent with a failed login.
// The values are not a stable API.
type FailureCode int

const (
	FailFieldCount        FailureCode = 1
	FailUnknownTag        FailureCode = 2
	FailBadCredentials    FailureCode = 3
	FailMalformedRegister FailureCode = 4
	FailRegisterRefused   FailureCode = 5
	FailAlreadyOnline     FailureCode = 6
)

// LoginFailed formats the failure response line.
func LoginFailed(code FailureCode) string {
	return loginFailedText + " " + strconv.Itoa(int(code))
}

// FailureError is returned when the first line cannot be accepted.
type FailureError struct {
	Code   FailureCode
	Reason string
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("login failed %d: %s", e.Code, e.Reason)
}

func failure(code FailureCode, reason string) *FailureError {
	return &FailureError{Code: code, Reason: reason}
}

// AuthKind distinguishes login from registration.
type AuthKind int

const (
	AuthLogin AuthKind = iota
	AuthRegister
)

// AuthRequest is the parsed first line of a connection.
type AuthRequest struct {
	Kind     AuthKind
	Login    string
	Password string

	// Registration only.
	Username string
	Birthday time.Time
	City     string
}

// ParseAuthLine parses `login;<login>;<password>` or
// `register;<login>;<password>;<username>;<date>;<city>`.
func ParseAuthLine(line string) (AuthRequest, error) {
	fields := strings.Split(line, Separator)

	if fields[0] == TagRegister {
		return parseRegister(fields)
	}

	if len(fields) != 3 {
		return AuthRequest{}, failure(FailFieldCount, fmt.Sprintf("expected 3 fields, got %d", len(fields)))
	}
	if fields[0] != TagLogin {
		return AuthRequest{}, failure(FailUnknownTag, fmt.Sprintf("unknown tag %q", fields[0]))
	}

	return AuthRequest{
		Kind:     AuthLogin,
		Login:    fields[1],
		Password: fields[2],
	}, nil
}

func parseRegister(fields []string) (AuthRequest, error) {
	if len(fields) != 6 {
		return AuthRequest{}, failure(FailMalformedRegister, fmt.Sprintf("expected 6 fields, got %d", len(fields)))
	}
	if fields[1] == "" || fields[2] == "" {
		return AuthRequest{}, failure(FailMalformedRegister, "empty login or password")
	}

	birthday, err := ParseBirthday(fields[4])
	if err != nil {
		return AuthRequest{}, failure(FailMalformedRegister, err.Error())
	}

	return AuthRequest{
		Kind:     AuthRegister,
		Login:    fields[1],
		Password: fields[2],
		Username: fields[3],
		Birthday: birthday,
		City:     fields[5],
	}, nil
}

// ParseBirthday reads a year, month and day written as three digit groups
// separated by any non-digit characters, e.g. 2001-02-03 or 2001.2.3.
func ParseBirthday(s string) (time.Time, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
		}
		nums[i] = n
	}

	year, month, day := nums[0], nums[1], nums[2]
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range values; reject instead of rolling over.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

// CommandKind describes what an authenticated client asked for.
type CommandKind int

const (
	// CommandRoute is any line that is not one of the other commands.
	CommandRoute CommandKind = iota
	// CommandOnlineFriends asks for the online mutual friends.
	CommandOnlineFriends
	// CommandAddFriend records an edge to another login.
	CommandAddFriend
	// CommandExit ends the session.
	CommandExit
)

// Command is one classified line from an authenticated client.
type Command struct {
	Kind CommandKind
	// Arg is the target login for CommandAddFriend and the raw line for CommandRoute.
	Arg string
}

// ParseCommand classifies a post-login line.
func ParseCommand(line string) Command {
	switch {
	case line == FriendsMarker:
		return Command{Kind: CommandOnlineFriends}
	case line == ExitCommand:
		return Command{Kind: CommandExit}
	case strings.HasPrefix(line, AddFriendPrefix):
		return Command{Kind: CommandAddFriend, Arg: strings.TrimPrefix(line, AddFriendPrefix)}
	default:
		return Command{Kind: CommandRoute, Arg: line}
	}
}

// RoutedMessage is a chat payload addressed to a login.
type RoutedMessage struct {
	Receiver string
	Sender   string
	Text     string
}

// ParseRoutedMessage splits `<receiver>;<sender>;<text>`. Any other shape is rejected.
func ParseRoutedMessage(line string) (RoutedMessage, bool) {
	fields := strings.Split(line, Separator)
	if len(fields) != 3 || fields[0] == "" {
		return RoutedMessage{}, false
	}
	return RoutedMessage{
		Receiver: fields[0],
		Sender:   fields[1],
		Text:     fields[2],
	}, true
}

// FormatDelivery builds the line written to a recipient.
func FormatDelivery(sender, text string) string {
	return DeliveryMarker + sender + DeliveryMarker + text
}

// FormatFriend builds one entry of the online friends list.
func FormatFriend(id int64, username, login string) string {
	return strconv.FormatInt(id, 10) + Separator + username + Separator + login
}
