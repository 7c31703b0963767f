package instance

import (
	"regexp"
	"strings"
)

// SignalKind identifies what a console line means to the supervisor.
type SignalKind int

const (
	SignalNone SignalKind = iota
	SignalReady
	SignalSystemMessage
	SignalPlayerJoined
	SignalPlayerLeft
	SignalPlayerChat
)

// Signal is the classified meaning of one console line. Player joins and
// leaves are a refinement of the system-message category: their Message field
// still carries the full system-message payload.
type Signal struct {
	Kind    SignalKind
	Player  string
	Message string
}

var (
	// [12:34:56] [Server thread/INFO]: payload
	// Forge inserts an extra logger bracket before the colon.
	systemLineRe = regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}\] \[[^\]]+/INFO\](?: \[[^\]]+\])?: (.*)$`)
	chatRe       = regexp.MustCompile(`^(?:\[Not Secure\] )?<([^>]+)> (.*)$`)
	readyRe      = regexp.MustCompile(`^Done \([0-9.,]+s?\)!`)
	joinedRe     = regexp.MustCompile(`^([A-Za-z0-9_]{1,16})(?: \([^)]*\))? joined the game$`)
	leftRe       = regexp.MustCompile(`^([A-Za-z0-9_]{1,16}) left the game$`)
	// The authenticator announces the uuid shortly before the join line.
	uuidRe = regexp.MustCompile(`^UUID of player ([A-Za-z0-9_]{1,16}) is ([0-9a-fA-F-]{32,36})$`)
)

// Classify turns a raw console line into a typed signal. Unrecognized lines
// yield SignalNone; the function is pure and never errors.
func Classify(line string) Signal {
	payload, ok := parseSystemPayload(line)
	if !ok {
		return Signal{Kind: SignalNone}
	}

	if ParseReady(line) {
		return Signal{Kind: SignalReady, Message: payload}
	}

	if m := chatRe.FindStringSubmatch(payload); m != nil {
		return Signal{Kind: SignalPlayerChat, Player: m[1], Message: m[2]}
	}

	if name, ok := ParsePlayerJoined(payload); ok {
		return Signal{Kind: SignalPlayerJoined, Player: name, Message: payload}
	}
	if name, ok := ParsePlayerLeft(payload); ok {
		return Signal{Kind: SignalPlayerLeft, Player: name, Message: payload}
	}

	return Signal{Kind: SignalSystemMessage, Message: payload}
}

// ParseReady reports whether the line is the server's ready marker.
func ParseReady(line string) bool {
	payload, ok := parseSystemPayload(line)
	if !ok {
		return false
	}
	if readyRe.MatchString(payload) {
		return true
	}
	return strings.Contains(payload, `For help, type "help"`)
}

// ParseSystemMessage extracts the payload of an INFO-level server log line.
// Chat lines are excluded: they are classified independently.
func ParseSystemMessage(line string) (string, bool) {
	payload, ok := parseSystemPayload(line)
	if !ok {
		return "", false
	}
	if chatRe.MatchString(payload) {
		return "", false
	}
	return payload, true
}

// ParsePlayerMessage extracts player chat from a console line.
func ParsePlayerMessage(line string) (player, message string, ok bool) {
	payload, found := parseSystemPayload(line)
	if !found {
		return "", "", false
	}
	m := chatRe.FindStringSubmatch(payload)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// ParsePlayerJoined inspects a system-message payload for a join announcement.
func ParsePlayerJoined(payload string) (string, bool) {
	if m := joinedRe.FindStringSubmatch(payload); m != nil {
		return m[1], true
	}
	return "", false
}

// ParsePlayerUUID inspects a system-message payload for the authenticator's
// uuid announcement, emitted before the player's join line.
func ParsePlayerUUID(payload string) (name, uuid string, ok bool) {
	if m := uuidRe.FindStringSubmatch(payload); m != nil {
		return m[1], m[2], true
	}
	return "", "", false
}

// ParsePlayerLeft inspects a system-message payload for a leave announcement.
func ParsePlayerLeft(payload string) (string, bool) {
	if m := leftRe.FindStringSubmatch(payload); m != nil {
		return m[1], true
	}
	return "", false
}

func parseSystemPayload(line string) (string, bool) {
	m := systemLineRe.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return "", false
	}
	return m[1], true
}
