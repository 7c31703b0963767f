package events

import (
	"fmt"
	"time"
)

// Kind identifies the category of a domain event.
type Kind string

const (
	KindStateTransition  Kind = "state_transition"
	KindConsoleOutput    Kind = "console_output"
	KindSystemMessage    Kind = "system_message"
	KindPlayerMessage    Kind = "player_message"
	KindProgressionStart Kind = "progression_start"
	KindProgressionEnd   Kind = "progression_end"
	KindInstanceError    Kind = "instance_error"
)

// CauseKind identifies who originated an event.
type CauseKind string

const (
	CauseSystem  CauseKind = "system"
	CauseUser    CauseKind = "user"
	CauseUnknown CauseKind = "unknown"
)

// CausedBy attributes an event to its originator.
type CausedBy struct {
	Kind     CauseKind `json:"kind"`
	UserID   string    `json:"user_id,omitempty"`
	UserName string    `json:"user_name,omitempty"`
}

// System is the causation for events the supervisor generates on its own.
func System() CausedBy { return CausedBy{Kind: CauseSystem} }

// User attributes an event to a human operator.
func User(id, name string) CausedBy {
	return CausedBy{Kind: CauseUser, UserID: id, UserName: name}
}

// Unknown is used when the originator cannot be determined.
func Unknown() CausedBy { return CausedBy{Kind: CauseUnknown} }

func (c CausedBy) String() string {
	if c.Kind == CauseUser {
		return fmt.Sprintf("user:%s", c.UserName)
	}
	return string(c.Kind)
}

// Event is an immutable domain event. Sequence is assigned by the bus at
// publish time and is strictly increasing across the whole process.
type Event struct {
	Sequence     int64     `json:"sequence"`
	Kind         Kind      `json:"kind"`
	InstanceID   string    `json:"instance_id"`
	InstanceName string    `json:"instance_name"`
	Detail       string    `json:"detail"`
	CausedBy     CausedBy  `json:"caused_by"`
	Timestamp    time.Time `json:"timestamp"`

	// To carries the target state for state_transition events.
	To string `json:"to,omitempty"`
	// Line carries the raw text for console_output and system_message events.
	Line string `json:"line,omitempty"`
	// Player and Message carry chat payloads for player_message events.
	Player  string `json:"player,omitempty"`
	Message string `json:"message,omitempty"`
}

// StateTransition builds a state_transition event.
func StateTransition(instanceID, instanceName, to, detail string, causedBy CausedBy) Event {
	return Event{
		Kind:         KindStateTransition,
		InstanceID:   instanceID,
		InstanceName: instanceName,
		To:           to,
		Detail:       detail,
		CausedBy:     causedBy,
	}
}

// ConsoleOutput builds a console_output event for one raw console line.
func ConsoleOutput(instanceID, instanceName, line string) Event {
	return Event{
		Kind:         KindConsoleOutput,
		InstanceID:   instanceID,
		InstanceName: instanceName,
		Line:         line,
		CausedBy:     System(),
	}
}

// SystemMessage builds a system_message event.
func SystemMessage(instanceID, instanceName, line string) Event {
	return Event{
		Kind:         KindSystemMessage,
		InstanceID:   instanceID,
		InstanceName: instanceName,
		Line:         line,
		CausedBy:     System(),
	}
}

// PlayerMessage builds a player_message (chat) event.
func PlayerMessage(instanceID, instanceName, player, message string) Event {
	return Event{
		Kind:         KindPlayerMessage,
		InstanceID:   instanceID,
		InstanceName: instanceName,
		Player:       player,
		Message:      message,
		CausedBy:     System(),
	}
}

// InstanceError builds an instance_error event for failures that happen in
// background tasks where no synchronous caller exists.
func InstanceError(instanceID, instanceName, detail string) Event {
	return Event{
		Kind:         KindInstanceError,
		InstanceID:   instanceID,
		InstanceName: instanceName,
		Detail:       detail,
		CausedBy:     System(),
	}
}
