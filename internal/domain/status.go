package domain

import "fmt"

// ConversationStatus is the lifecycle state of a conversation
type ConversationStatus string

const (
	StatusActive      ConversationStatus = "active"
	StatusTransferred ConversationStatus = "transferred"
	StatusClosed      ConversationStatus = "closed"
)

// Valid reports whether s is a known status
func (s ConversationStatus) Valid() bool {
	switch s {
	case StatusActive, StatusTransferred, StatusClosed:
		return true
	}
	return false
}

// ParseStatus converts a stored value into a ConversationStatus
func ParseStatus(v string) (ConversationStatus, error) {
	s := ConversationStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown conversation status %q", v)
	}
	return s, nil
}

// Action is an index mutation subject to the state machine
type Action string

const (
	ActionTransfer Action = "transfer"
	ActionClose    Action = "close"
	ActionAppend   Action = "append"
	ActionTouch    Action = "touch" // lastMessage / updatedAt refresh
)

// transitions lists every permitted (from, action) pair and its target.
// Anything absent is rejected. Closed keeps its status under every edge it
// has: the close no-op and touch, which only rewrites lastMessage.
var transitions = map[ConversationStatus]map[Action]ConversationStatus{
	StatusActive: {
		ActionTransfer: StatusTransferred,
		ActionClose:    StatusClosed,
		ActionAppend:   StatusActive,
		ActionTouch:    StatusActive,
	},
	StatusTransferred: {
		ActionTransfer: StatusTransferred,
		ActionClose:    StatusClosed,
		ActionAppend:   StatusTransferred,
		ActionTouch:    StatusTransferred,
	},
	StatusClosed: {
		ActionClose: StatusClosed,
		ActionTouch: StatusClosed,
	},
}

// Transition returns the status reached by applying action to from, or an
// InvalidState error when the state machine forbids it.
func Transition(from ConversationStatus, action Action) (ConversationStatus, error) {
	next, ok := transitions[from][action]
	if !ok {
		return "", &Error{
			Kind: KindInvalidState,
			Op:   string(action),
			Err:  fmt.Errorf("cannot %s a conversation in status %q", action, from),
		}
	}
	return next, nil
}

// Accepts reports whether the status admits new transcript messages
func (s ConversationStatus) Accepts() bool {
	_, err := Transition(s, ActionAppend)
	return err == nil
}
