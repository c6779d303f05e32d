// Package callback encodes and decodes the compact tokens carried in
// inline keyboard button presses.
package callback

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Separator delimits the four token fields.
	Separator = ":"
	// LimitBytes is the hard Telegram callback data cap.
	LimitBytes = 64

	fieldCount = 4
)

// ErrMalformedToken indicates a token that does not have exactly four fields.
var ErrMalformedToken = errors.New("malformed callback token")

// ActionType enumerates the interactive actions a button can trigger.
type ActionType string

const (
	ActionPaid          ActionType = "paid"
	ActionUnpaid        ActionType = "unpaid"
	ActionAddSettlement ActionType = "add_settlement"
	ActionDismiss       ActionType = "dismiss"
)

// ParseAction maps a wire string onto the closed action set.
func ParseAction(s string) (ActionType, error) {
	switch ActionType(s) {
	case ActionPaid, ActionUnpaid, ActionAddSettlement, ActionDismiss:
		return ActionType(s), nil
	default:
		return "", fmt.Errorf("unknown action type %q: %w", s, ErrMalformedToken)
	}
}

// Token is the decoded form of one button payload.
type Token struct {
	Action   ActionType
	Username string
	AdminID  string
	EventKey string
}

// Encode renders the token as <action>:<username>:<adminID>:<eventKey>.
// When the encoded form would exceed LimitBytes the event key is silently
// truncated; the key is a correlation hint, not load-bearing data.
func Encode(action ActionType, username, adminID, eventKey string) string {
	data := strings.Join([]string{string(action), username, adminID, eventKey}, Separator)
	if len(data) <= LimitBytes {
		return data
	}

	overflow := len(data) - LimitBytes
	if overflow >= len(eventKey) {
		eventKey = ""
	} else {
		eventKey = eventKey[:len(eventKey)-overflow]
	}

	return strings.Join([]string{string(action), username, adminID, eventKey}, Separator)
}

// Decode parses button payload data. Any field count other than four is a
// hard decode error: the token is rejected before reaching the ledger.
func Decode(data string) (Token, error) {
	parts := strings.Split(data, Separator)
	if len(parts) != fieldCount {
		return Token{}, fmt.Errorf("expected %d fields, got %d: %w", fieldCount, len(parts), ErrMalformedToken)
	}

	action, err := ParseAction(parts[0])
	if err != nil {
		return Token{}, err
	}

	if parts[1] == "" || parts[2] == "" {
		return Token{}, fmt.Errorf("empty username or admin id: %w", ErrMalformedToken)
	}

	return Token{
		Action:   action,
		Username: parts[1],
		AdminID:  parts[2],
		EventKey: parts[3],
	}, nil
}
