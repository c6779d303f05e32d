// Package session manages the short-lived conversational state behind
// multi-step bot commands.
package session

import "time"

// Step is one stage of a command conversation.
type Step string

const (
	// StepAwaitingAdminID waits for the admin's numeric Telegram ID.
	StepAwaitingAdminID Step = "awaiting_admin_id"
	// StepAwaitingDestination waits for the chat ID and optional topic ID.
	StepAwaitingDestination Step = "awaiting_destination"
	// StepAwaitingPriceUsername waits for the username to price.
	StepAwaitingPriceUsername Step = "awaiting_price_username"
	// StepAwaitingPriceAmount waits for the decimal price amount.
	StepAwaitingPriceAmount Step = "awaiting_price_amount"
)

// Session captures the flow state of one operator in a command conversation.
type Session struct {
	UserID    int64             `json:"user_id"`
	Step      Step              `json:"step"`
	Data      map[string]string `json:"data"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Value returns a collected datum, or an empty string.
func (s *Session) Value(key string) string {
	if s == nil || s.Data == nil {
		return ""
	}
	return s.Data[key]
}

// Put stores a collected datum.
func (s *Session) Put(key, value string) {
	if s.Data == nil {
		s.Data = make(map[string]string)
	}
	s.Data[key] = value
}
