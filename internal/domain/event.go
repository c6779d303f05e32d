package domain

// Event actions delivered by the panel webhook. Anything else is ignored.
const (
	ActionUserCreated = "user_created"
	ActionUserUpdated = "user_updated"
)

// UserStatus is the account status reported by the panel.
type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusDisabled UserStatus = "disabled"
	StatusLimited  UserStatus = "limited"
	StatusExpired  UserStatus = "expired"
	StatusOnHold   UserStatus = "on_hold"
)

// Event is a single lifecycle notification from the panel webhook.
type Event struct {
	Action   string     `json:"action"`
	Username string     `json:"username"`
	User     *EventUser `json:"user"`
	By       *EventBy   `json:"by"`
	SendAt   int64      `json:"send_at"`
}

// EventUser carries the account body attached to an event.
type EventUser struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	Status      UserStatus `json:"status"`
	Expire      string     `json:"expire"`
	DataLimit   int64      `json:"data_limit"`
	UsedTraffic int64      `json:"used_traffic"`
}

// EventBy identifies the panel admin who triggered the event.
type EventBy struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	TelegramID *int64 `json:"telegram_id"`
}

// Valid reports whether the event carries the fields triage requires.
func (e *Event) Valid() bool {
	return e != nil && e.Action != "" && e.Username != "" && e.User != nil
}
