package domain

import (
	"encoding/json"
	"time"
)

// Snapshot is the last known state of a panel user, used only for diffing.
// One row per username, overwritten on every processed event.
type Snapshot struct {
	Username  string
	Status    UserStatus
	Expire    string // RFC3339 timestamp or empty when the account never expires
	UpdatedAt time.Time
}

// PaymentStatus is the bookkeeping state attached to a username.
type PaymentStatus string

const (
	PaymentUnknown   PaymentStatus = "Unknown"
	PaymentPaid      PaymentStatus = "Paid"
	PaymentUnpaid    PaymentStatus = "Unpaid"
	PaymentDismissed PaymentStatus = "Dismissed"
)

// Payment records who last set the payment status for a username.
type Payment struct {
	Username string
	Status   PaymentStatus
	SetBy    string
	SetAt    time.Time
}

// UserPrice is the administratively configured price for a username,
// consulted as a fallback when a settlement entry carries no price.
type UserPrice struct {
	Username string
	Price    string
	SetBy    string
	SetAt    time.Time
}

// SettlementEntry is one username pending settlement for one admin.
// At most one active (not checked out) entry exists per (username, admin).
type SettlementEntry struct {
	ID           int64
	Username     string
	AdminID      string
	Price        string // decimal string, empty when added without a price
	AddedBy      string
	AddedAt      time.Time
	CheckedOut   bool
	CheckedOutAt *time.Time
	CheckedOutBy string
}

// SettlementTotal summarizes the active settlement list of one admin.
type SettlementTotal struct {
	Total             string
	Items             int
	ItemsWithoutPrice int
}

// AdminDestination maps a panel admin to the chat and optional forum topic
// that receives their notifications.
type AdminDestination struct {
	AdminID       string
	AdminUsername string
	ChatID        string
	TopicID       string // empty means the parent chat itself
	CreatedAt     time.Time
}

// AuditEntry is one append-only audit log row.
type AuditEntry struct {
	ID        int64
	Type      string
	Username  string
	AdminID   string
	ActorID   string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Sync flag keys persisted in the store.
const (
	FlagInitialSyncComplete = "initial_sync_complete"
	FlagLastSync            = "last_sync"
)

// PanelAdmin is one admin record fetched from the panel roster API.
type PanelAdmin struct {
	Username   string `json:"username"`
	TelegramID *int64 `json:"telegram_id"`
	IsSudo     bool   `json:"is_sudo"`
}
