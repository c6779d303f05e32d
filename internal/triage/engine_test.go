package triage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hesabgar/hesabgar-bot/internal/domain"
	"github.com/hesabgar/hesabgar-bot/internal/repository"
)

type fakeSnapshots struct {
	snapshots map[string]*domain.Snapshot
	saveErr   error
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{snapshots: make(map[string]*domain.Snapshot)}
}

func (f *fakeSnapshots) Get(_ context.Context, username string) (*domain.Snapshot, error) {
	s, ok := f.snapshots[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSnapshots) Save(_ context.Context, snapshot *domain.Snapshot) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	copied := *snapshot
	f.snapshots[snapshot.Username] = &copied
	return nil
}

type fakeFlags struct {
	values map[string]string
}

func newFakeFlags() *fakeFlags {
	return &fakeFlags{values: make(map[string]string)}
}

func (f *fakeFlags) Get(_ context.Context, key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeFlags) Set(_ context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

type fakeAudit struct {
	entries []domain.AuditEntry
}

func (f *fakeAudit) Append(_ context.Context, entry *domain.AuditEntry) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAudit) DeleteOlderThan(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type stubTranslator struct{}

func (stubTranslator) T(key string) string               { return key }
func (stubTranslator) Tf(key string, args ...any) string { return fmt.Sprintf(key, args...) }
func (stubTranslator) Lang() string                      { return "en" }

func newTestEngine() (*Engine, *fakeSnapshots, *fakeFlags, *fakeAudit) {
	snapshots := newFakeSnapshots()
	flags := newFakeFlags()
	audit := &fakeAudit{}
	flags.values[domain.FlagInitialSyncComplete] = "true"

	return NewEngine(snapshots, flags, audit, stubTranslator{}, nil), snapshots, flags, audit
}

func event(action, username string, status domain.UserStatus, expire string) *domain.Event {
	tgID := int64(777)
	return &domain.Event{
		Action:   action,
		Username: username,
		SendAt:   1700000000,
		User: &domain.EventUser{
			ID:        42,
			Username:  username,
			Status:    status,
			Expire:    expire,
			DataLimit: 10 * 1024 * 1024 * 1024,
		},
		By: &domain.EventBy{ID: 1, Username: "boss", TelegramID: &tgID},
	}
}

func isoDaysFromNow(days int) string {
	return time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour).Format(time.RFC3339)
}

func TestProcessCreatedAlwaysSends(t *testing.T) {
	engine, snapshots, _, _ := newTestEngine()

	expire := isoDaysFromNow(30)
	dec, err := engine.Process(context.Background(), event(domain.ActionUserCreated, "alice", domain.StatusActive, expire))
	require.NoError(t, err)

	assert.True(t, dec.Send)
	assert.Equal(t, ReasonCreated, dec.Reason)
	assert.Equal(t, "created_alice_1700000000", dec.EventKey)
	assert.Contains(t, dec.Message, "user_created")
	assert.Contains(t, dec.Message, "alice")

	saved := snapshots.snapshots["alice"]
	require.NotNil(t, saved)
	assert.Equal(t, domain.StatusActive, saved.Status)
	assert.Equal(t, expire, saved.Expire)
}

func TestProcessUpdatedEstablishesBaselineWithoutSending(t *testing.T) {
	engine, snapshots, _, _ := newTestEngine()

	dec, err := engine.Process(context.Background(), event(domain.ActionUserUpdated, "dave", domain.StatusActive, isoDaysFromNow(10)))
	require.NoError(t, err)

	assert.False(t, dec.Send)
	assert.Equal(t, ReasonBaseline, dec.Reason)
	assert.Empty(t, dec.EventKey)
	assert.NotNil(t, snapshots.snapshots["dave"])
}

func TestProcessUpdatedExpireExtension(t *testing.T) {
	engine, snapshots, _, _ := newTestEngine()

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	snapshots.snapshots["bob"] = &domain.Snapshot{
		Username: "bob",
		Status:   domain.StatusActive,
		Expire:   base.Format(time.RFC3339),
	}

	newExpire := base.Add(10 * 24 * time.Hour).Format(time.RFC3339)
	dec, err := engine.Process(context.Background(), event(domain.ActionUserUpdated, "bob", domain.StatusActive, newExpire))
	require.NoError(t, err)

	assert.True(t, dec.Send)
	assert.Equal(t, "expire_extended_10_days", dec.Reason)
	assert.Equal(t, "updated_bob_1700000000", dec.EventKey)
	assert.Contains(t, dec.Message, "Expiry Change")
	assert.Equal(t, newExpire, snapshots.snapshots["bob"].Expire)
}

func TestProcessUpdatedBelowSevenDaysDoesNotSend(t *testing.T) {
	engine, snapshots, _, _ := newTestEngine()

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	snapshots.snapshots["bob"] = &domain.Snapshot{
		Username: "bob",
		Status:   domain.StatusActive,
		Expire:   base.Format(time.RFC3339),
	}

	newExpire := base.Add(6*24*time.Hour + 23*time.Hour).Format(time.RFC3339)
	dec, err := engine.Process(context.Background(), event(domain.ActionUserUpdated, "bob", domain.StatusActive, newExpire))
	require.NoError(t, err)

	assert.False(t, dec.Send)
	assert.Equal(t, ReasonNoTrigger, dec.Reason)
	// Snapshot still rolls forward on skip.
	assert.Equal(t, newExpire, snapshots.snapshots["bob"].Expire)
}

func TestProcessUpdatedHoldTrigger(t *testing.T) {
	engine, snapshots, _, _ := newTestEngine()

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	snapshots.snapshots["carol"] = &domain.Snapshot{
		Username: "carol",
		Status:   domain.StatusActive,
		Expire:   base.Format(time.RFC3339),
	}

	// Only two days of extension, below the floor; the hold trigger fires anyway.
	newExpire := base.Add(2 * 24 * time.Hour).Format(time.RFC3339)
	dec, err := engine.Process(context.Background(), event(domain.ActionUserUpdated, "carol", domain.StatusOnHold, newExpire))
	require.NoError(t, err)

	assert.True(t, dec.Send)
	assert.Equal(t, ReasonHold, dec.Reason)
	assert.Contains(t, dec.Message, "Status Change")
}

func TestProcessUpdatedExtensionReasonWinsOverHold(t *testing.T) {
	engine, snapshots, _, _ := newTestEngine()

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	snapshots.snapshots["erin"] = &domain.Snapshot{
		Username: "erin",
		Status:   domain.StatusActive,
		Expire:   base.Format(time.RFC3339),
	}

	newExpire := base.Add(30 * 24 * time.Hour).Format(time.RFC3339)
	dec, err := engine.Process(context.Background(), event(domain.ActionUserUpdated, "erin", domain.StatusOnHold, newExpire))
	require.NoError(t, err)

	assert.True(t, dec.Send)
	assert.Equal(t, "expire_extended_30_days", dec.Reason)
}

func TestProcessUpdatedGatedUntilSyncComplete(t *testing.T) {
	engine, snapshots, flags, _ := newTestEngine()
	flags.values[domain.FlagInitialSyncComplete] = ""

	dec, err := engine.Process(context.Background(), event(domain.ActionUserUpdated, "frank", domain.StatusActive, isoDaysFromNow(30)))
	require.NoError(t, err)

	assert.False(t, dec.Send)
	assert.Equal(t, ReasonSyncIncomplete, dec.Reason)
	// Gated events leave no snapshot behind.
	assert.Nil(t, snapshots.snapshots["frank"])

	// Toggling the flag makes the next event eligible.
	flags.values[domain.FlagInitialSyncComplete] = "true"
	dec, err = engine.Process(context.Background(), event(domain.ActionUserUpdated, "frank", domain.StatusActive, isoDaysFromNow(30)))
	require.NoError(t, err)
	assert.Equal(t, ReasonBaseline, dec.Reason)
	assert.NotNil(t, snapshots.snapshots["frank"])
}

func TestProcessCreatedNeverGated(t *testing.T) {
	engine, _, flags, _ := newTestEngine()
	flags.values[domain.FlagInitialSyncComplete] = ""

	dec, err := engine.Process(context.Background(), event(domain.ActionUserCreated, "grace", domain.StatusActive, ""))
	require.NoError(t, err)
	assert.True(t, dec.Send)
}

func TestProcessInvalidEventAuditedAndRejected(t *testing.T) {
	engine, _, _, audit := newTestEngine()

	ev := event(domain.ActionUserUpdated, "", domain.StatusActive, "")
	ev.Username = ""

	_, err := engine.Process(context.Background(), ev)
	assert.ErrorIs(t, err, ErrInvalidEvent)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, "webhook_received", audit.entries[0].Type)
}

func TestProcessIgnoresUnsupportedAction(t *testing.T) {
	engine, snapshots, _, _ := newTestEngine()

	dec, err := engine.Process(context.Background(), event("user_deleted", "henry", domain.StatusActive, ""))
	require.NoError(t, err)

	assert.False(t, dec.Send)
	assert.Equal(t, ReasonIgnoredAction, dec.Reason)
	assert.Nil(t, snapshots.snapshots["henry"])
}

func TestProcessUpdatedUnparseableExpireDoesNotFire(t *testing.T) {
	engine, snapshots, _, _ := newTestEngine()

	snapshots.snapshots["ivan"] = &domain.Snapshot{
		Username: "ivan",
		Status:   domain.StatusActive,
		Expire:   "not-a-timestamp",
	}

	dec, err := engine.Process(context.Background(), event(domain.ActionUserUpdated, "ivan", domain.StatusActive, isoDaysFromNow(60)))
	require.NoError(t, err)
	assert.False(t, dec.Send)
}

func TestExpireExtension(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		old      string
		new      string
		wantDays int
		wantOK   bool
	}{
		{
			name:     "ten days",
			old:      base.Format(time.RFC3339),
			new:      base.Add(10 * 24 * time.Hour).Format(time.RFC3339),
			wantDays: 10,
			wantOK:   true,
		},
		{
			name:     "floor of partial day",
			old:      base.Format(time.RFC3339),
			new:      base.Add(7*24*time.Hour + 23*time.Hour).Format(time.RFC3339),
			wantDays: 7,
			wantOK:   true,
		},
		{
			name:   "shrunk expire",
			old:    base.Format(time.RFC3339),
			new:    base.Add(-24 * time.Hour).Format(time.RFC3339),
			wantOK: false,
		},
		{
			name:   "missing old",
			old:    "",
			new:    base.Format(time.RFC3339),
			wantOK: false,
		},
		{
			name:   "garbage new",
			old:    base.Format(time.RFC3339),
			new:    "soon",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days, ok := expireExtension(tt.old, tt.new)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantDays, days)
			}
		})
	}
}
