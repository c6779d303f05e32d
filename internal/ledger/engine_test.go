package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hesabgar/hesabgar-bot/internal/domain"
	"github.com/hesabgar/hesabgar-bot/internal/repository"
)

type fakePayments struct {
	records map[string]*domain.Payment
	sets    int
}

func newFakePayments() *fakePayments {
	return &fakePayments{records: make(map[string]*domain.Payment)}
}

func (f *fakePayments) Get(_ context.Context, username string) (*domain.Payment, error) {
	p, ok := f.records[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakePayments) Set(_ context.Context, username string, status domain.PaymentStatus, setBy string) error {
	f.sets++
	f.records[username] = &domain.Payment{
		Username: username,
		Status:   status,
		SetBy:    setBy,
		SetAt:    time.Now().UTC(),
	}
	return nil
}

type fakePrices struct {
	prices map[string]string
}

func newFakePrices() *fakePrices {
	return &fakePrices{prices: make(map[string]string)}
}

func (f *fakePrices) Get(_ context.Context, username string) (*domain.UserPrice, error) {
	price, ok := f.prices[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &domain.UserPrice{Username: username, Price: price}, nil
}

func (f *fakePrices) Set(_ context.Context, username, price, _ string) error {
	f.prices[username] = price
	return nil
}

type fakeSettlements struct {
	entries []domain.SettlementEntry
	nextID  int64
}

func (f *fakeSettlements) Add(_ context.Context, username, adminID, price, addedBy string) (bool, error) {
	for i, entry := range f.entries {
		if entry.Username == username && entry.AdminID == adminID && !entry.CheckedOut {
			f.entries[i].Price = price
			f.entries[i].AddedBy = addedBy
			return false, nil
		}
	}

	f.nextID++
	f.entries = append(f.entries, domain.SettlementEntry{
		ID:       f.nextID,
		Username: username,
		AdminID:  adminID,
		Price:    price,
		AddedBy:  addedBy,
		AddedAt:  time.Now().UTC(),
	})
	return true, nil
}

func (f *fakeSettlements) ListActive(_ context.Context, adminID string) ([]domain.SettlementEntry, error) {
	var active []domain.SettlementEntry
	for _, entry := range f.entries {
		if entry.AdminID == adminID && !entry.CheckedOut {
			active = append(active, entry)
		}
	}
	return active, nil
}

func (f *fakeSettlements) Checkout(_ context.Context, adminID, actorID string) (int64, error) {
	var flipped int64
	now := time.Now().UTC()
	for i, entry := range f.entries {
		if entry.AdminID == adminID && !entry.CheckedOut {
			f.entries[i].CheckedOut = true
			f.entries[i].CheckedOutAt = &now
			f.entries[i].CheckedOutBy = actorID
			flipped++
		}
	}
	return flipped, nil
}

func newTestEngine() (*Engine, *fakePayments, *fakePrices, *fakeSettlements) {
	payments := newFakePayments()
	prices := newFakePrices()
	settlements := &fakeSettlements{}

	return NewEngine(payments, prices, settlements, nil), payments, prices, settlements
}

func TestPaymentStatusDefaultsToUnknown(t *testing.T) {
	engine, _, _, _ := newTestEngine()

	status, err := engine.PaymentStatus(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentUnknown, status)
}

func TestSetPaymentStatusTransitions(t *testing.T) {
	engine, payments, _, _ := newTestEngine()
	ctx := context.Background()

	changed, err := engine.MarkPaid(ctx, "alice", "100")
	require.NoError(t, err)
	assert.True(t, changed)

	status, err := engine.PaymentStatus(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, status)
	assert.Equal(t, "100", payments.records["alice"].SetBy)

	changed, err = engine.MarkUnpaid(ctx, "alice", "200")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = engine.Dismiss(ctx, "alice", "200")
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestSetPaymentStatusIdempotent(t *testing.T) {
	engine, payments, _, _ := newTestEngine()
	ctx := context.Background()

	_, err := engine.MarkPaid(ctx, "bob", "100")
	require.NoError(t, err)
	setsAfterFirst := payments.sets

	changed, err := engine.MarkPaid(ctx, "bob", "200")
	require.NoError(t, err)
	assert.False(t, changed)
	// The repeated mark must not touch the store.
	assert.Equal(t, setsAfterFirst, payments.sets)
	assert.Equal(t, "100", payments.records["bob"].SetBy)
}

func TestSetPriceRejectsNonPositive(t *testing.T) {
	engine, _, _, _ := newTestEngine()
	ctx := context.Background()

	assert.Error(t, engine.SetPrice(ctx, "alice", "0", "100"))
	assert.Error(t, engine.SetPrice(ctx, "alice", "-5", "100"))
	assert.Error(t, engine.SetPrice(ctx, "alice", "cheap", "100"))
	assert.NoError(t, engine.SetPrice(ctx, "alice", "150000", "100"))
}

func TestAddToSettlementUsesConfiguredPrice(t *testing.T) {
	engine, _, prices, settlements := newTestEngine()
	ctx := context.Background()

	prices.prices["alice"] = "150000"

	created, err := engine.AddToSettlement(ctx, "alice", "admin-1", "100")
	require.NoError(t, err)
	assert.True(t, created)
	require.Len(t, settlements.entries, 1)
	assert.Equal(t, "150000", settlements.entries[0].Price)
}

func TestAddToSettlementRefreshesExistingEntry(t *testing.T) {
	engine, _, _, settlements := newTestEngine()
	ctx := context.Background()

	created, err := engine.AddToSettlement(ctx, "alice", "admin-1", "100")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = engine.AddToSettlement(ctx, "alice", "admin-1", "200")
	require.NoError(t, err)
	assert.False(t, created)
	// One active entry per (username, admin): the list never grows.
	assert.Len(t, settlements.entries, 1)
	assert.Equal(t, "200", settlements.entries[0].AddedBy)
}

func TestAddToSettlementSameUserDifferentAdmins(t *testing.T) {
	engine, _, _, settlements := newTestEngine()
	ctx := context.Background()

	created, err := engine.AddToSettlement(ctx, "alice", "admin-1", "100")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = engine.AddToSettlement(ctx, "alice", "admin-2", "100")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, settlements.entries, 2)
}

func TestCheckoutFlipsAllActiveEntries(t *testing.T) {
	engine, _, _, _ := newTestEngine()
	ctx := context.Background()

	_, err := engine.AddToSettlement(ctx, "alice", "admin-1", "100")
	require.NoError(t, err)
	_, err = engine.AddToSettlement(ctx, "bob", "admin-1", "100")
	require.NoError(t, err)
	_, err = engine.AddToSettlement(ctx, "carol", "admin-2", "100")
	require.NoError(t, err)

	settled, err := engine.Checkout(ctx, "admin-1", "999")
	require.NoError(t, err)
	assert.Equal(t, int64(2), settled)

	// Other admins' lists are untouched.
	remaining, err := engine.ActiveEntries(ctx, "admin-2")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	// A second checkout finds nothing.
	settled, err = engine.Checkout(ctx, "admin-1", "999")
	require.NoError(t, err)
	assert.Zero(t, settled)
}

func TestCheckoutAllowsReAdding(t *testing.T) {
	engine, _, _, settlements := newTestEngine()
	ctx := context.Background()

	_, err := engine.AddToSettlement(ctx, "alice", "admin-1", "100")
	require.NoError(t, err)
	_, err = engine.Checkout(ctx, "admin-1", "999")
	require.NoError(t, err)

	created, err := engine.AddToSettlement(ctx, "alice", "admin-1", "100")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, settlements.entries, 2)
}

func TestComputeTotal(t *testing.T) {
	engine, _, prices, settlements := newTestEngine()
	ctx := context.Background()

	prices.prices["bob"] = "250000.50"

	settlements.entries = []domain.SettlementEntry{
		{ID: 1, Username: "alice", AdminID: "admin-1", Price: "150000"},
		{ID: 2, Username: "bob", AdminID: "admin-1", Price: ""},        // falls back to configured price
		{ID: 3, Username: "carol", AdminID: "admin-1", Price: ""},      // no price anywhere
		{ID: 4, Username: "dave", AdminID: "admin-1", Price: "-20"},    // non-positive
		{ID: 5, Username: "erin", AdminID: "admin-1", Price: "free"},   // non-numeric
		{ID: 6, Username: "frank", AdminID: "admin-2", Price: "99999"}, // other admin
	}

	total, err := engine.ComputeTotal(ctx, "admin-1")
	require.NoError(t, err)

	assert.Equal(t, "400000.50", total.Total)
	assert.Equal(t, 5, total.Items)
	assert.Equal(t, 3, total.ItemsWithoutPrice)
}

func TestComputeTotalEmptyList(t *testing.T) {
	engine, _, _, _ := newTestEngine()

	total, err := engine.ComputeTotal(context.Background(), "admin-1")
	require.NoError(t, err)

	assert.Equal(t, "0.00", total.Total)
	assert.Zero(t, total.Items)
	assert.Zero(t, total.ItemsWithoutPrice)
}
