package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gdestore/backend/internal/models"
	"github.com/gdestore/backend/internal/storage"
)

// fakeStore is an in-memory ledger.Store with a hook to force the
// conditional debit to fail, simulating a lost race against a concurrent
// spend.
type fakeStore struct {
	balances     map[int64]float64
	prices       map[models.ItemKind]map[int64]float64
	entitlements map[string]float64
	failDebit    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		balances:     map[int64]float64{},
		prices:       map[models.ItemKind]map[int64]float64{models.ItemGame: {}, models.ItemFrame: {}},
		entitlements: map[string]float64{},
	}
}

func entKey(userID int64, kind models.ItemKind, itemID int64) string {
	return fmt.Sprintf("%s:%d:%d", kind, userID, itemID)
}

func (f *fakeStore) ItemPrice(_ context.Context, kind models.ItemKind, itemID int64) (float64, error) {
	price, ok := f.prices[kind][itemID]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return price, nil
}

func (f *fakeStore) UserBalance(_ context.Context, userID int64) (float64, error) {
	balance, ok := f.balances[userID]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return balance, nil
}

func (f *fakeStore) DebitIfAffordable(_ context.Context, userID int64, amount float64) (bool, error) {
	balance, ok := f.balances[userID]
	if !ok || f.failDebit || balance < amount {
		return false, nil
	}
	f.balances[userID] = balance - amount
	return true, nil
}

func (f *fakeStore) Credit(_ context.Context, userID int64, amount float64) (float64, error) {
	if _, ok := f.balances[userID]; !ok {
		return 0, storage.ErrNotFound
	}
	f.balances[userID] += amount
	return f.balances[userID], nil
}

func (f *fakeStore) GrantEntitlement(_ context.Context, userID int64, kind models.ItemKind, itemID int64, pricePaid float64) (bool, error) {
	key := entKey(userID, kind, itemID)
	if _, ok := f.entitlements[key]; ok {
		return false, nil
	}
	f.entitlements[key] = pricePaid
	return true, nil
}

func (f *fakeStore) RevokeEntitlement(_ context.Context, userID int64, kind models.ItemKind, itemID int64) (float64, error) {
	key := entKey(userID, kind, itemID)
	pricePaid, ok := f.entitlements[key]
	if !ok {
		return 0, storage.ErrNotFound
	}
	delete(f.entitlements, key)
	return pricePaid, nil
}

func TestPurchaseDebitsAndGrants(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.balances[1] = 100
	store.prices[models.ItemGame][10] = 60
	engine := New(store)

	result, err := engine.Purchase(ctx, 1, models.ItemGame, 10)
	require.NoError(t, err)
	require.False(t, result.AlreadyOwned)
	require.Equal(t, 60.0, result.Price)
	require.Equal(t, 40.0, store.balances[1])
	require.Len(t, store.entitlements, 1)
}

func TestPurchaseRepeatIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.balances[1] = 100
	store.prices[models.ItemGame][10] = 60
	engine := New(store)

	_, err := engine.Purchase(ctx, 1, models.ItemGame, 10)
	require.NoError(t, err)

	result, err := engine.Purchase(ctx, 1, models.ItemGame, 10)
	require.NoError(t, err)
	require.True(t, result.AlreadyOwned)
	require.Equal(t, 40.0, store.balances[1], "repeat purchase must not double-debit")
	require.Len(t, store.entitlements, 1)
}

func TestPurchaseRepeatSucceedsWithDepletedBalance(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.balances[1] = 60
	store.prices[models.ItemGame][10] = 60
	engine := New(store)

	_, err := engine.Purchase(ctx, 1, models.ItemGame, 10)
	require.NoError(t, err)
	require.Equal(t, 0.0, store.balances[1])

	// Balance is now below the price; the repeat must still be a no-op
	// success, not an insufficient-funds failure.
	result, err := engine.Purchase(ctx, 1, models.ItemGame, 10)
	require.NoError(t, err)
	require.True(t, result.AlreadyOwned)
	require.Equal(t, 0.0, store.balances[1])
}

func TestPurchaseInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.balances[1] = 40
	store.prices[models.ItemGame][10] = 50
	engine := New(store)

	_, err := engine.Purchase(ctx, 1, models.ItemGame, 10)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, 40.0, store.balances[1])
	require.Empty(t, store.entitlements)
}

func TestPurchaseUnknownItem(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.balances[1] = 100
	engine := New(store)

	_, err := engine.Purchase(ctx, 1, models.ItemGame, 99)
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.Equal(t, 100.0, store.balances[1])
}

func TestPurchaseUnknownUser(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.prices[models.ItemFrame][5] = 10
	engine := New(store)

	_, err := engine.Purchase(ctx, 42, models.ItemFrame, 5)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPurchaseLostRaceRollsBackGrant(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.balances[1] = 100
	store.prices[models.ItemGame][10] = 60
	store.failDebit = true
	engine := New(store)

	_, err := engine.Purchase(ctx, 1, models.ItemGame, 10)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Empty(t, store.entitlements, "grant must be rolled back when the debit loses the race")
	require.Equal(t, 100.0, store.balances[1])
}

func TestRevokeRefundsRecordedPrice(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.balances[1] = 100
	store.prices[models.ItemGame][10] = 60
	engine := New(store)

	_, err := engine.Purchase(ctx, 1, models.ItemGame, 10)
	require.NoError(t, err)

	// Catalog price changes after purchase; the refund must not.
	store.prices[models.ItemGame][10] = 500

	refund, err := engine.Revoke(ctx, 1, models.ItemGame, 10)
	require.NoError(t, err)
	require.Equal(t, 54.0, refund)
	require.Equal(t, 94.0, store.balances[1])
	require.Empty(t, store.entitlements)
}

func TestRevokeNotOwned(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.balances[1] = 100
	engine := New(store)

	_, err := engine.Revoke(ctx, 1, models.ItemGame, 10)
	require.ErrorIs(t, err, ErrNoSuchEntitlement)
	require.Equal(t, 100.0, store.balances[1])
}

func TestRevokeRoundsRefundToCents(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.balances[1] = 100
	store.prices[models.ItemFrame][3] = 9.99
	engine := New(store)

	_, err := engine.Purchase(ctx, 1, models.ItemFrame, 3)
	require.NoError(t, err)

	refund, err := engine.Revoke(ctx, 1, models.ItemFrame, 3)
	require.NoError(t, err)
	require.Equal(t, 8.99, refund)
}

func TestAdjustBalanceCredit(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.balances[1] = 10
	engine := New(store)

	balance, err := engine.AdjustBalance(ctx, 1, 25)
	require.NoError(t, err)
	require.Equal(t, 35.0, balance)
}

func TestAdjustBalanceDebit(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.balances[1] = 30
	engine := New(store)

	balance, err := engine.AdjustBalance(ctx, 1, -20)
	require.NoError(t, err)
	require.Equal(t, 10.0, balance)
}

func TestAdjustBalanceUnderflowRejected(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.balances[1] = 30
	engine := New(store)

	_, err := engine.AdjustBalance(ctx, 1, -50)
	require.ErrorIs(t, err, ErrWouldUnderflow)
	require.Equal(t, 30.0, store.balances[1])
}

func TestAdjustBalanceUnknownUser(t *testing.T) {
	ctx := context.Background()
	engine := New(newFakeStore())

	_, err := engine.AdjustBalance(ctx, 7, -5)
	require.ErrorIs(t, err, storage.ErrNotFound)
}
