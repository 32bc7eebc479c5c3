// Package ledger implements the entitlement engine: the rules governing how
// balance and ownership move between users and priced catalog items.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/gdestore/backend/internal/models"
	"github.com/gdestore/backend/internal/storage"
)

// RefundRate is the fraction of the recorded purchase price returned to the
// user's balance when an entitlement is revoked.
const RefundRate = 0.9

// ErrInsufficientFunds indicates the user cannot afford the item.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrNoSuchEntitlement indicates a revoke targeted an item the user does not own.
var ErrNoSuchEntitlement = errors.New("entitlement not found")

// ErrWouldUnderflow indicates a balance adjustment would drive the balance negative.
var ErrWouldUnderflow = errors.New("balance would underflow")

// Store is the narrow persistence surface the engine operates through.
// DebitIfAffordable must be an atomically applied conditional update so the
// affordability check cannot race a concurrent spend.
type Store interface {
	ItemPrice(ctx context.Context, kind models.ItemKind, itemID int64) (float64, error)
	UserBalance(ctx context.Context, userID int64) (float64, error)
	DebitIfAffordable(ctx context.Context, userID int64, amount float64) (bool, error)
	Credit(ctx context.Context, userID int64, amount float64) (float64, error)
	GrantEntitlement(ctx context.Context, userID int64, kind models.ItemKind, itemID int64, pricePaid float64) (bool, error)
	RevokeEntitlement(ctx context.Context, userID int64, kind models.ItemKind, itemID int64) (float64, error)
}

// Engine applies purchase, revoke, and balance-adjustment rules.
type Engine struct {
	store Store
}

// New constructs an engine over the given store.
func New(store Store) *Engine {
	return &Engine{store: store}
}

// PurchaseResult reports the outcome of a purchase attempt.
type PurchaseResult struct {
	Price        float64
	AlreadyOwned bool
}

// Purchase grants the user an entitlement to the item and debits exactly the
// item's current price. A repeat purchase of an owned item is an idempotent
// no-op: no charge, no error, regardless of remaining balance. The debit only
// happens when the grant actually inserted; if the conditional debit then
// fails, the fresh grant is rolled back and ErrInsufficientFunds returned, so
// balance never rests below zero and a failed purchase leaves no entitlement.
func (e *Engine) Purchase(ctx context.Context, userID int64, kind models.ItemKind, itemID int64) (PurchaseResult, error) {
	price, err := e.store.ItemPrice(ctx, kind, itemID)
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("item price: %w", err)
	}

	// Existence check only: affordability is decided by the conditional
	// debit below, after the idempotency check, so a repeat purchase of an
	// owned item never fails on funds.
	if _, err := e.store.UserBalance(ctx, userID); err != nil {
		return PurchaseResult{}, fmt.Errorf("user balance: %w", err)
	}

	inserted, err := e.store.GrantEntitlement(ctx, userID, kind, itemID, price)
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("grant entitlement: %w", err)
	}
	if !inserted {
		return PurchaseResult{Price: price, AlreadyOwned: true}, nil
	}

	ok, err := e.store.DebitIfAffordable(ctx, userID, price)
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("debit: %w", err)
	}
	if !ok {
		if _, rerr := e.store.RevokeEntitlement(ctx, userID, kind, itemID); rerr != nil && !errors.Is(rerr, storage.ErrNotFound) {
			return PurchaseResult{}, fmt.Errorf("roll back grant: %w", rerr)
		}
		return PurchaseResult{}, ErrInsufficientFunds
	}

	return PurchaseResult{Price: price}, nil
}

// Revoke removes the user's entitlement to the item and credits back
// RefundRate of the price recorded at purchase time, regardless of the
// item's current catalog price. It returns the refund amount credited.
func (e *Engine) Revoke(ctx context.Context, userID int64, kind models.ItemKind, itemID int64) (float64, error) {
	pricePaid, err := e.store.RevokeEntitlement(ctx, userID, kind, itemID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, ErrNoSuchEntitlement
		}
		return 0, fmt.Errorf("revoke entitlement: %w", err)
	}

	refund := round2(pricePaid * RefundRate)
	if _, err := e.store.Credit(ctx, userID, refund); err != nil {
		return 0, fmt.Errorf("credit refund: %w", err)
	}
	return refund, nil
}

// AdjustBalance applies an administrative delta to the user's balance and
// returns the resulting balance. Negative deltas are underflow-guarded:
// a delta that would drive the balance below zero fails with
// ErrWouldUnderflow and leaves the balance untouched.
func (e *Engine) AdjustBalance(ctx context.Context, userID int64, delta float64) (float64, error) {
	if delta >= 0 {
		balance, err := e.store.Credit(ctx, userID, delta)
		if err != nil {
			return 0, fmt.Errorf("credit: %w", err)
		}
		return balance, nil
	}

	ok, err := e.store.DebitIfAffordable(ctx, userID, -delta)
	if err != nil {
		return 0, fmt.Errorf("debit: %w", err)
	}
	if !ok {
		// Distinguish a missing user from an underflow.
		if _, berr := e.store.UserBalance(ctx, userID); berr != nil {
			return 0, fmt.Errorf("user balance: %w", berr)
		}
		return 0, ErrWouldUnderflow
	}
	return e.store.UserBalance(ctx, userID)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
