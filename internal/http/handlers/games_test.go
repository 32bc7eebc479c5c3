package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gdestore/backend/internal/models"
)

func (e *testEnv) approvedGame(t *testing.T, title string, price float64) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := e.store.SubmitGame(ctx, models.Game{Title: title, Price: price})
	require.NoError(t, err)
	require.NoError(t, e.store.SetGameStatus(ctx, id, models.StatusApproved))
	return id
}

func TestSubmitGame(t *testing.T) {
	env := newTestEnv(t)
	userID := env.registerUser(t, "dev@example.com", "dev")

	var out map[string]any
	status := env.do(t, http.MethodPost, "/games", map[string]any{
		"action":      "submit",
		"title":       "Space Quest",
		"description": "A space adventure",
		"genre":       "adventure",
		"age_rating":  "12+",
		"price":       19.99,
		"user_id":     userID,
	}, &out)
	require.Equal(t, http.StatusOK, status)
	require.NotZero(t, out["id"])

	// New submissions land in the pending queue, not the public catalog.
	var approved []map[string]any
	status = env.do(t, http.MethodGet, "/games", nil, &approved)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, approved)

	var pending []map[string]any
	status = env.do(t, http.MethodGet, "/games?status=pending", nil, &pending)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, pending, 1)
	require.Equal(t, "Space Quest", pending[0]["title"])
}

func TestSubmitGameValidation(t *testing.T) {
	env := newTestEnv(t)

	status := env.do(t, http.MethodPost, "/games", map[string]any{
		"action": "submit",
		"title":  "  ",
	}, nil)
	require.Equal(t, http.StatusBadRequest, status)

	status = env.do(t, http.MethodPost, "/games", map[string]any{
		"action": "submit",
		"title":  "Quest",
		"price":  -5,
	}, nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestListGamesInvalidStatus(t *testing.T) {
	env := newTestEnv(t)

	status := env.do(t, http.MethodGet, "/games?status=bogus", nil, nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestModerationStatusUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.store.SubmitGame(ctx, models.Game{Title: "Quest", Price: 10})
	require.NoError(t, err)

	status := env.do(t, http.MethodPut, "/games", map[string]any{
		"game_id": id,
		"status":  "approved",
	}, nil)
	require.Equal(t, http.StatusOK, status)

	var approved []map[string]any
	env.do(t, http.MethodGet, "/games", nil, &approved)
	require.Len(t, approved, 1)

	status = env.do(t, http.MethodPut, "/games", map[string]any{
		"game_id": id,
		"status":  "bogus",
	}, nil)
	require.Equal(t, http.StatusBadRequest, status)

	status = env.do(t, http.MethodPut, "/games", map[string]any{
		"game_id": 999,
		"status":  "rejected",
	}, nil)
	require.Equal(t, http.StatusNotFound, status)
}

// TestPurchaseRefundLifecycle walks the full balance-transfer scenario:
// buy at 60 from a balance of 100, repeat the purchase without a second
// debit, then revoke for a 90% refund of the recorded price.
func TestPurchaseRefundLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := env.registerUser(t, "alice@example.com", "alice")
	require.NoError(t, env.store.SetBalance(ctx, userID, 100))
	gameID := env.approvedGame(t, "Quest", 60)

	buy := map[string]any{"action": "purchase", "user_id": userID, "game_id": gameID}

	status := env.do(t, http.MethodPost, "/games", buy, nil)
	require.Equal(t, http.StatusOK, status)

	balance, err := env.store.UserBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 40.0, balance)

	// Repeat purchase: no second debit, entitlement stays unique.
	var out map[string]any
	status = env.do(t, http.MethodPost, "/games", buy, &out)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "game already owned", out["message"])

	balance, err = env.store.UserBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 40.0, balance)

	var library []map[string]any
	env.do(t, http.MethodGet, "/auth?action=library&user_id="+itoa(userID), nil, &library)
	require.Len(t, library, 1)

	var refundOut map[string]any
	status = env.do(t, http.MethodDelete, "/games", map[string]any{
		"user_id": userID,
		"game_id": gameID,
	}, &refundOut)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 54.0, refundOut["refund"])

	balance, err = env.store.UserBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 94.0, balance)

	library = nil
	env.do(t, http.MethodGet, "/auth?action=library&user_id="+itoa(userID), nil, &library)
	require.Empty(t, library)
}

func TestPurchaseInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := env.registerUser(t, "alice@example.com", "alice")
	require.NoError(t, env.store.SetBalance(ctx, userID, 40))
	gameID := env.approvedGame(t, "Quest", 50)

	var out map[string]any
	status := env.do(t, http.MethodPost, "/games", map[string]any{
		"action":  "purchase",
		"user_id": userID,
		"game_id": gameID,
	}, &out)
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, out, "error")

	balance, err := env.store.UserBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 40.0, balance)

	var library []map[string]any
	env.do(t, http.MethodGet, "/auth?action=library&user_id="+itoa(userID), nil, &library)
	require.Empty(t, library)
}

func TestPurchaseUnknownGame(t *testing.T) {
	env := newTestEnv(t)
	userID := env.registerUser(t, "alice@example.com", "alice")

	status := env.do(t, http.MethodPost, "/games", map[string]any{
		"action":  "purchase",
		"user_id": userID,
		"game_id": 404,
	}, nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestRevokeNotOwned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := env.registerUser(t, "alice@example.com", "alice")
	require.NoError(t, env.store.SetBalance(ctx, userID, 100))
	gameID := env.approvedGame(t, "Quest", 60)

	status := env.do(t, http.MethodDelete, "/games", map[string]any{
		"user_id": userID,
		"game_id": gameID,
	}, nil)
	require.Equal(t, http.StatusNotFound, status)

	balance, err := env.store.UserBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 100.0, balance)
}

func TestGamesMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	status := env.do(t, http.MethodPatch, "/games", nil, nil)
	require.Equal(t, http.StatusMethodNotAllowed, status)
}
