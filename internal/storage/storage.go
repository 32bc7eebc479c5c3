package storage

import (
	"context"
	"errors"

	"github.com/gdestore/backend/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// Store captures every persistence operation the handlers and the
// entitlement engine need. Both the Postgres and SQLite backends satisfy it.
type Store interface {
	// Users.
	CreateUser(ctx context.Context, email, passwordHash, username string) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUser(ctx context.Context, id int64) (models.User, error)
	ListUsers(ctx context.Context, search string) ([]models.User, error)
	UpdateProfile(ctx context.Context, id int64, username, avatarURL *string) error
	SetUserFrame(ctx context.Context, userID int64, frameID *int64) error
	SetBanned(ctx context.Context, id int64, banned bool) error
	SetVerified(ctx context.Context, id int64, verified bool) error
	SetBalance(ctx context.Context, id int64, balance float64) error

	// Games.
	SubmitGame(ctx context.Context, game models.Game) (int64, error)
	ListGamesByStatus(ctx context.Context, status string) ([]models.Game, error)
	SetGameStatus(ctx context.Context, id int64, status string) error

	// Frames and libraries.
	CreateFrame(ctx context.Context, name, imageURL string, price float64) (int64, error)
	ListFrames(ctx context.Context) ([]models.Frame, error)
	ListUserFrameIDs(ctx context.Context, userID int64) ([]int64, error)
	ListUserGames(ctx context.Context, userID int64) ([]models.OwnedGame, error)

	// Settings.
	Setting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Ledger capabilities consumed by the entitlement engine.
	ItemPrice(ctx context.Context, kind models.ItemKind, itemID int64) (float64, error)
	UserBalance(ctx context.Context, userID int64) (float64, error)
	DebitIfAffordable(ctx context.Context, userID int64, amount float64) (bool, error)
	Credit(ctx context.Context, userID int64, amount float64) (float64, error)
	GrantEntitlement(ctx context.Context, userID int64, kind models.ItemKind, itemID int64, pricePaid float64) (bool, error)
	RevokeEntitlement(ctx context.Context, userID int64, kind models.ItemKind, itemID int64) (float64, error)
}
