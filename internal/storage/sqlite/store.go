// Package sqlite provides a SQLite-backed store for local development and
// hermetic tests, mirroring the Postgres store's behavior.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/gdestore/backend/internal/models"
	"github.com/gdestore/backend/internal/storage"
)

// Ensure Store satisfies the storage.Store interface at compile time.
var _ storage.Store = (*Store)(nil)

const userColumns = `id, email, username, password_hash, avatar_url, avatar_frame_id, role, balance, is_banned, is_verified, time_spent_hours, created_at`

const gameColumns = `id, title, description, genre, age_rating, price, logo_url, file_url, contact_email, engine_type, status, created_by, created_at`

// Store persists storefront state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (or creates) a SQLite store at path and applies the schema.
// ":memory:" is accepted for tests.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	if path == ":memory:" {
		dsn = path
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// An in-memory database exists per connection; keep the pool at one.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT UNIQUE NOT NULL,
			username TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			avatar_url TEXT NOT NULL DEFAULT '',
			avatar_frame_id INTEGER,
			role TEXT NOT NULL DEFAULT 'user',
			balance REAL NOT NULL DEFAULT 0 CHECK (balance >= 0),
			is_banned INTEGER NOT NULL DEFAULT 0,
			is_verified INTEGER NOT NULL DEFAULT 0,
			time_spent_hours REAL NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS games (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			genre TEXT NOT NULL DEFAULT '',
			age_rating TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL DEFAULT 0 CHECK (price >= 0),
			logo_url TEXT NOT NULL DEFAULT '',
			file_url TEXT NOT NULL DEFAULT '',
			contact_email TEXT NOT NULL DEFAULT '',
			engine_type TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			created_by INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS frames (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			image_url TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL DEFAULT 0 CHECK (price >= 0),
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS game_purchases (
			user_id INTEGER NOT NULL REFERENCES users(id),
			game_id INTEGER NOT NULL REFERENCES games(id),
			purchase_price REAL NOT NULL,
			purchased_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, game_id)
		);`,
		`CREATE TABLE IF NOT EXISTS user_frames (
			user_id INTEGER NOT NULL REFERENCES users(id),
			frame_id INTEGER NOT NULL REFERENCES frames(id),
			purchase_price REAL NOT NULL,
			purchased_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, frame_id)
		);`,
		`CREATE TABLE IF NOT EXISTS system_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nowMillis() int64 {
	return toMillis(time.Now())
}

func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE
}

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash, username string) (models.User, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, username, created_at) VALUES (?, ?, ?, ?);`,
		email, passwordHash, username, nowMillis())
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, err
	}
	return s.GetUser(ctx, id)
}

// FindUserByEmail fetches a user by email address.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?;`, email)
	return scanUser(row)
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?;`, id)
	return scanUser(row)
}

// ListUsers returns all users, verified accounts first, optionally filtered
// by a case-insensitive username substring.
func (s *Store) ListUsers(ctx context.Context, search string) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY is_verified DESC, username;`
	args := []any{}
	if strings.TrimSpace(search) != "" {
		query = `SELECT ` + userColumns + ` FROM users WHERE LOWER(username) LIKE LOWER(?) ORDER BY is_verified DESC, username;`
		args = append(args, "%"+strings.TrimSpace(search)+"%")
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateProfile applies the non-nil profile fields.
func (s *Store) UpdateProfile(ctx context.Context, id int64, username, avatarURL *string) error {
	res, err := s.sqlDB.ExecContext(ctx, `
		UPDATE users
		SET username = COALESCE(?, username), avatar_url = COALESCE(?, avatar_url)
		WHERE id = ?;`, username, avatarURL, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetUserFrame selects the user's avatar frame; nil clears it.
func (s *Store) SetUserFrame(ctx context.Context, userID int64, frameID *int64) error {
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE users SET avatar_frame_id = ? WHERE id = ?;`, frameID, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetBanned flips the user's banned flag.
func (s *Store) SetBanned(ctx context.Context, id int64, banned bool) error {
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE users SET is_banned = ? WHERE id = ?;`, banned, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetVerified flips the user's verified flag.
func (s *Store) SetVerified(ctx context.Context, id int64, verified bool) error {
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE users SET is_verified = ? WHERE id = ?;`, verified, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetBalance overwrites the user's balance.
func (s *Store) SetBalance(ctx context.Context, id int64, balance float64) error {
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE users SET balance = ? WHERE id = ?;`, balance, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SubmitGame inserts a game in pending status and returns its id.
func (s *Store) SubmitGame(ctx context.Context, game models.Game) (int64, error) {
	res, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO games (title, description, genre, age_rating, price, logo_url, file_url, contact_email, engine_type, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		game.Title, game.Description, game.Genre, game.AgeRating, game.Price,
		game.LogoURL, game.FileURL, game.ContactEmail, game.EngineType, game.CreatedBy, nowMillis())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListGamesByStatus returns games in the given moderation state, newest first.
func (s *Store) ListGamesByStatus(ctx context.Context, status string) ([]models.Game, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE status = ? ORDER BY created_at DESC, id DESC;`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	games := []models.Game{}
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

// SetGameStatus moves a game through moderation.
func (s *Store) SetGameStatus(ctx context.Context, id int64, status string) error {
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE games SET status = ? WHERE id = ?;`, status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CreateFrame inserts a cosmetic frame and returns its id.
func (s *Store) CreateFrame(ctx context.Context, name, imageURL string, price float64) (int64, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO frames (name, image_url, price, created_at) VALUES (?, ?, ?, ?);`,
		name, imageURL, price, nowMillis())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListFrames returns the full frame catalog.
func (s *Store) ListFrames(ctx context.Context) ([]models.Frame, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, name, image_url, price, created_at FROM frames ORDER BY id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	frames := []models.Frame{}
	for rows.Next() {
		var frame models.Frame
		var createdAt int64
		if err := rows.Scan(&frame.ID, &frame.Name, &frame.ImageURL, &frame.Price, &createdAt); err != nil {
			return nil, err
		}
		frame.CreatedAt = fromMillis(createdAt)
		frames = append(frames, frame)
	}
	return frames, rows.Err()
}

// ListUserFrameIDs returns the ids of frames the user owns.
func (s *Store) ListUserFrameIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT frame_id FROM user_frames WHERE user_id = ? ORDER BY frame_id;`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListUserGames returns the user's library with purchase terms.
func (s *Store) ListUserGames(ctx context.Context, userID int64) ([]models.OwnedGame, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT g.id, g.title, g.description, g.genre, g.age_rating, g.price, g.logo_url, g.file_url,
		       g.contact_email, g.engine_type, g.status, g.created_by, g.created_at,
		       p.purchase_price, p.purchased_at
		FROM game_purchases p
		JOIN games g ON g.id = p.game_id
		WHERE p.user_id = ?
		ORDER BY p.purchased_at DESC, g.id DESC;`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	owned := []models.OwnedGame{}
	for rows.Next() {
		var og models.OwnedGame
		var createdAt, purchasedAt int64
		if err := rows.Scan(
			&og.ID, &og.Title, &og.Description, &og.Genre, &og.AgeRating, &og.Price,
			&og.LogoURL, &og.FileURL, &og.ContactEmail, &og.EngineType, &og.Status,
			&og.CreatedBy, &createdAt, &og.PurchasePrice, &purchasedAt,
		); err != nil {
			return nil, err
		}
		og.CreatedAt = fromMillis(createdAt)
		og.PurchasedAt = fromMillis(purchasedAt)
		owned = append(owned, og)
	}
	return owned, rows.Err()
}

// Setting reads a system setting by key.
func (s *Store) Setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM system_settings WHERE key = ?;`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	return value, err
}

// SetSetting upserts a system setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO system_settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;`,
		key, value, nowMillis())
	return err
}

// ItemPrice reads the catalog price of a game or frame.
func (s *Store) ItemPrice(ctx context.Context, kind models.ItemKind, itemID int64) (float64, error) {
	var query string
	switch kind {
	case models.ItemGame:
		query = `SELECT price FROM games WHERE id = ?;`
	case models.ItemFrame:
		query = `SELECT price FROM frames WHERE id = ?;`
	default:
		return 0, fmt.Errorf("unknown item kind %q", kind)
	}
	var price float64
	err := s.sqlDB.QueryRowContext(ctx, query, itemID).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	return price, err
}

// UserBalance reads the user's current balance.
func (s *Store) UserBalance(ctx context.Context, userID int64) (float64, error) {
	var balance float64
	err := s.sqlDB.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ?;`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	return balance, err
}

// DebitIfAffordable applies a conditional debit in a single statement and
// reports whether it was applied.
func (s *Store) DebitIfAffordable(ctx context.Context, userID int64, amount float64) (bool, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE users SET balance = balance - ? WHERE id = ? AND balance >= ?;`,
		amount, userID, amount)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Credit adds to the user's balance and returns the new balance.
func (s *Store) Credit(ctx context.Context, userID int64, amount float64) (float64, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE users SET balance = balance + ? WHERE id = ?;`, amount, userID)
	if err != nil {
		return 0, err
	}
	if err := requireRow(res); err != nil {
		return 0, err
	}
	var balance float64
	if err := tx.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ?;`, userID).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, tx.Commit()
}

// GrantEntitlement records ownership with the price paid; a duplicate grant
// is a no-op. It reports whether a new record was inserted.
func (s *Store) GrantEntitlement(ctx context.Context, userID int64, kind models.ItemKind, itemID int64, pricePaid float64) (bool, error) {
	var query string
	switch kind {
	case models.ItemGame:
		query = `INSERT OR IGNORE INTO game_purchases (user_id, game_id, purchase_price, purchased_at) VALUES (?, ?, ?, ?);`
	case models.ItemFrame:
		query = `INSERT OR IGNORE INTO user_frames (user_id, frame_id, purchase_price, purchased_at) VALUES (?, ?, ?, ?);`
	default:
		return false, fmt.Errorf("unknown item kind %q", kind)
	}
	res, err := s.sqlDB.ExecContext(ctx, query, userID, itemID, pricePaid, nowMillis())
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// RevokeEntitlement deletes the ownership record and returns the price that
// was paid for it.
func (s *Store) RevokeEntitlement(ctx context.Context, userID int64, kind models.ItemKind, itemID int64) (float64, error) {
	var selectQuery, deleteQuery string
	switch kind {
	case models.ItemGame:
		selectQuery = `SELECT purchase_price FROM game_purchases WHERE user_id = ? AND game_id = ?;`
		deleteQuery = `DELETE FROM game_purchases WHERE user_id = ? AND game_id = ?;`
	case models.ItemFrame:
		selectQuery = `SELECT purchase_price FROM user_frames WHERE user_id = ? AND frame_id = ?;`
		deleteQuery = `DELETE FROM user_frames WHERE user_id = ? AND frame_id = ?;`
	default:
		return 0, fmt.Errorf("unknown item kind %q", kind)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var pricePaid float64
	err = tx.QueryRowContext(ctx, selectQuery, userID, itemID).Scan(&pricePaid)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, deleteQuery, userID, itemID); err != nil {
		return 0, err
	}
	return pricePaid, tx.Commit()
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var user models.User
	var createdAt int64
	if err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.AvatarURL,
		&user.AvatarFrameID, &user.Role, &user.Balance, &user.IsBanned, &user.IsVerified,
		&user.TimeSpentHours, &createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	user.CreatedAt = fromMillis(createdAt)
	return user, nil
}

func scanGame(row rowScanner) (models.Game, error) {
	var game models.Game
	var createdAt int64
	if err := row.Scan(
		&game.ID, &game.Title, &game.Description, &game.Genre, &game.AgeRating, &game.Price,
		&game.LogoURL, &game.FileURL, &game.ContactEmail, &game.EngineType, &game.Status,
		&game.CreatedBy, &createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Game{}, storage.ErrNotFound
		}
		return models.Game{}, err
	}
	game.CreatedAt = fromMillis(createdAt)
	return game, nil
}
