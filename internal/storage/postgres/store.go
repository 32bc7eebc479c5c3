package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gdestore/backend/internal/models"
	"github.com/gdestore/backend/internal/storage"
)

// Ensure Store satisfies the storage.Store interface at compile time.
var _ storage.Store = (*Store)(nil)

const userColumns = `id, email, username, password_hash, avatar_url, avatar_frame_id, role, balance, is_banned, is_verified, time_spent_hours, created_at`

const gameColumns = `id, title, description, genre, age_rating, price, logo_url, file_url, contact_email, engine_type, status, created_by, created_at`

// Store provides Postgres-backed persistence for the storefront.
type Store struct {
	pool *pgxpool.Pool
}

// New connects a pool and runs migrations.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			username TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			avatar_url TEXT NOT NULL DEFAULT '',
			avatar_frame_id BIGINT,
			role TEXT NOT NULL DEFAULT 'user',
			balance NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
			is_banned BOOLEAN NOT NULL DEFAULT FALSE,
			is_verified BOOLEAN NOT NULL DEFAULT FALSE,
			time_spent_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS games (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			genre TEXT NOT NULL DEFAULT '',
			age_rating TEXT NOT NULL DEFAULT '',
			price NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (price >= 0),
			logo_url TEXT NOT NULL DEFAULT '',
			file_url TEXT NOT NULL DEFAULT '',
			contact_email TEXT NOT NULL DEFAULT '',
			engine_type TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			created_by BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS frames (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			image_url TEXT NOT NULL DEFAULT '',
			price NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (price >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS game_purchases (
			user_id BIGINT NOT NULL REFERENCES users(id),
			game_id BIGINT NOT NULL REFERENCES games(id),
			purchase_price NUMERIC(12,2) NOT NULL,
			purchased_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, game_id)
		);`,
		`CREATE TABLE IF NOT EXISTS user_frames (
			user_id BIGINT NOT NULL REFERENCES users(id),
			frame_id BIGINT NOT NULL REFERENCES frames(id),
			purchase_price NUMERIC(12,2) NOT NULL,
			purchased_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, frame_id)
		);`,
		`CREATE TABLE IF NOT EXISTS system_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS games_status_created_idx ON games (status, created_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash, username string) (models.User, error) {
	query := `
	INSERT INTO users (email, password_hash, username)
	VALUES ($1, $2, $3)
	RETURNING ` + userColumns + `;`
	row := s.pool.QueryRow(ctx, query, email, passwordHash, username)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, err
	}
	return user, nil
}

// FindUserByEmail fetches a user by email address.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1;`, email)
	return scanUser(row)
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1;`, id)
	return scanUser(row)
}

// ListUsers returns all users, verified accounts first, optionally filtered
// by a case-insensitive username substring.
func (s *Store) ListUsers(ctx context.Context, search string) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY is_verified DESC, username;`
	args := []any{}
	if strings.TrimSpace(search) != "" {
		query = `SELECT ` + userColumns + ` FROM users WHERE username ILIKE $1 ORDER BY is_verified DESC, username;`
		args = append(args, "%"+strings.TrimSpace(search)+"%")
	}
	rows, err := s.pool.Query(ctx, query, args...)
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
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET username = COALESCE($1, username), avatar_url = COALESCE($2, avatar_url)
		WHERE id = $3;`, username, avatarURL, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetUserFrame selects the user's avatar frame; nil clears it.
func (s *Store) SetUserFrame(ctx context.Context, userID int64, frameID *int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET avatar_frame_id = $1 WHERE id = $2;`, frameID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetBanned flips the user's banned flag.
func (s *Store) SetBanned(ctx context.Context, id int64, banned bool) error {
	return s.setUserFlag(ctx, `UPDATE users SET is_banned = $1 WHERE id = $2;`, banned, id)
}

// SetVerified flips the user's verified flag.
func (s *Store) SetVerified(ctx context.Context, id int64, verified bool) error {
	return s.setUserFlag(ctx, `UPDATE users SET is_verified = $1 WHERE id = $2;`, verified, id)
}

func (s *Store) setUserFlag(ctx context.Context, query string, value bool, id int64) error {
	tag, err := s.pool.Exec(ctx, query, value, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetBalance overwrites the user's balance.
func (s *Store) SetBalance(ctx context.Context, id int64, balance float64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET balance = $1 WHERE id = $2;`, balance, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SubmitGame inserts a game in pending status and returns its id.
func (s *Store) SubmitGame(ctx context.Context, game models.Game) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO games (title, description, genre, age_rating, price, logo_url, file_url, contact_email, engine_type, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id;`,
		game.Title, game.Description, game.Genre, game.AgeRating, game.Price,
		game.LogoURL, game.FileURL, game.ContactEmail, game.EngineType, game.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ListGamesByStatus returns games in the given moderation state, newest first.
func (s *Store) ListGamesByStatus(ctx context.Context, status string) ([]models.Game, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+gameColumns+` FROM games WHERE status = $1 ORDER BY created_at DESC;`, status)
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
	tag, err := s.pool.Exec(ctx, `UPDATE games SET status = $1 WHERE id = $2;`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CreateFrame inserts a cosmetic frame and returns its id.
func (s *Store) CreateFrame(ctx context.Context, name, imageURL string, price float64) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO frames (name, image_url, price) VALUES ($1, $2, $3) RETURNING id;`,
		name, imageURL, price,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ListFrames returns the full frame catalog.
func (s *Store) ListFrames(ctx context.Context) ([]models.Frame, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, image_url, price, created_at FROM frames ORDER BY id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	frames := []models.Frame{}
	for rows.Next() {
		var frame models.Frame
		if err := rows.Scan(&frame.ID, &frame.Name, &frame.ImageURL, &frame.Price, &frame.CreatedAt); err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, rows.Err()
}

// ListUserFrameIDs returns the ids of frames the user owns.
func (s *Store) ListUserFrameIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT frame_id FROM user_frames WHERE user_id = $1 ORDER BY frame_id;`, userID)
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
	rows, err := s.pool.Query(ctx, `
		SELECT g.id, g.title, g.description, g.genre, g.age_rating, g.price, g.logo_url, g.file_url,
		       g.contact_email, g.engine_type, g.status, g.created_by, g.created_at,
		       p.purchase_price, p.purchased_at
		FROM game_purchases p
		JOIN games g ON g.id = p.game_id
		WHERE p.user_id = $1
		ORDER BY p.purchased_at DESC;`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	owned := []models.OwnedGame{}
	for rows.Next() {
		var og models.OwnedGame
		if err := rows.Scan(
			&og.ID, &og.Title, &og.Description, &og.Genre, &og.AgeRating, &og.Price,
			&og.LogoURL, &og.FileURL, &og.ContactEmail, &og.EngineType, &og.Status,
			&og.CreatedBy, &og.CreatedAt, &og.PurchasePrice, &og.PurchasedAt,
		); err != nil {
			return nil, err
		}
		owned = append(owned, og)
	}
	return owned, rows.Err()
}

// Setting reads a system setting by key.
func (s *Store) Setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM system_settings WHERE key = $1;`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	return value, err
}

// SetSetting upserts a system setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO system_settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW();`, key, value)
	return err
}

// ItemPrice reads the catalog price of a game or frame.
func (s *Store) ItemPrice(ctx context.Context, kind models.ItemKind, itemID int64) (float64, error) {
	var query string
	switch kind {
	case models.ItemGame:
		query = `SELECT price FROM games WHERE id = $1;`
	case models.ItemFrame:
		query = `SELECT price FROM frames WHERE id = $1;`
	default:
		return 0, fmt.Errorf("unknown item kind %q", kind)
	}
	var price float64
	err := s.pool.QueryRow(ctx, query, itemID).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	return price, err
}

// UserBalance reads the user's current balance.
func (s *Store) UserBalance(ctx context.Context, userID int64) (float64, error) {
	var balance float64
	err := s.pool.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1;`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	return balance, err
}

// DebitIfAffordable applies a conditional debit in a single statement so the
// affordability check cannot race a concurrent spend. It reports whether the
// debit was applied.
func (s *Store) DebitIfAffordable(ctx context.Context, userID int64, amount float64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET balance = balance - $1 WHERE id = $2 AND balance >= $1;`,
		amount, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Credit adds to the user's balance and returns the new balance.
func (s *Store) Credit(ctx context.Context, userID int64, amount float64) (float64, error) {
	var balance float64
	err := s.pool.QueryRow(ctx,
		`UPDATE users SET balance = balance + $1 WHERE id = $2 RETURNING balance;`,
		amount, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	return balance, err
}

// GrantEntitlement records ownership with the price paid; a duplicate grant
// is a no-op. It reports whether a new record was inserted.
func (s *Store) GrantEntitlement(ctx context.Context, userID int64, kind models.ItemKind, itemID int64, pricePaid float64) (bool, error) {
	var query string
	switch kind {
	case models.ItemGame:
		query = `INSERT INTO game_purchases (user_id, game_id, purchase_price) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING;`
	case models.ItemFrame:
		query = `INSERT INTO user_frames (user_id, frame_id, purchase_price) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING;`
	default:
		return false, fmt.Errorf("unknown item kind %q", kind)
	}
	tag, err := s.pool.Exec(ctx, query, userID, itemID, pricePaid)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RevokeEntitlement deletes the ownership record and returns the price that
// was paid for it.
func (s *Store) RevokeEntitlement(ctx context.Context, userID int64, kind models.ItemKind, itemID int64) (float64, error) {
	var query string
	switch kind {
	case models.ItemGame:
		query = `DELETE FROM game_purchases WHERE user_id = $1 AND game_id = $2 RETURNING purchase_price;`
	case models.ItemFrame:
		query = `DELETE FROM user_frames WHERE user_id = $1 AND frame_id = $2 RETURNING purchase_price;`
	default:
		return 0, fmt.Errorf("unknown item kind %q", kind)
	}
	var pricePaid float64
	err := s.pool.QueryRow(ctx, query, userID, itemID).Scan(&pricePaid)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	return pricePaid, err
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.AvatarURL,
		&user.AvatarFrameID, &user.Role, &user.Balance, &user.IsBanned, &user.IsVerified,
		&user.TimeSpentHours, &user.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func scanGame(row pgx.Row) (models.Game, error) {
	var game models.Game
	if err := row.Scan(
		&game.ID, &game.Title, &game.Description, &game.Genre, &game.AgeRating, &game.Price,
		&game.LogoURL, &game.FileURL, &game.ContactEmail, &game.EngineType, &game.Status,
		&game.CreatedBy, &game.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Game{}, storage.ErrNotFound
		}
		return models.Game{}, err
	}
	return game, nil
}
