package models

import "time"

// Moderation states for a submitted game.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ItemKind distinguishes the two purchasable catalog item types.
type ItemKind string

const (
	ItemGame  ItemKind = "game"
	ItemFrame ItemKind = "frame"
)

// Game is a storefront catalog entry submitted by a developer.
type Game struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Genre        string    `json:"genre"`
	AgeRating    string    `json:"age_rating"`
	Price        float64   `json:"price"`
	LogoURL      string    `json:"logo_url"`
	FileURL      string    `json:"file_url"`
	ContactEmail string    `json:"contact_email,omitempty"`
	EngineType   string    `json:"engine_type,omitempty"`
	Status       string    `json:"status"`
	CreatedBy    int64     `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// Frame is a cosmetic avatar frame sold alongside games.
type Frame struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ImageURL  string    `json:"image_url"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// OwnedGame is a library entry: the game plus the recorded purchase terms.
type OwnedGame struct {
	Game
	PurchasePrice float64   `json:"purchase_price"`
	PurchasedAt   time.Time `json:"purchased_at"`
}
