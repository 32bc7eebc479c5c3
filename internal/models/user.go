package models

import "time"

// Roles assignable to a user account.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User captures application-facing fields for a storefront account.
type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"`
	AvatarURL      string    `json:"avatar_url"`
	AvatarFrameID  *int64    `json:"avatar_frame_id,omitempty"`
	Role           string    `json:"role"`
	Balance        float64   `json:"balance"`
	IsBanned       bool      `json:"is_banned"`
	IsVerified     bool      `json:"is_verified"`
	TimeSpentHours float64   `json:"time_spent_hours"`
	CreatedAt      time.Time `json:"created_at"`
}
