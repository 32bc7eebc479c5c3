package dto

import "github.com/gdestore/backend/internal/models"

// Request bodies carry an "action" discriminator; each action decodes into
// its own typed struct below.

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

type PurchaseFrameRequest struct {
	UserID  int64 `json:"user_id"`
	FrameID int64 `json:"frame_id"`
}

type UpdateProfileRequest struct {
	UserID    int64   `json:"user_id"`
	Username  *string `json:"username,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// SetFrameRequest selects an owned frame as the avatar frame; a null
// frame_id clears the selection.
type SetFrameRequest struct {
	UserID  int64  `json:"user_id"`
	FrameID *int64 `json:"frame_id"`
}
