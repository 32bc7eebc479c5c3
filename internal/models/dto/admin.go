package dto

// Flag fields are pointers so an omitted value defaults to true, matching
// the ban/verify toggle semantics the admin console relies on.

type BanUserRequest struct {
	UserID   int64 `json:"user_id"`
	IsBanned *bool `json:"is_banned"`
}

type VerifyUserRequest struct {
	UserID     int64 `json:"user_id"`
	IsVerified *bool `json:"is_verified"`
}

type UpdateBalanceRequest struct {
	UserID  int64   `json:"user_id"`
	Balance float64 `json:"balance"`
}

type AddBalanceRequest struct {
	UserID int64   `json:"user_id"`
	Amount float64 `json:"amount"`
}

type ToggleMaintenanceRequest struct {
	Enabled bool `json:"enabled"`
}

type CreateFrameRequest struct {
	Name     string  `json:"name"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
}
