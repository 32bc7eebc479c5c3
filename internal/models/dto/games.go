package dto

type SubmitGameRequest struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Genre        string  `json:"genre"`
	AgeRating    string  `json:"age_rating"`
	Price        float64 `json:"price"`
	LogoURL      string  `json:"logo_url"`
	FileURL      string  `json:"file_url"`
	ContactEmail string  `json:"contact_email"`
	EngineType   string  `json:"engine_type"`
	UserID       int64   `json:"user_id"`
}

type PurchaseGameRequest struct {
	UserID int64 `json:"user_id"`
	GameID int64 `json:"game_id"`
}

type GameStatusRequest struct {
	GameID int64  `json:"game_id"`
	Status string `json:"status"`
}

type RevokeGameRequest struct {
	UserID int64 `json:"user_id"`
	GameID int64 `json:"game_id"`
}
