package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/gdestore/backend/internal/auth"
	"github.com/gdestore/backend/internal/http/respond"
	"github.com/gdestore/backend/internal/ledger"
	"github.com/gdestore/backend/internal/models"
	"github.com/gdestore/backend/internal/models/dto"
	"github.com/gdestore/backend/internal/ratelimit"
	"github.com/gdestore/backend/internal/storage"
)

// AuthHandler owns the account surface: login, register, library, frames.
type AuthHandler struct {
	store   storage.Store
	engine  *ledger.Engine
	tokens  *auth.TokenManager
	limiter *ratelimit.Limiter
	log     *logrus.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(store storage.Store, engine *ledger.Engine, tokens *auth.TokenManager, limiter *ratelimit.Limiter, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{store: store, engine: engine, tokens: tokens, limiter: limiter, log: log}
}

// Register attaches the auth surface to the mux.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/auth", h.handle)
}

func (h *AuthHandler) handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodPut:
		h.handlePut(w, r)
	default:
		respond.MethodNotAllowed(w)
	}
}

func (h *AuthHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("action") {
	case "library":
		userID, err := queryInt64(r, "user_id")
		if err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		games, err := h.store.ListUserGames(r.Context(), userID)
		if err != nil {
			h.fail(w, err, "list library")
			return
		}
		respond.JSON(w, http.StatusOK, games)
	case "frames":
		frames, err := h.store.ListFrames(r.Context())
		if err != nil {
			h.fail(w, err, "list frames")
			return
		}
		respond.JSON(w, http.StatusOK, frames)
	case "user_frames":
		userID, err := queryInt64(r, "user_id")
		if err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		ids, err := h.store.ListUserFrameIDs(r.Context(), userID)
		if err != nil {
			h.fail(w, err, "list user frames")
			return
		}
		respond.JSON(w, http.StatusOK, ids)
	default:
		respond.Error(w, http.StatusBadRequest, "invalid action")
	}
}

func (h *AuthHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	body, action, err := readBody(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	switch action {
	case "login":
		h.login(w, r, body)
	case "register":
		h.register(w, r, body)
	case "purchase_frame":
		h.purchaseFrame(w, r, body)
	default:
		respond.Error(w, http.StatusBadRequest, "invalid action")
	}
}

func (h *AuthHandler) handlePut(w http.ResponseWriter, r *http.Request) {
	body, action, err := readBody(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	switch action {
	case "update_profile":
		h.updateProfile(w, r, body)
	case "set_frame":
		h.setFrame(w, r, body)
	default:
		respond.Error(w, http.StatusBadRequest, "invalid action")
	}
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, body []byte) {
	if !h.limiter.Allow(clientIP(r)) {
		respond.Error(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	var req dto.LoginRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respond.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.store.FindUserByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.fail(w, err, "find user")
		return
	}
	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		respond.Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if user.IsBanned {
		respond.Error(w, http.StatusForbidden, "account is banned")
		return
	}

	token, err := h.tokens.Generate(user)
	if err != nil {
		h.fail(w, err, "generate token")
		return
	}
	respond.JSON(w, http.StatusOK, dto.LoginResponse{Token: token, User: user})
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request, body []byte) {
	var req dto.RegisterRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := validateCredentials(req.Email, req.Username, req.Password); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.fail(w, err, "hash password")
		return
	}

	user, err := h.store.CreateUser(r.Context(), strings.TrimSpace(req.Email), passwordHash, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			respond.Error(w, http.StatusConflict, "email already registered")
			return
		}
		h.fail(w, err, "create user")
		return
	}

	token, err := h.tokens.Generate(user)
	if err != nil {
		h.fail(w, err, "generate token")
		return
	}
	respond.JSON(w, http.StatusOK, dto.LoginResponse{Token: token, User: user})
}

func (h *AuthHandler) purchaseFrame(w http.ResponseWriter, r *http.Request, body []byte) {
	var req dto.PurchaseFrameRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	result, err := h.engine.Purchase(r.Context(), req.UserID, models.ItemFrame, req.FrameID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		respond.Error(w, http.StatusBadRequest, "insufficient funds")
	case err != nil:
		h.fail(w, err, "purchase frame")
	case result.AlreadyOwned:
		respond.Message(w, "frame already owned")
	default:
		respond.Message(w, "frame purchased")
	}
}

func (h *AuthHandler) updateProfile(w http.ResponseWriter, r *http.Request, body []byte) {
	var req dto.UpdateProfileRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.Username != nil && strings.TrimSpace(*req.Username) == "" {
		respond.Error(w, http.StatusBadRequest, "username must not be empty")
		return
	}

	if err := h.store.UpdateProfile(r.Context(), req.UserID, req.Username, req.AvatarURL); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.fail(w, err, "update profile")
		return
	}
	respond.Message(w, "profile updated")
}

func (h *AuthHandler) setFrame(w http.ResponseWriter, r *http.Request, body []byte) {
	var req dto.SetFrameRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	if req.FrameID != nil {
		owned, err := h.store.ListUserFrameIDs(r.Context(), req.UserID)
		if err != nil {
			h.fail(w, err, "list user frames")
			return
		}
		if !containsID(owned, *req.FrameID) {
			respond.Error(w, http.StatusBadRequest, "frame not owned")
			return
		}
	}

	if err := h.store.SetUserFrame(r.Context(), req.UserID, req.FrameID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.fail(w, err, "set frame")
		return
	}
	respond.Message(w, "frame selected")
}

func (h *AuthHandler) fail(w http.ResponseWriter, err error, op string) {
	h.log.WithError(err).Error(op)
	respond.Error(w, http.StatusInternalServerError, "internal error")
}

func validateCredentials(email, username, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(username) == "" {
		return errors.New("email and username are required")
	}
	if len(password) < 8 || !utf8.ValidString(password) {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
