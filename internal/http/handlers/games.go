package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/gdestore/backend/internal/http/respond"
	"github.com/gdestore/backend/internal/ledger"
	"github.com/gdestore/backend/internal/models"
	"github.com/gdestore/backend/internal/models/dto"
	"github.com/gdestore/backend/internal/storage"
)

// GamesHandler owns the catalog surface: listing, submission, purchase,
// moderation status, and revoke-with-refund.
type GamesHandler struct {
	store  storage.Store
	engine *ledger.Engine
	log    *logrus.Logger
}

// NewGamesHandler constructs the handler.
func NewGamesHandler(store storage.Store, engine *ledger.Engine, log *logrus.Logger) *GamesHandler {
	return &GamesHandler{store: store, engine: engine, log: log}
}

// Register attaches the games surface to the mux.
func (h *GamesHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/games", h.handle)
}

func (h *GamesHandler) handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodPut:
		h.updateStatus(w, r)
	case http.MethodDelete:
		h.revoke(w, r)
	default:
		respond.MethodNotAllowed(w)
	}
}

func (h *GamesHandler) list(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.StatusApproved
	}
	if !validStatus(status) {
		respond.Error(w, http.StatusBadRequest, "invalid status")
		return
	}

	games, err := h.store.ListGamesByStatus(r.Context(), status)
	if err != nil {
		h.fail(w, err, "list games")
		return
	}
	respond.JSON(w, http.StatusOK, games)
}

func (h *GamesHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	body, action, err := readBody(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	switch action {
	case "submit":
		h.submit(w, r, body)
	case "purchase":
		h.purchase(w, r, body)
	default:
		respond.Error(w, http.StatusBadRequest, "invalid action")
	}
}

func (h *GamesHandler) submit(w http.ResponseWriter, r *http.Request, body []byte) {
	var req dto.SubmitGameRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		respond.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Price < 0 {
		respond.Error(w, http.StatusBadRequest, "price must be non-negative")
		return
	}

	id, err := h.store.SubmitGame(r.Context(), models.Game{
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		Genre:        req.Genre,
		AgeRating:    req.AgeRating,
		Price:        req.Price,
		LogoURL:      req.LogoURL,
		FileURL:      req.FileURL,
		ContactEmail: req.ContactEmail,
		EngineType:   req.EngineType,
		CreatedBy:    req.UserID,
	})
	if err != nil {
		h.fail(w, err, "submit game")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"id": id, "message": "game submitted for moderation"})
}

func (h *GamesHandler) purchase(w http.ResponseWriter, r *http.Request, body []byte) {
	var req dto.PurchaseGameRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	result, err := h.engine.Purchase(r.Context(), req.UserID, models.ItemGame, req.GameID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		respond.Error(w, http.StatusBadRequest, "insufficient funds")
	case err != nil:
		h.fail(w, err, "purchase game")
	case result.AlreadyOwned:
		respond.Message(w, "game already owned")
	default:
		respond.Message(w, "game purchased")
	}
}

func (h *GamesHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	body, _, err := readBody(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	var req dto.GameStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if !validStatus(req.Status) {
		respond.Error(w, http.StatusBadRequest, "invalid status")
		return
	}

	if err := h.store.SetGameStatus(r.Context(), req.GameID, req.Status); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "game not found")
			return
		}
		h.fail(w, err, "update game status")
		return
	}
	respond.Message(w, "game status updated")
}

func (h *GamesHandler) revoke(w http.ResponseWriter, r *http.Request) {
	body, _, err := readBody(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	var req dto.RevokeGameRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	refund, err := h.engine.Revoke(r.Context(), req.UserID, models.ItemGame, req.GameID)
	if err != nil {
		if errors.Is(err, ledger.ErrNoSuchEntitlement) {
			respond.Error(w, http.StatusNotFound, "game not in library")
			return
		}
		h.fail(w, err, "revoke game")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"message": "game removed from library", "refund": refund})
}

func (h *GamesHandler) fail(w http.ResponseWriter, err error, op string) {
	h.log.WithError(err).Error(op)
	respond.Error(w, http.StatusInternalServerError, "internal error")
}

func validStatus(status string) bool {
	switch status {
	case models.StatusPending, models.StatusApproved, models.StatusRejected:
		return true
	}
	return false
}
