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

// MaintenanceKey is the system_settings row gating client access.
const MaintenanceKey = "maintenance_mode"

// AdminHandler owns the moderation console: user management, the pending
// queue, the maintenance flag, and frame creation.
type AdminHandler struct {
	store  storage.Store
	engine *ledger.Engine
	log    *logrus.Logger
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(store storage.Store, engine *ledger.Engine, log *logrus.Logger) *AdminHandler {
	return &AdminHandler{store: store, engine: engine, log: log}
}

// Register attaches the admin surface to the mux.
func (h *AdminHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/admin", h.handle)
}

func (h *AdminHandler) handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodPut:
		h.handlePut(w, r)
	case http.MethodPost:
		h.handlePost(w, r)
	default:
		respond.MethodNotAllowed(w)
	}
}

func (h *AdminHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("action") {
	case "users":
		users, err := h.store.ListUsers(r.Context(), r.URL.Query().Get("search"))
		if err != nil {
			h.fail(w, err, "list users")
			return
		}
		respond.JSON(w, http.StatusOK, users)
	case "pending_games":
		games, err := h.store.ListGamesByStatus(r.Context(), models.StatusPending)
		if err != nil {
			h.fail(w, err, "list pending games")
			return
		}
		respond.JSON(w, http.StatusOK, games)
	case "maintenance_status":
		value, err := h.store.Setting(r.Context(), MaintenanceKey)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			h.fail(w, err, "read maintenance flag")
			return
		}
		respond.JSON(w, http.StatusOK, map[string]bool{"maintenance_mode": value == "true"})
	default:
		respond.Error(w, http.StatusBadRequest, "invalid action")
	}
}

func (h *AdminHandler) handlePut(w http.ResponseWriter, r *http.Request) {
	body, action, err := readBody(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	switch action {
	case "ban_user":
		h.banUser(w, r, body)
	case "verify_user":
		h.verifyUser(w, r, body)
	case "update_balance":
		h.updateBalance(w, r, body)
	case "add_balance":
		h.addBalance(w, r, body)
	case "toggle_maintenance":
		h.toggleMaintenance(w, r, body)
	default:
		respond.Error(w, http.StatusBadRequest, "invalid action")
	}
}

func (h *AdminHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	body, action, err := readBody(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	switch action {
	case "create_frame":
		h.createFrame(w, r, body)
	default:
		respond.Error(w, http.StatusBadRequest, "invalid action")
	}
}

func (h *AdminHandler) banUser(w http.ResponseWriter, r *http.Request, body []byte) {
	var req dto.BanUserRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	banned := true
	if req.IsBanned != nil {
		banned = *req.IsBanned
	}

	if err := h.store.SetBanned(r.Context(), req.UserID, banned); err != nil {
		h.userError(w, err, "ban user")
		return
	}
	respond.Message(w, "ban status updated")
}

func (h *AdminHandler) verifyUser(w http.ResponseWriter, r *http.Request, body []byte) {
	var req dto.VerifyUserRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	verified := true
	if req.IsVerified != nil {
		verified = *req.IsVerified
	}

	if err := h.store.SetVerified(r.Context(), req.UserID, verified); err != nil {
		h.userError(w, err, "verify user")
		return
	}
	respond.Message(w, "verification status updated")
}

func (h *AdminHandler) updateBalance(w http.ResponseWriter, r *http.Request, body []byte) {
	var req dto.UpdateBalanceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.Balance < 0 {
		respond.Error(w, http.StatusBadRequest, "balance must be non-negative")
		return
	}

	if err := h.store.SetBalance(r.Context(), req.UserID, req.Balance); err != nil {
		h.userError(w, err, "update balance")
		return
	}
	respond.Message(w, "balance updated")
}

func (h *AdminHandler) addBalance(w http.ResponseWriter, r *http.Request, body []byte) {
	var req dto.AddBalanceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	newBalance, err := h.engine.AdjustBalance(r.Context(), req.UserID, req.Amount)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "user not found")
	case errors.Is(err, ledger.ErrWouldUnderflow):
		respond.Error(w, http.StatusBadRequest, "balance would go negative")
	case err != nil:
		h.fail(w, err, "add balance")
	default:
		respond.JSON(w, http.StatusOK, map[string]any{"message": "balance added", "new_balance": newBalance})
	}
}

func (h *AdminHandler) toggleMaintenance(w http.ResponseWriter, r *http.Request, body []byte) {
	var req dto.ToggleMaintenanceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	value := "false"
	if req.Enabled {
		value = "true"
	}
	if err := h.store.SetSetting(r.Context(), MaintenanceKey, value); err != nil {
		h.fail(w, err, "toggle maintenance")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"message": "maintenance mode updated", "enabled": req.Enabled})
}

func (h *AdminHandler) createFrame(w http.ResponseWriter, r *http.Request, body []byte) {
	var req dto.CreateFrameRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respond.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Price < 0 {
		respond.Error(w, http.StatusBadRequest, "price must be non-negative")
		return
	}

	id, err := h.store.CreateFrame(r.Context(), strings.TrimSpace(req.Name), req.ImageURL, req.Price)
	if err != nil {
		h.fail(w, err, "create frame")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"id": id, "message": "frame created"})
}

func (h *AdminHandler) userError(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, storage.ErrNotFound) {
		respond.Error(w, http.StatusNotFound, "user not found")
		return
	}
	h.fail(w, err, op)
}

func (h *AdminHandler) fail(w http.ResponseWriter, err error, op string) {
	h.log.WithError(err).Error(op)
	respond.Error(w, http.StatusInternalServerError, "internal error")
}
