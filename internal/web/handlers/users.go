package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UsersHandler serves the administrative identity endpoints.
type UsersHandler struct {
	identities IdentityReader
	recognizer Recognizer
	logger     *zap.Logger
}

// NewUsersHandler creates a users handler.
func NewUsersHandler(identities IdentityReader, recognizer Recognizer, logger *zap.Logger) *UsersHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UsersHandler{
		identities: identities,
		recognizer: recognizer,
		logger:     logger,
	}
}

// UserListResponse is the response for the user listing endpoint.
type UserListResponse struct {
	Total int                `json:"total"`
	Users []IdentityResponse `json:"users"`
}

// List handles GET /users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	identities, err := h.identities.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list identities", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	users := make([]IdentityResponse, 0, len(identities))
	for i := range identities {
		users = append(users, *identityResponse(&identities[i]))
	}

	respondJSON(w, http.StatusOK, UserListResponse{
		Total: len(users),
		Users: users,
	})
}

// Get handles GET /users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	identity, err := h.identities.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load identity", zap.Int64("identity_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to load user")
		return
	}
	if identity == nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}

	respondJSON(w, http.StatusOK, identityResponse(identity))
}

// Delete handles DELETE /users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	identity, err := h.identities.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load identity", zap.Int64("identity_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}
	if identity == nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}

	if err := h.recognizer.DeleteIdentity(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("failed to delete identity", zap.Int64("identity_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("User %s deleted successfully", identity.Name),
	})
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
