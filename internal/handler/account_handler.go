package handler

import (
	"net/http"

	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/service"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// AccountHandler receives the identity-side events: account creation / MFA
// enrollment (key issuance) and explicit key rotation. Key bytes are never
// echoed back over HTTP.
type AccountHandler struct {
	logger  *zap.Logger
	secrets *service.SecretService
}

func NewAccountHandler(logger *zap.Logger, secrets *service.SecretService) *AccountHandler {
	return &AccountHandler{
		logger:  logger,
		secrets: secrets,
	}
}

type accountKeyResponse struct {
	UserID    string `json:"user_id"`
	CreatedAt string `json:"created_at"`
	Rotated   bool   `json:"rotated"`
}

func (h *AccountHandler) IssueKey(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	if userID == "" {
		respondJSON(h.logger, w, http.StatusBadRequest, errorResponse{Error: "user_id is required"})
		return
	}

	key, err := h.secrets.IssueAccountKey(r.Context(), userID)
	if err != nil {
		respondServiceError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusCreated, accountKeyResponse{
		UserID:    key.UserID,
		CreatedAt: key.CreatedAt.Format(timeLayout),
	})
}

func (h *AccountHandler) RotateKey(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	if userID == "" {
		respondJSON(h.logger, w, http.StatusBadRequest, errorResponse{Error: "user_id is required"})
		return
	}

	key, err := h.secrets.RotateAccountKey(r.Context(), userID)
	if err != nil {
		respondServiceError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, accountKeyResponse{
		UserID:    key.UserID,
		CreatedAt: key.CreatedAt.Format(timeLayout),
		Rotated:   true,
	})
}
