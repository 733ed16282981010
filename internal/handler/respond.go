package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/service"
	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/signer"
	"go.uber.org/zap"
)

const timeLayout = time.RFC3339

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(logger *zap.Logger, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
// StorageUnavailable gets a 503 so callers know to retry; everything else is a
// terminal answer.
func respondServiceError(logger *zap.Logger, w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, service.ErrUnknownTicket), errors.Is(err, service.ErrKeyNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateKey), errors.Is(err, service.ErrDuplicateTicket),
		errors.Is(err, service.ErrTicketRedeemed), errors.Is(err, service.ErrTicketNotActive):
		status = http.StatusConflict
	case errors.Is(err, signer.ErrMalformedPayload):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
	default:
		logger.Error("unexpected error", zap.Error(err))
		respondJSON(logger, w, http.StatusInternalServerError, errorResponse{Error: "an unexpected error occurred"})
		return
	}
	respondJSON(logger, w, status, errorResponse{Error: err.Error()})
}
