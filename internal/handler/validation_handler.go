package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/models"
	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/service"
	"go.uber.org/zap"
)

type ValidationHandler struct {
	logger     *zap.Logger
	validation *service.ValidationService
}

func NewValidationHandler(logger *zap.Logger, validation *service.ValidationService) *ValidationHandler {
	return &ValidationHandler{
		logger:     logger,
		validation: validation,
	}
}

type validateRequest struct {
	QRData    string `json:"qr_data"`
	ScannerID string `json:"scanner_id"`
}

// Validate processes one scan. Terminal outcomes (valid, replay, forged,
// expired, unknown) all come back as 200 with the outcome in the body; the
// scanning UI decides how to present them. Non-2xx means the scan itself
// could not be processed.
func (h *ValidationHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(h.logger, w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.QRData == "" || req.ScannerID == "" {
		respondJSON(h.logger, w, http.StatusBadRequest, errorResponse{Error: "qr_data and scanner_id are required"})
		return
	}

	result, err := h.validation.ValidateQR(r.Context(), req.QRData, req.ScannerID, time.Now())
	if err != nil {
		respondServiceError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, result)
}

// History lists audit entries for fraud review, filterable by ticket, scanner
// and outcome.
func (h *ValidationHandler) History(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := models.AuditFilter{
		TicketID:  query.Get("ticket_id"),
		ScannerID: query.Get("scanner_id"),
		Outcome:   models.AuditOutcome(query.Get("outcome")),
	}
	if limit := query.Get("limit"); limit != "" {
		v, err := strconv.Atoi(limit)
		if err != nil || v < 0 {
			respondJSON(h.logger, w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		filter.Limit = v
	}
	if offset := query.Get("offset"); offset != "" {
		v, err := strconv.Atoi(offset)
		if err != nil || v < 0 {
			respondJSON(h.logger, w, http.StatusBadRequest, errorResponse{Error: "invalid offset"})
			return
		}
		filter.Offset = v
	}

	entries, err := h.validation.ListAuditEntries(r.Context(), filter)
	if err != nil {
		respondServiceError(h.logger, w, err)
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}

	respondJSON(h.logger, w, http.StatusOK, entries)
}
