package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/service"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type TicketHandler struct {
	logger  *zap.Logger
	tickets *service.TicketService
}

func NewTicketHandler(logger *zap.Logger, tickets *service.TicketService) *TicketHandler {
	return &TicketHandler{
		logger:  logger,
		tickets: tickets,
	}
}

type createTicketRequest struct {
	TicketID      string `json:"ticket_id,omitempty"`
	OwnerUserID   string `json:"owner_user_id"`
	EventID       string `json:"event_id"`
	EventName     string `json:"event_name"`
	EventStartsAt int64  `json:"event_starts_at"`
}

// Create handles the purchase-finalized event from the storefront: one call
// per unit purchased.
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(h.logger, w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.OwnerUserID == "" || req.EventID == "" {
		respondJSON(h.logger, w, http.StatusBadRequest, errorResponse{Error: "owner_user_id and event_id are required"})
		return
	}
	if req.EventStartsAt <= 0 {
		respondJSON(h.logger, w, http.StatusBadRequest, errorResponse{Error: "event_starts_at must be a unix timestamp"})
		return
	}

	ticket, err := h.tickets.FinalizePurchase(r.Context(),
		req.TicketID, req.OwnerUserID, req.EventID, req.EventName,
		time.Unix(req.EventStartsAt, 0).UTC())
	if err != nil {
		respondServiceError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusCreated, ticket)
}

// Refund handles the refund/cancellation event: the ticket becomes void and
// will never validate again.
func (h *TicketHandler) Refund(w http.ResponseWriter, r *http.Request) {
	ticketID := mux.Vars(r)["ticket_id"]

	if err := h.tickets.RefundTicket(r.Context(), ticketID); err != nil {
		respondServiceError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, map[string]string{"status": "void"})
}

// Payload returns the current scan payload for the ticket display, along with
// the seconds left before the display must request a fresh one.
func (h *TicketHandler) Payload(w http.ResponseWriter, r *http.Request) {
	ticketID := mux.Vars(r)["ticket_id"]

	rendered, err := h.tickets.RenderScanPayload(r.Context(), ticketID, time.Now())
	if err != nil {
		respondServiceError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, rendered)
}

func (h *TicketHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	tickets, err := h.tickets.ListUserTickets(r.Context(), userID)
	if err != nil {
		respondServiceError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, tickets)
}
