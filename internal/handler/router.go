package handler

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func NewRouter(logger *zap.Logger, accounts *AccountHandler, tickets *TicketHandler, validation *ValidationHandler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if _, err := fmt.Fprintln(w, "OK"); err != nil {
			logger.Warn("failed to write health response", zap.Error(err))
		}
	}).Methods("GET")

	// Identity-side events.
	r.HandleFunc("/accounts/{user_id}/key", accounts.IssueKey).Methods("POST")
	r.HandleFunc("/accounts/{user_id}/key/rotate", accounts.RotateKey).Methods("POST")

	// Purchase-side events and the ticket display.
	r.HandleFunc("/tickets", tickets.Create).Methods("POST")
	r.HandleFunc("/tickets/user/{user_id}", tickets.ListByUser).Methods("GET")
	r.HandleFunc("/tickets/{ticket_id}/refund", tickets.Refund).Methods("POST")
	r.HandleFunc("/tickets/{ticket_id}/payload", tickets.Payload).Methods("GET")

	// Scanning devices and the validation-history UI.
	r.HandleFunc("/validate", validation.Validate).Methods("POST")
	r.HandleFunc("/validations", validation.History).Methods("GET")

	return r
}
