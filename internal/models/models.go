package models

import "time"

type TicketStatus string

const (
	TicketUnused   TicketStatus = "unused"
	TicketRedeemed TicketStatus = "redeemed"
	TicketVoid     TicketStatus = "void"
)

type Ticket struct {
	ID            string       `json:"id"`
	OwnerUserID   string       `json:"owner_user_id"`
	EventID       string       `json:"event_id"`
	EventName     string       `json:"event_name"`
	Status        TicketStatus `json:"status"`
	IssuedAt      time.Time    `json:"issued_at"`
	EventStartsAt time.Time    `json:"event_starts_at"`
}

// AccountKey is the long-lived secret bound to one user identity. The secret
// bytes never appear in JSON responses or logs.
type AccountKey struct {
	UserID    string     `json:"user_id"`
	Secret    []byte     `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	RotatedAt *time.Time `json:"rotated_at,omitempty"`
}

// PurchaseKey is the per-ticket secret minted once at purchase finalization
// and immutable afterwards.
type PurchaseKey struct {
	TicketID  string    `json:"ticket_id"`
	Secret    []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// ScanPayload is the transient content of a scanned QR code. WindowHint is
// whatever window index the client chose to embed; verification never uses it.
type ScanPayload struct {
	TicketID   string `json:"ticket_id"`
	Code       string `json:"code"`
	WindowHint int64  `json:"window_hint,omitempty"`
}

type RedemptionRecord struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	RedeemedAt time.Time `json:"redeemed_at"`
	RedeemedBy string    `json:"redeemed_by"`
}

type AuditOutcome string

const (
	OutcomeValid            AuditOutcome = "valid"
	OutcomeReplay           AuditOutcome = "replay"
	OutcomeInvalidSignature AuditOutcome = "invalid_signature"
	OutcomeUnknownTicket    AuditOutcome = "unknown_ticket"
	OutcomeExpired          AuditOutcome = "expired"
)

type AuditEntry struct {
	ID        string       `json:"id"`
	TicketID  string       `json:"ticket_id"`
	ScannerID string       `json:"scanner_id"`
	Outcome   AuditOutcome `json:"outcome"`
	Detail    string       `json:"detail,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// AuditFilter narrows a validation-history listing. Zero values mean "any".
type AuditFilter struct {
	TicketID  string
	ScannerID string
	Outcome   AuditOutcome
	Limit     int
	Offset    int
}

// ValidationResult is what a scanning device gets back for one attempt.
// PriorRedemption is populated only on a replay so the operator can see when
// and where the ticket was first accepted.
type ValidationResult struct {
	Outcome         AuditOutcome      `json:"outcome"`
	Reason          string            `json:"reason,omitempty"`
	Ticket          *Ticket           `json:"ticket,omitempty"`
	PriorRedemption *RedemptionRecord `json:"prior_redemption,omitempty"`
}
