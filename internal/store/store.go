package store

import (
	"context"
	"errors"
	"time"

	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/models"
)

var (
	ErrTicketNotFound  = errors.New("store: ticket not found")
	ErrDuplicateTicket = errors.New("store: ticket already exists")
	ErrKeyNotFound     = errors.New("store: key not found")
	ErrDuplicateKey    = errors.New("store: key already exists")
	ErrTicketRedeemed  = errors.New("store: ticket already redeemed")
)

type ClaimOutcome string

const (
	ClaimFirst           ClaimOutcome = "first_redemption"
	ClaimAlreadyRedeemed ClaimOutcome = "already_redeemed"
	ClaimVoid            ClaimOutcome = "void"
)

// ClaimResult reports how an atomic redemption attempt resolved. Redemption
// carries the winning record: the one just written on a first redemption, or
// the prior one on a replay.
type ClaimResult struct {
	Outcome    ClaimOutcome
	Redemption *models.RedemptionRecord
}

// TicketStore persists tickets and owns the consumption ledger. ClaimRedemption
// is the single operation with a strict atomicity requirement: of N concurrent
// claims on an unused ticket, exactly one observes ClaimFirst.
type TicketStore interface {
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error)
	ListTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error)
	VoidTicket(ctx context.Context, ticketID string) error
	ExpireLapsedTickets(ctx context.Context, startedBefore time.Time) (int64, error)
	ClaimRedemption(ctx context.Context, ticketID, scannerID string, at time.Time) (*ClaimResult, error)
}

// KeyStore holds durable secret material. It is the only interface through
// which key bytes cross the trust boundary.
type KeyStore interface {
	CreateAccountKey(ctx context.Context, key *models.AccountKey) error
	ReplaceAccountKey(ctx context.Context, key *models.AccountKey) error
	GetAccountKey(ctx context.Context, userID string) (*models.AccountKey, error)
	CreatePurchaseKey(ctx context.Context, key *models.PurchaseKey) error
	GetPurchaseKey(ctx context.Context, ticketID string) (*models.PurchaseKey, error)
}

// AuditStore is append-only; entries are never mutated or deleted.
type AuditStore interface {
	AppendAuditEntry(ctx context.Context, entry *models.AuditEntry) error
	ListAuditEntries(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error)
}
