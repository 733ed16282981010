package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/models"
	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/signer"
	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ValidationService orchestrates one scan attempt: ticket lookup, signature
// check against the recomputed rotating code, atomic ledger claim, and an
// audit entry for every branch.
type ValidationService struct {
	logger          *zap.Logger
	tickets         store.TicketStore
	secrets         *SecretService
	audit           store.AuditStore
	signer          *signer.Signer
	cache           *store.RedisStore
	cacheTTL        time.Duration
	graceAfterStart time.Duration
}

func NewValidationService(logger *zap.Logger, tickets store.TicketStore, secrets *SecretService, audit store.AuditStore, sig *signer.Signer, cache *store.RedisStore, cacheTTL, graceAfterStart time.Duration) *ValidationService {
	return &ValidationService{
		logger:          logger,
		tickets:         tickets,
		secrets:         secrets,
		audit:           audit,
		signer:          sig,
		cache:           cache,
		cacheTTL:        cacheTTL,
		graceAfterStart: graceAfterStart,
	}
}

// ValidateQR decodes a raw scanned string and validates it.
func (s *ValidationService) ValidateQR(ctx context.Context, qrData, scannerID string, now time.Time) (*models.ValidationResult, error) {
	payload, err := signer.Decode(qrData)
	if err != nil {
		return nil, err
	}
	return s.Validate(ctx, payload, scannerID, now)
}

// Validate runs the scan-time state machine. Terminal business outcomes
// (valid, replay, forged, expired, unknown) come back as a result with a nil
// error; an error return means transient storage trouble and the scan may be
// retried.
func (s *ValidationService) Validate(ctx context.Context, payload *models.ScanPayload, scannerID string, now time.Time) (*models.ValidationResult, error) {
	ticket, err := lookupTicket(ctx, s.logger, s.tickets, s.cache, s.cacheTTL, payload.TicketID)
	if err != nil {
		if errors.Is(err, store.ErrTicketNotFound) {
			return s.reject(ctx, payload.TicketID, scannerID, now,
				models.OutcomeUnknownTicket, "no ticket with this id", nil, nil)
		}
		return nil, storageErr(err)
	}

	if ticket.Status == models.TicketVoid {
		return s.reject(ctx, ticket.ID, scannerID, now,
			models.OutcomeExpired, "ticket voided", ticket, nil)
	}
	if now.After(ticket.EventStartsAt.Add(s.graceAfterStart)) {
		return s.reject(ctx, ticket.ID, scannerID, now,
			models.OutcomeExpired, "event ended", ticket, nil)
	}

	// Key lookups are never retried here: absence means broken issuance data,
	// and the holder's proof cannot be checked, so the ticket is rejected as
	// unverifiable.
	accountKey, err := s.secrets.GetAccountKey(ctx, ticket.OwnerUserID)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return s.reject(ctx, ticket.ID, scannerID, now,
				models.OutcomeInvalidSignature, "account key material missing", ticket, nil)
		}
		return nil, err
	}
	purchaseKey, err := s.secrets.GetPurchaseKey(ctx, ticket.ID)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return s.reject(ctx, ticket.ID, scannerID, now,
				models.OutcomeInvalidSignature, "purchase key material missing", ticket, nil)
		}
		return nil, err
	}

	ok, err := s.signer.Verify(payload, accountKey.Secret, purchaseKey.Secret, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Structurally well-formed code that matches no admissible window:
		// either a stale display or a tampered ticket.
		return s.reject(ctx, ticket.ID, scannerID, now,
			models.OutcomeInvalidSignature, "code does not match any admissible window", ticket, nil)
	}

	claim, err := s.tickets.ClaimRedemption(ctx, ticket.ID, scannerID, now)
	if err != nil {
		if errors.Is(err, store.ErrTicketNotFound) {
			return s.reject(ctx, ticket.ID, scannerID, now,
				models.OutcomeUnknownTicket, "ticket disappeared during claim", nil, nil)
		}
		return nil, storageErr(err)
	}

	invalidateTicket(ctx, s.logger, s.cache, ticket.ID)

	switch claim.Outcome {
	case store.ClaimVoid:
		return s.reject(ctx, ticket.ID, scannerID, now,
			models.OutcomeExpired, "ticket voided", ticket, nil)
	case store.ClaimAlreadyRedeemed:
		detail := fmt.Sprintf("first redeemed at %s by %s",
			claim.Redemption.RedeemedAt.UTC().Format(time.RFC3339), claim.Redemption.RedeemedBy)
		return s.reject(ctx, ticket.ID, scannerID, now,
			models.OutcomeReplay, detail, ticket, claim.Redemption)
	}

	ticket.Status = models.TicketRedeemed
	s.record(ctx, ticket.ID, scannerID, now, models.OutcomeValid, "")
	return &models.ValidationResult{
		Outcome: models.OutcomeValid,
		Ticket:  ticket,
	}, nil
}

// ListAuditEntries exposes the validation history for fraud review.
func (s *ValidationService) ListAuditEntries(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	entries, err := s.audit.ListAuditEntries(ctx, filter)
	if err != nil {
		return nil, storageErr(err)
	}
	return entries, nil
}

func (s *ValidationService) reject(ctx context.Context, ticketID, scannerID string, now time.Time, outcome models.AuditOutcome, reason string, ticket *models.Ticket, prior *models.RedemptionRecord) (*models.ValidationResult, error) {
	s.record(ctx, ticketID, scannerID, now, outcome, reason)
	return &models.ValidationResult{
		Outcome:         outcome,
		Reason:          reason,
		Ticket:          ticket,
		PriorRedemption: prior,
	}, nil
}

// record appends the per-attempt audit entry. A failed append is logged but
// does not flip the validation answer: the ledger write is already durable and
// the operator at the gate needs the real outcome.
func (s *ValidationService) record(ctx context.Context, ticketID, scannerID string, now time.Time, outcome models.AuditOutcome, detail string) {
	entry := &models.AuditEntry{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		ScannerID: scannerID,
		Outcome:   outcome,
		Detail:    detail,
		CreatedAt: now.UTC(),
	}
	if err := s.audit.AppendAuditEntry(ctx, entry); err != nil {
		s.logger.Error("failed to append audit entry",
			zap.String("ticket_id", ticketID),
			zap.String("scanner_id", scannerID),
			zap.String("outcome", string(outcome)),
			zap.Error(err),
		)
	}
}
