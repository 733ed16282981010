package service

import (
	"context"
	"errors"
	"time"

	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/models"
	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/rotation"
	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/signer"
	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// lookupTicket reads a ticket through the cache when one is configured.
// Cache trouble never fails a lookup; the database stays authoritative.
func lookupTicket(ctx context.Context, logger *zap.Logger, tickets store.TicketStore, cache *store.RedisStore, ttl time.Duration, ticketID string) (*models.Ticket, error) {
	if cache != nil {
		cached, err := cache.GetCachedTicket(ctx, ticketID)
		if err != nil {
			logger.Warn("ticket cache read failed, falling back to database",
				zap.String("ticket_id", ticketID), zap.Error(err))
		}
		if cached != nil {
			return cached, nil
		}
	}

	ticket, err := tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if cache != nil {
		if err := cache.CacheTicket(ctx, ticket, ttl); err != nil {
			logger.Warn("failed to cache ticket",
				zap.String("ticket_id", ticketID), zap.Error(err))
		}
	}
	return ticket, nil
}

func invalidateTicket(ctx context.Context, logger *zap.Logger, cache *store.RedisStore, ticketID string) {
	if cache == nil {
		return
	}
	if err := cache.InvalidateTicket(ctx, ticketID); err != nil {
		logger.Warn("failed to invalidate cached ticket",
			zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

// TicketService handles the issuance side: ticket registration at purchase
// time, refunds, listing, scan-payload rendering for the display, and the
// background expiry sweep.
type TicketService struct {
	logger          *zap.Logger
	tickets         store.TicketStore
	secrets         *SecretService
	signer          *signer.Signer
	cache           *store.RedisStore
	cacheTTL        time.Duration
	graceAfterStart time.Duration
}

func NewTicketService(logger *zap.Logger, tickets store.TicketStore, secrets *SecretService, sig *signer.Signer, cache *store.RedisStore, cacheTTL, graceAfterStart time.Duration) *TicketService {
	return &TicketService{
		logger:          logger,
		tickets:         tickets,
		secrets:         secrets,
		signer:          sig,
		cache:           cache,
		cacheTTL:        cacheTTL,
		graceAfterStart: graceAfterStart,
	}
}

// FinalizePurchase is the entry point for the storefront's purchase-finalized
// event: it registers the ticket and mints its purchase key. ticketID may be
// empty, in which case one is generated.
func (s *TicketService) FinalizePurchase(ctx context.Context, ticketID, ownerUserID, eventID, eventName string, eventStartsAt time.Time) (*models.Ticket, error) {
	if ticketID == "" {
		ticketID = uuid.NewString()
	}

	ticket := &models.Ticket{
		ID:            ticketID,
		OwnerUserID:   ownerUserID,
		EventID:       eventID,
		EventName:     eventName,
		Status:        models.TicketUnused,
		IssuedAt:      time.Now().UTC(),
		EventStartsAt: eventStartsAt,
	}
	if err := s.tickets.CreateTicket(ctx, ticket); err != nil {
		if errors.Is(err, store.ErrDuplicateTicket) {
			return nil, ErrDuplicateTicket
		}
		return nil, storageErr(err)
	}

	if _, err := s.secrets.IssuePurchaseKey(ctx, ticket.ID); err != nil {
		return nil, err
	}

	s.logger.Info("ticket issued",
		zap.String("ticket_id", ticket.ID),
		zap.String("owner_user_id", ownerUserID),
		zap.String("event_id", eventID),
	)
	return ticket, nil
}

// RefundTicket voids an unused ticket. Refunding a redeemed ticket is refused.
func (s *TicketService) RefundTicket(ctx context.Context, ticketID string) error {
	if err := s.tickets.VoidTicket(ctx, ticketID); err != nil {
		switch {
		case errors.Is(err, store.ErrTicketNotFound):
			return ErrUnknownTicket
		case errors.Is(err, store.ErrTicketRedeemed):
			return ErrTicketRedeemed
		default:
			return storageErr(err)
		}
	}

	invalidateTicket(ctx, s.logger, s.cache, ticketID)
	s.logger.Info("ticket voided", zap.String("ticket_id", ticketID))
	return nil
}

func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	ticket, err := lookupTicket(ctx, s.logger, s.tickets, s.cache, s.cacheTTL, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrTicketNotFound) {
			return nil, ErrUnknownTicket
		}
		return nil, storageErr(err)
	}
	return ticket, nil
}

func (s *TicketService) ListUserTickets(ctx context.Context, userID string) ([]models.Ticket, error) {
	tickets, err := s.tickets.ListTicketsByUser(ctx, userID)
	if err != nil {
		return nil, storageErr(err)
	}
	return tickets, nil
}

// RenderedPayload is what the ticket display consumes: the QR string plus the
// countdown until the code rotates and the display must re-render.
type RenderedPayload struct {
	Payload          *models.ScanPayload `json:"payload"`
	QRData           string              `json:"qr_data"`
	SecondsRemaining int64               `json:"seconds_remaining"`
}

// RenderScanPayload derives the current rotating code for an unused ticket.
// Keys are fetched server-side; nothing persistent is handed to the client
// beyond the ticket id and the short-lived code.
func (s *TicketService) RenderScanPayload(ctx context.Context, ticketID string, now time.Time) (*RenderedPayload, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != models.TicketUnused {
		return nil, ErrTicketNotActive
	}

	accountKey, err := s.secrets.GetAccountKey(ctx, ticket.OwnerUserID)
	if err != nil {
		return nil, err
	}
	purchaseKey, err := s.secrets.GetPurchaseKey(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}

	payload, err := s.signer.BuildScanPayload(ticket, accountKey.Secret, purchaseKey.Secret, now)
	if err != nil {
		return nil, err
	}

	return &RenderedPayload{
		Payload:          payload,
		QRData:           signer.Encode(payload),
		SecondsRemaining: rotation.SecondsRemaining(now, s.signer.WindowSeconds()),
	}, nil
}

// ExpireLapsedTickets voids unused tickets whose event started further in the
// past than the grace period. Run periodically by the sweeper.
func (s *TicketService) ExpireLapsedTickets(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-s.graceAfterStart)
	expired, err := s.tickets.ExpireLapsedTickets(ctx, cutoff)
	if err != nil {
		return 0, storageErr(err)
	}
	if expired > 0 {
		s.logger.Info("expired lapsed tickets", zap.Int64("count", expired))
	}
	return expired, nil
}
