package service

import (
	"context"
	"errors"
	"time"

	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/models"
	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/rotation"
	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/store"
	"go.uber.org/zap"
)

// KeyAuditSink receives a notification for every issuance and lookup of key
// material. Where those notifications go (SIEM, log pipeline) is the caller's
// business; the secret service only guarantees they are emitted.
type KeyAuditSink interface {
	RecordKeyEvent(ctx context.Context, action, subject string, at time.Time)
}

type zapKeySink struct {
	logger *zap.Logger
}

// NewZapKeySink reports key events to the structured log.
func NewZapKeySink(logger *zap.Logger) KeyAuditSink {
	return &zapKeySink{logger: logger}
}

func (s *zapKeySink) RecordKeyEvent(ctx context.Context, action, subject string, at time.Time) {
	s.logger.Info("key event",
		zap.String("action", action),
		zap.String("subject", subject),
		zap.Time("at", at),
	)
}

// SecretService owns all durable secret material: one account key per user,
// one purchase key per ticket. Secret bytes leave this service only as the
// return value of an issuance or lookup call.
type SecretService struct {
	logger *zap.Logger
	keys   store.KeyStore
	sink   KeyAuditSink
}

func NewSecretService(logger *zap.Logger, keys store.KeyStore, sink KeyAuditSink) *SecretService {
	return &SecretService{
		logger: logger,
		keys:   keys,
		sink:   sink,
	}
}

// IssueAccountKey mints the long-lived key for a user at account/MFA setup.
// A second issuance for the same user fails with ErrDuplicateKey; rotation is
// an explicit, separate operation.
func (s *SecretService) IssueAccountKey(ctx context.Context, userID string) (*models.AccountKey, error) {
	secret, err := rotation.NewSecret(rotation.SecretLength)
	if err != nil {
		return nil, err
	}

	key := &models.AccountKey{
		UserID:    userID,
		Secret:    secret,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.keys.CreateAccountKey(ctx, key); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, ErrDuplicateKey
		}
		return nil, storageErr(err)
	}

	s.sink.RecordKeyEvent(ctx, "issue_account_key", userID, key.CreatedAt)
	return key, nil
}

// RotateAccountKey replaces a user's account key after a security event.
// Tickets stay owned and redeemable: the rotating code is derived from the
// current key on both sides, so the holder only needs a refreshed display.
func (s *SecretService) RotateAccountKey(ctx context.Context, userID string) (*models.AccountKey, error) {
	secret, err := rotation.NewSecret(rotation.SecretLength)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	key := &models.AccountKey{
		UserID:    userID,
		Secret:    secret,
		CreatedAt: now,
		RotatedAt: &now,
	}
	if err := s.keys.ReplaceAccountKey(ctx, key); err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, storageErr(err)
	}

	s.sink.RecordKeyEvent(ctx, "rotate_account_key", userID, now)
	return key, nil
}

// IssuePurchaseKey mints the per-ticket key at purchase finalization. The
// ticket must already be registered; anything else is a broken purchase flow.
func (s *SecretService) IssuePurchaseKey(ctx context.Context, ticketID string) (*models.PurchaseKey, error) {
	secret, err := rotation.NewSecret(rotation.SecretLength)
	if err != nil {
		return nil, err
	}

	key := &models.PurchaseKey{
		TicketID:  ticketID,
		Secret:    secret,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.keys.CreatePurchaseKey(ctx, key); err != nil {
		switch {
		case errors.Is(err, store.ErrTicketNotFound):
			return nil, ErrUnknownTicket
		case errors.Is(err, store.ErrDuplicateKey):
			return nil, ErrDuplicateKey
		default:
			return nil, storageErr(err)
		}
	}

	s.sink.RecordKeyEvent(ctx, "issue_purchase_key", ticketID, key.CreatedAt)
	return key, nil
}

func (s *SecretService) GetAccountKey(ctx context.Context, userID string) (*models.AccountKey, error) {
	key, err := s.keys.GetAccountKey(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, storageErr(err)
	}

	s.sink.RecordKeyEvent(ctx, "lookup_account_key", userID, time.Now().UTC())
	return key, nil
}

func (s *SecretService) GetPurchaseKey(ctx context.Context, ticketID string) (*models.PurchaseKey, error) {
	key, err := s.keys.GetPurchaseKey(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, storageErr(err)
	}

	s.sink.RecordKeyEvent(ctx, "lookup_purchase_key", ticketID, time.Now().UTC())
	return key, nil
}
