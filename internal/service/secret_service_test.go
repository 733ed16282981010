package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/models"
	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// capturingSink records key events so tests can assert the audit channel is
// fed on every issuance and lookup.
type capturingSink struct {
	mu      sync.Mutex
	actions []string
}

func (s *capturingSink) RecordKeyEvent(ctx context.Context, action, subject string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action+":"+subject)
}

func (s *capturingSink) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.actions...)
}

func newSecretTestService() (*SecretService, *store.MemoryStore, *capturingSink) {
	mem := store.NewMemoryStore()
	sink := &capturingSink{}
	return NewSecretService(zap.NewNop(), mem, sink), mem, sink
}

func TestIssueAccountKey(t *testing.T) {
	secrets, _, sink := newSecretTestService()
	ctx := context.Background()

	key, err := secrets.IssueAccountKey(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", key.UserID)
	assert.Len(t, key.Secret, 32)
	assert.Nil(t, key.RotatedAt)

	_, err = secrets.IssueAccountKey(ctx, "user-1")
	assert.ErrorIs(t, err, ErrDuplicateKey)

	assert.Contains(t, sink.recorded(), "issue_account_key:user-1")
}

func TestRotateAccountKey(t *testing.T) {
	secrets, _, sink := newSecretTestService()
	ctx := context.Background()

	_, err := secrets.RotateAccountKey(ctx, "user-1")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	original, err := secrets.IssueAccountKey(ctx, "user-1")
	require.NoError(t, err)

	rotated, err := secrets.RotateAccountKey(ctx, "user-1")
	require.NoError(t, err)
	assert.NotEqual(t, original.Secret, rotated.Secret)
	require.NotNil(t, rotated.RotatedAt)

	current, err := secrets.GetAccountKey(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, rotated.Secret, current.Secret)

	assert.Contains(t, sink.recorded(), "rotate_account_key:user-1")
}

func TestIssuePurchaseKey(t *testing.T) {
	secrets, mem, sink := newSecretTestService()
	ctx := context.Background()

	// The purchase flow must have registered the ticket first.
	_, err := secrets.IssuePurchaseKey(ctx, "ghost-ticket")
	assert.ErrorIs(t, err, ErrUnknownTicket)

	require.NoError(t, mem.CreateTicket(ctx, &models.Ticket{
		ID: "t1", OwnerUserID: "user-1", EventID: "e1",
		Status: models.TicketUnused, EventStartsAt: time.Now().Add(time.Hour),
	}))

	key, err := secrets.IssuePurchaseKey(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", key.TicketID)
	assert.Len(t, key.Secret, 32)

	// Purchase keys are immutable for the ticket's lifetime.
	_, err = secrets.IssuePurchaseKey(ctx, "t1")
	assert.ErrorIs(t, err, ErrDuplicateKey)

	assert.Contains(t, sink.recorded(), "issue_purchase_key:t1")
}

func TestKeyLookupsReportToSink(t *testing.T) {
	secrets, mem, sink := newSecretTestService()
	ctx := context.Background()

	_, err := secrets.IssueAccountKey(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, mem.CreateTicket(ctx, &models.Ticket{
		ID: "t1", OwnerUserID: "user-1", EventID: "e1",
		Status: models.TicketUnused, EventStartsAt: time.Now().Add(time.Hour),
	}))
	_, err = secrets.IssuePurchaseKey(ctx, "t1")
	require.NoError(t, err)

	_, err = secrets.GetAccountKey(ctx, "user-1")
	require.NoError(t, err)
	_, err = secrets.GetPurchaseKey(ctx, "t1")
	require.NoError(t, err)

	recorded := sink.recorded()
	assert.Contains(t, recorded, "lookup_account_key:user-1")
	assert.Contains(t, recorded, "lookup_purchase_key:t1")

	_, err = secrets.GetAccountKey(ctx, "nobody")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	_, err = secrets.GetPurchaseKey(ctx, "ghost")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
