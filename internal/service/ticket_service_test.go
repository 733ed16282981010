package service

import (
	"context"
	"testing"
	"time"

	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/models"
	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/signer"
	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testGrace = 6 * time.Hour

type testEnv struct {
	mem        *store.MemoryStore
	secrets    *SecretService
	tickets    *TicketService
	validation *ValidationService
}

func newTestEnv() *testEnv {
	mem := store.NewMemoryStore()
	logger := zap.NewNop()
	sig := signer.New(30, 1, 8)
	secrets := NewSecretService(logger, mem, NewZapKeySink(logger))
	return &testEnv{
		mem:        mem,
		secrets:    secrets,
		tickets:    NewTicketService(logger, mem, secrets, sig, nil, time.Minute, testGrace),
		validation: NewValidationService(logger, mem, secrets, mem, sig, nil, time.Minute, testGrace),
	}
}

// issueTicket provisions a user with an account key and one purchased ticket
// for an event starting at eventStartsAt.
func (e *testEnv) issueTicket(t *testing.T, userID string, eventStartsAt time.Time) *models.Ticket {
	t.Helper()
	ctx := context.Background()

	if _, err := e.secrets.GetAccountKey(ctx, userID); err != nil {
		_, err = e.secrets.IssueAccountKey(ctx, userID)
		require.NoError(t, err)
	}

	ticket, err := e.tickets.FinalizePurchase(ctx, "", userID, "event-100m", "Finale Natation", eventStartsAt)
	require.NoError(t, err)
	return ticket
}

func TestFinalizePurchase(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.secrets.IssueAccountKey(ctx, "user-1")
	require.NoError(t, err)

	ticket, err := env.tickets.FinalizePurchase(ctx, "", "user-1", "event-1", "Finale Natation", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.NotEmpty(t, ticket.ID)
	assert.Equal(t, models.TicketUnused, ticket.Status)

	// The purchase key is minted alongside the ticket.
	_, err = env.secrets.GetPurchaseKey(ctx, ticket.ID)
	require.NoError(t, err)

	// Registering the same ticket id twice is refused.
	_, err = env.tickets.FinalizePurchase(ctx, ticket.ID, "user-1", "event-1", "", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrDuplicateTicket)
}

func TestRefundTicket(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	ticket := env.issueTicket(t, "user-1", time.Now().Add(time.Hour))

	require.NoError(t, env.tickets.RefundTicket(ctx, ticket.ID))
	got, err := env.tickets.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketVoid, got.Status)

	assert.ErrorIs(t, env.tickets.RefundTicket(ctx, "ghost"), ErrUnknownTicket)

	redeemed := env.issueTicket(t, "user-1", time.Now().Add(time.Hour))
	_, err = env.mem.ClaimRedemption(ctx, redeemed.ID, "gate-1", time.Now())
	require.NoError(t, err)
	assert.ErrorIs(t, env.tickets.RefundTicket(ctx, redeemed.ID), ErrTicketRedeemed)
}

func TestRenderScanPayload(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Unix(1_700_000_010, 0)

	ticket := env.issueTicket(t, "user-1", now.Add(time.Hour))

	rendered, err := env.tickets.RenderScanPayload(ctx, ticket.ID, now)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, rendered.Payload.TicketID)
	assert.Len(t, rendered.Payload.Code, 8)
	assert.Greater(t, rendered.SecondsRemaining, int64(0))
	assert.LessOrEqual(t, rendered.SecondsRemaining, int64(30))

	decoded, err := signer.Decode(rendered.QRData)
	require.NoError(t, err)
	assert.Equal(t, rendered.Payload, decoded)

	// Re-rendering within the same window yields the same code; the next
	// window yields a fresh one.
	again, err := env.tickets.RenderScanPayload(ctx, ticket.ID, now)
	require.NoError(t, err)
	assert.Equal(t, rendered.Payload.Code, again.Payload.Code)

	_, err = env.tickets.RenderScanPayload(ctx, "ghost", now)
	assert.ErrorIs(t, err, ErrUnknownTicket)
}

func TestRenderScanPayloadRefusesInactiveTicket(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Unix(1_700_000_010, 0)

	ticket := env.issueTicket(t, "user-1", now.Add(time.Hour))
	require.NoError(t, env.tickets.RefundTicket(ctx, ticket.ID))

	_, err := env.tickets.RenderScanPayload(ctx, ticket.ID, now)
	assert.ErrorIs(t, err, ErrTicketNotActive)
}

func TestListUserTickets(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.issueTicket(t, "user-1", time.Now().Add(time.Hour))
	env.issueTicket(t, "user-1", time.Now().Add(2*time.Hour))
	env.issueTicket(t, "user-2", time.Now().Add(time.Hour))

	mine, err := env.tickets.ListUserTickets(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := env.tickets.ListUserTickets(ctx, "user-2")
	require.NoError(t, err)
	assert.Len(t, theirs, 1)
}

func TestExpireLapsedTickets(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Now().UTC()

	lapsed := env.issueTicket(t, "user-1", now.Add(-testGrace-time.Hour))
	fresh := env.issueTicket(t, "user-1", now.Add(time.Hour))

	expired, err := env.tickets.ExpireLapsedTickets(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	got, err := env.tickets.GetTicket(ctx, lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketVoid, got.Status)

	got, err = env.tickets.GetTicket(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketUnused, got.Status)
}
