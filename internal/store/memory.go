package store

import (
	"context"
	"sync"
	"time"

	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/models"
	"github.com/google/uuid"
)

// MemoryStore is a mutex-guarded implementation of all three store interfaces
// for single-process deployments and tests. The coarse lock is the atomicity
// guarantee: a claim reads and flips ticket status without interleaving.
type MemoryStore struct {
	mu           sync.RWMutex
	tickets      map[string]models.Ticket
	accountKeys  map[string]models.AccountKey
	purchaseKeys map[string]models.PurchaseKey
	redemptions  map[string]models.RedemptionRecord
	audit        []models.AuditEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets:      make(map[string]models.Ticket),
		accountKeys:  make(map[string]models.AccountKey),
		purchaseKeys: make(map[string]models.PurchaseKey),
		redemptions:  make(map[string]models.RedemptionRecord),
	}
}

func (s *MemoryStore) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[ticket.ID]; ok {
		return ErrDuplicateTicket
	}
	s.tickets[ticket.ID] = *ticket
	return nil
}

func (s *MemoryStore) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticket, ok := s.tickets[ticketID]
	if !ok {
		return nil, ErrTicketNotFound
	}
	return &ticket, nil
}

func (s *MemoryStore) ListTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tickets []models.Ticket
	for _, t := range s.tickets {
		if t.OwnerUserID == userID {
			tickets = append(tickets, t)
		}
	}
	return tickets, nil
}

func (s *MemoryStore) VoidTicket(ctx context.Context, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[ticketID]
	if !ok {
		return ErrTicketNotFound
	}
	switch ticket.Status {
	case models.TicketRedeemed:
		return ErrTicketRedeemed
	case models.TicketVoid:
		return nil
	}
	ticket.Status = models.TicketVoid
	s.tickets[ticketID] = ticket
	return nil
}

func (s *MemoryStore) ExpireLapsedTickets(ctx context.Context, startedBefore time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired int64
	for id, t := range s.tickets {
		if t.Status == models.TicketUnused && t.EventStartsAt.Before(startedBefore) {
			t.Status = models.TicketVoid
			s.tickets[id] = t
			expired++
		}
	}
	return expired, nil
}

func (s *MemoryStore) ClaimRedemption(ctx context.Context, ticketID, scannerID string, at time.Time) (*ClaimResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[ticketID]
	if !ok {
		return nil, ErrTicketNotFound
	}

	switch ticket.Status {
	case models.TicketVoid:
		return &ClaimResult{Outcome: ClaimVoid}, nil
	case models.TicketRedeemed:
		prior := s.redemptions[ticketID]
		return &ClaimResult{Outcome: ClaimAlreadyRedeemed, Redemption: &prior}, nil
	}

	ticket.Status = models.TicketRedeemed
	s.tickets[ticketID] = ticket

	record := models.RedemptionRecord{
		ID:         uuid.NewString(),
		TicketID:   ticketID,
		RedeemedAt: at,
		RedeemedBy: scannerID,
	}
	s.redemptions[ticketID] = record
	return &ClaimResult{Outcome: ClaimFirst, Redemption: &record}, nil
}

func (s *MemoryStore) CreateAccountKey(ctx context.Context, key *models.AccountKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accountKeys[key.UserID]; ok {
		return ErrDuplicateKey
	}
	s.accountKeys[key.UserID] = *key
	return nil
}

func (s *MemoryStore) ReplaceAccountKey(ctx context.Context, key *models.AccountKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accountKeys[key.UserID]; !ok {
		return ErrKeyNotFound
	}
	s.accountKeys[key.UserID] = *key
	return nil
}

func (s *MemoryStore) GetAccountKey(ctx context.Context, userID string) (*models.AccountKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.accountKeys[userID]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return &key, nil
}

func (s *MemoryStore) CreatePurchaseKey(ctx context.Context, key *models.PurchaseKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[key.TicketID]; !ok {
		return ErrTicketNotFound
	}
	if _, ok := s.purchaseKeys[key.TicketID]; ok {
		return ErrDuplicateKey
	}
	s.purchaseKeys[key.TicketID] = *key
	return nil
}

func (s *MemoryStore) GetPurchaseKey(ctx context.Context, ticketID string) (*models.PurchaseKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.purchaseKeys[ticketID]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return &key, nil
}

func (s *MemoryStore) AppendAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit = append(s.audit, *entry)
	return nil
}

func (s *MemoryStore) ListAuditEntries(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var matched []models.AuditEntry
	// Newest first, matching the SQL listing.
	for i := len(s.audit) - 1; i >= 0; i-- {
		e := s.audit[i]
		if filter.TicketID != "" && e.TicketID != filter.TicketID {
			continue
		}
		if filter.ScannerID != "" && e.ScannerID != filter.ScannerID {
			continue
		}
		if filter.Outcome != "" && e.Outcome != filter.Outcome {
			continue
		}
		matched = append(matched, e)
	}

	if filter.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}
