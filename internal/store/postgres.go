package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

type DBStore struct {
	DB *sql.DB
}

func NewDBStore(db *sql.DB) *DBStore {
	return &DBStore{DB: db}
}

func ConnectDB(driver, dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func RunMigrations(db *sql.DB, migrationsDir string) error {
	if migrationsDir == "" {
		return fmt.Errorf("migrations directory not specified")
	}

	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrationFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			migrationFiles = append(migrationFiles, entry.Name())
		}
	}
	sort.Strings(migrationFiles)

	for _, fileName := range migrationFiles {
		content, err := os.ReadFile(filepath.Join(migrationsDir, fileName))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", fileName, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", fileName, err)
		}
	}
	return nil
}

func (s *DBStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// ---- tickets ----

func (s *DBStore) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	query := `
        INSERT INTO tickets (id, owner_user_id, event_id, event_name, status, issued_at, event_starts_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.DB.ExecContext(ctx, query,
		ticket.ID,
		ticket.OwnerUserID,
		ticket.EventID,
		ticket.EventName,
		ticket.Status,
		ticket.IssuedAt,
		ticket.EventStartsAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTicket
		}
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	return nil
}

func (s *DBStore) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	query := `
        SELECT id, owner_user_id, event_id, event_name, status, issued_at, event_starts_at
        FROM tickets
        WHERE id = $1`

	ticket := &models.Ticket{}
	err := s.DB.QueryRowContext(ctx, query, ticketID).Scan(
		&ticket.ID,
		&ticket.OwnerUserID,
		&ticket.EventID,
		&ticket.EventName,
		&ticket.Status,
		&ticket.IssuedAt,
		&ticket.EventStartsAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return ticket, nil
}

func (s *DBStore) ListTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	query := `
        SELECT id, owner_user_id, event_id, event_name, status, issued_at, event_starts_at
        FROM tickets
        WHERE owner_user_id = $1
        ORDER BY issued_at DESC`

	rows, err := s.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets for user: %w", err)
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		var t models.Ticket
		if err := rows.Scan(&t.ID, &t.OwnerUserID, &t.EventID, &t.EventName, &t.Status, &t.IssuedAt, &t.EventStartsAt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket row: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ticket rows: %w", err)
	}
	return tickets, nil
}

func (s *DBStore) VoidTicket(ctx context.Context, ticketID string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status models.TicketStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM tickets WHERE id = $1 FOR UPDATE`, ticketID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTicketNotFound
		}
		return fmt.Errorf("failed to lock ticket: %w", err)
	}

	switch status {
	case models.TicketRedeemed:
		return ErrTicketRedeemed
	case models.TicketVoid:
		return nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE tickets SET status = $1 WHERE id = $2`, models.TicketVoid, ticketID); err != nil {
		return fmt.Errorf("failed to void ticket: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *DBStore) ExpireLapsedTickets(ctx context.Context, startedBefore time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE tickets SET status = $1 WHERE status = $2 AND event_starts_at < $3`,
		models.TicketVoid, models.TicketUnused, startedBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to expire lapsed tickets: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count expired tickets: %w", err)
	}
	return affected, nil
}

// ClaimRedemption flips an unused ticket to redeemed and records who consumed
// it, in one transaction. The row lock on the ticket makes concurrent claims
// on the same ticket serialize; only the first one sees status unused.
func (s *DBStore) ClaimRedemption(ctx context.Context, ticketID, scannerID string, at time.Time) (*ClaimResult, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status models.TicketStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM tickets WHERE id = $1 FOR UPDATE`, ticketID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to lock ticket: %w", err)
	}

	switch status {
	case models.TicketVoid:
		return &ClaimResult{Outcome: ClaimVoid}, nil
	case models.TicketRedeemed:
		prior := &models.RedemptionRecord{}
		err := tx.QueryRowContext(ctx,
			`SELECT id, ticket_id, redeemed_at, redeemed_by FROM redemptions WHERE ticket_id = $1`,
			ticketID,
		).Scan(&prior.ID, &prior.TicketID, &prior.RedeemedAt, &prior.RedeemedBy)
		if err != nil {
			return nil, fmt.Errorf("failed to load prior redemption: %w", err)
		}
		return &ClaimResult{Outcome: ClaimAlreadyRedeemed, Redemption: prior}, nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE tickets SET status = $1 WHERE id = $2`, models.TicketRedeemed, ticketID); err != nil {
		return nil, fmt.Errorf("failed to mark ticket redeemed: %w", err)
	}

	record := &models.RedemptionRecord{
		ID:         uuid.NewString(),
		TicketID:   ticketID,
		RedeemedAt: at,
		RedeemedBy: scannerID,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO redemptions (id, ticket_id, redeemed_at, redeemed_by) VALUES ($1, $2, $3, $4)`,
		record.ID, record.TicketID, record.RedeemedAt, record.RedeemedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to record redemption: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &ClaimResult{Outcome: ClaimFirst, Redemption: record}, nil
}

// ---- keys ----

func (s *DBStore) CreateAccountKey(ctx context.Context, key *models.AccountKey) error {
	query := `
        INSERT INTO account_keys (user_id, secret, created_at)
        VALUES ($1, $2, $3)`

	_, err := s.DB.ExecContext(ctx, query, key.UserID, key.Secret, key.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to create account key: %w", err)
	}
	return nil
}

func (s *DBStore) ReplaceAccountKey(ctx context.Context, key *models.AccountKey) error {
	query := `
        UPDATE account_keys
        SET secret = $2, rotated_at = $3
        WHERE user_id = $1`

	res, err := s.DB.ExecContext(ctx, query, key.UserID, key.Secret, key.RotatedAt)
	if err != nil {
		return fmt.Errorf("failed to replace account key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check replaced account key: %w", err)
	}
	if affected == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func (s *DBStore) GetAccountKey(ctx context.Context, userID string) (*models.AccountKey, error) {
	query := `
        SELECT user_id, secret, created_at, rotated_at
        FROM account_keys
        WHERE user_id = $1`

	key := &models.AccountKey{}
	err := s.DB.QueryRowContext(ctx, query, userID).Scan(&key.UserID, &key.Secret, &key.CreatedAt, &key.RotatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get account key: %w", err)
	}
	return key, nil
}

func (s *DBStore) CreatePurchaseKey(ctx context.Context, key *models.PurchaseKey) error {
	query := `
        INSERT INTO purchase_keys (ticket_id, secret, created_at)
        VALUES ($1, $2, $3)`

	_, err := s.DB.ExecContext(ctx, query, key.TicketID, key.Secret, key.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			// Foreign key: the purchase flow never registered this ticket.
			return ErrTicketNotFound
		}
		return fmt.Errorf("failed to create purchase key: %w", err)
	}
	return nil
}

func (s *DBStore) GetPurchaseKey(ctx context.Context, ticketID string) (*models.PurchaseKey, error) {
	query := `
        SELECT ticket_id, secret, created_at
        FROM purchase_keys
        WHERE ticket_id = $1`

	key := &models.PurchaseKey{}
	err := s.DB.QueryRowContext(ctx, query, ticketID).Scan(&key.TicketID, &key.Secret, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get purchase key: %w", err)
	}
	return key, nil
}

// ---- audit ----

func (s *DBStore) AppendAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	query := `
        INSERT INTO audit_entries (id, ticket_id, scanner_id, outcome, detail, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.DB.ExecContext(ctx, query,
		entry.ID, entry.TicketID, entry.ScannerID, entry.Outcome, entry.Detail, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *DBStore) ListAuditEntries(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	query := `
        SELECT id, ticket_id, scanner_id, outcome, detail, created_at
        FROM audit_entries
        WHERE ($1 = '' OR ticket_id = $1)
          AND ($2 = '' OR scanner_id = $2)
          AND ($3 = '' OR outcome = $3)
        ORDER BY created_at DESC
        LIMIT $4 OFFSET $5`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.DB.QueryContext(ctx, query,
		filter.TicketID, filter.ScannerID, string(filter.Outcome), limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.TicketID, &e.ScannerID, &e.Outcome, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return entries, nil
}
