package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/x8080x2/CLS0-sub000/internal/models"
)

type DepositRepository struct {
	pool *pgxpool.Pool
}

func NewDepositRepository(pool *pgxpool.Pool) *DepositRepository {
	return &DepositRepository{pool: pool}
}

// Create inserts a pending deposit.
func (r *DepositRepository) Create(ctx context.Context, dep *models.Deposit) error {
	if dep.ID == "" {
		dep.ID = uuid.New().String()
	}
	if dep.Status == "" {
		dep.Status = models.DepositPending
	}

	query := `
		INSERT INTO clssub.deposits (id, telegram_id, amount, status)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query, dep.ID, dep.TelegramID, dep.Amount, dep.Status)
	if err != nil {
		return fmt.Errorf("insert deposit: %w", err)
	}
	return nil
}

// GetByID retrieves a deposit.
func (r *DepositRepository) GetByID(ctx context.Context, id string) (*models.Deposit, error) {
	query := `
		SELECT id, telegram_id, amount, status, decided_by, created_at, decided_at
		FROM clssub.deposits
		WHERE id = $1
	`
	return r.scanDeposit(r.pool.QueryRow(ctx, query, id))
}

// ListPending returns all deposits awaiting an admin decision.
func (r *DepositRepository) ListPending(ctx context.Context) ([]*models.Deposit, error) {
	query := `
		SELECT id, telegram_id, amount, status, decided_by, created_at, decided_at
		FROM clssub.deposits
		WHERE status = 'pending'
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query deposits: %w", err)
	}
	defer rows.Close()

	var deposits []*models.Deposit
	for rows.Next() {
		d, err := r.scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		deposits = append(deposits, d)
	}
	return deposits, rows.Err()
}

// Approve flips a pending deposit to approved and credits the user's
// balance in the same transaction, so a failed credit leaves the
// deposit pending and retryable.
func (r *DepositRepository) Approve(ctx context.Context, id string, decidedBy int64) (*models.Deposit, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin approve: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE clssub.deposits
		SET status = 'approved', decided_by = $1, decided_at = now()
		WHERE id = $2 AND status = 'pending'
		RETURNING id, telegram_id, amount, status, decided_by, created_at, decided_at
	`
	dep, err := r.scanDeposit(tx.QueryRow(ctx, query, decidedBy, id))
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE clssub.users
		SET balance = balance + $1, updated_at = now()
		WHERE telegram_id = $2
	`, dep.Amount, dep.TelegramID)
	if err != nil {
		return nil, fmt.Errorf("credit balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit approve: %w", err)
	}
	return dep, nil
}

// Decide moves a pending deposit to approved or rejected. Only pending
// deposits can be decided, so a double-tap on the approve button is a
// no-op reported as ErrNotFound.
func (r *DepositRepository) Decide(ctx context.Context, id, status string, decidedBy int64) (*models.Deposit, error) {
	query := `
		UPDATE clssub.deposits
		SET status = $1, decided_by = $2, decided_at = now()
		WHERE id = $3 AND status = 'pending'
		RETURNING id, telegram_id, amount, status, decided_by, created_at, decided_at
	`
	return r.scanDeposit(r.pool.QueryRow(ctx, query, status, decidedBy, id))
}

func (r *DepositRepository) scanDeposit(row pgx.Row) (*models.Deposit, error) {
	d := &models.Deposit{}
	err := row.Scan(&d.ID, &d.TelegramID, &d.Amount, &d.Status, &d.DecidedBy, &d.CreatedAt, &d.DecidedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan deposit: %w", err)
	}
	return d, nil
}
