package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/x8080x2/CLS0-sub000/internal/models"
)

var ErrNotFound = errors.New("not found")

// ErrInsufficientBalance is returned by Charge when the balance would
// go negative.
var ErrInsufficientBalance = errors.New("insufficient balance")

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetOrCreate fetches the user by Telegram ID, inserting a fresh row on
// first contact.
func (r *UserRepository) GetOrCreate(ctx context.Context, telegramID int64, username string) (*models.User, error) {
	query := `
		INSERT INTO clssub.users (telegram_id, username, balance, daily_used, daily_reset_at, total_provisioned, template)
		VALUES ($1, $2, 0, 0, now(), 0, 'default')
		ON CONFLICT (telegram_id) DO UPDATE SET username = EXCLUDED.username
		RETURNING telegram_id, username, balance, subscribed_until, daily_used, daily_reset_at,
		          total_provisioned, template, created_at, updated_at
	`
	return r.scanUser(r.pool.QueryRow(ctx, query, telegramID, username))
}

// GetByTelegramID retrieves a user.
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `
		SELECT telegram_id, username, balance, subscribed_until, daily_used, daily_reset_at,
		       total_provisioned, template, created_at, updated_at
		FROM clssub.users
		WHERE telegram_id = $1
	`
	return r.scanUser(r.pool.QueryRow(ctx, query, telegramID))
}

// List returns all users, newest first.
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT telegram_id, username, balance, subscribed_until, daily_used, daily_reset_at,
		       total_provisioned, template, created_at, updated_at
		FROM clssub.users
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Charge atomically deducts amount from the balance, failing when funds
// are insufficient.
func (r *UserRepository) Charge(ctx context.Context, telegramID int64, amount float64) error {
	query := `
		UPDATE clssub.users
		SET balance = balance - $1, updated_at = now()
		WHERE telegram_id = $2 AND balance >= $1
	`
	tag, err := r.pool.Exec(ctx, query, amount, telegramID)
	if err != nil {
		return fmt.Errorf("charge user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// Credit adds amount to the balance (deposit approval path).
func (r *UserRepository) Credit(ctx context.Context, telegramID int64, amount float64) error {
	query := `
		UPDATE clssub.users
		SET balance = balance + $1, updated_at = now()
		WHERE telegram_id = $2
	`
	tag, err := r.pool.Exec(ctx, query, amount, telegramID)
	if err != nil {
		return fmt.Errorf("credit user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordProvision bumps the daily and lifetime usage counters, rolling
// the daily window when it is older than 24h.
func (r *UserRepository) RecordProvision(ctx context.Context, telegramID int64) error {
	query := `
		UPDATE clssub.users
		SET daily_used = CASE WHEN daily_reset_at < now() - interval '24 hours' THEN 1 ELSE daily_used + 1 END,
		    daily_reset_at = CASE WHEN daily_reset_at < now() - interval '24 hours' THEN now() ELSE daily_reset_at END,
		    total_provisioned = total_provisioned + 1,
		    updated_at = now()
		WHERE telegram_id = $1
	`
	_, err := r.pool.Exec(ctx, query, telegramID)
	if err != nil {
		return fmt.Errorf("record provision: %w", err)
	}
	return nil
}

// SetTemplate stores the user's redirect page template preference.
func (r *UserRepository) SetTemplate(ctx context.Context, telegramID int64, template string) error {
	query := `UPDATE clssub.users SET template = $1, updated_at = now() WHERE telegram_id = $2`
	_, err := r.pool.Exec(ctx, query, template, telegramID)
	if err != nil {
		return fmt.Errorf("set template: %w", err)
	}
	return nil
}

// SetSubscribedUntil updates the subscription window.
func (r *UserRepository) SetSubscribedUntil(ctx context.Context, telegramID int64, until time.Time) error {
	query := `UPDATE clssub.users SET subscribed_until = $1, updated_at = now() WHERE telegram_id = $2`
	_, err := r.pool.Exec(ctx, query, until, telegramID)
	if err != nil {
		return fmt.Errorf("set subscription: %w", err)
	}
	return nil
}

func (r *UserRepository) scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.TelegramID, &u.Username, &u.Balance, &u.SubscribedUntil, &u.DailyUsed, &u.DailyResetAt,
		&u.TotalProvisioned, &u.Template, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}
