package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/x8080x2/CLS0-sub000/internal/models"
)

type ProvisionRepository struct {
	pool *pgxpool.Pool
}

func NewProvisionRepository(pool *pgxpool.Pool) *ProvisionRepository {
	return &ProvisionRepository{pool: pool}
}

// Create inserts a new provision record.
func (r *ProvisionRepository) Create(ctx context.Context, p *models.Provision) error {
	query := `
		INSERT INTO clssub.provisions (
			id, telegram_id, domain, redirect_url, status, step,
			cpanel_username, server_ip, script_urls, name_servers, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		p.ID, p.TelegramID, p.Domain, p.RedirectURL, p.Status, p.Step,
		p.CpanelUsername, p.ServerIP, p.ScriptURLs, p.NameServers, p.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert provision: %w", err)
	}
	return nil
}

// GetByID retrieves a provision record.
func (r *ProvisionRepository) GetByID(ctx context.Context, id string) (*models.Provision, error) {
	query := `
		SELECT id, telegram_id, domain, redirect_url, status, step,
		       cpanel_username, server_ip, script_urls, name_servers, error_message,
		       created_at, updated_at, completed_at
		FROM clssub.provisions
		WHERE id = $1
	`
	return r.scanProvision(r.pool.QueryRow(ctx, query, id))
}

// ListByUser returns a user's provisions, newest first.
func (r *ProvisionRepository) ListByUser(ctx context.Context, telegramID int64, limit int) ([]*models.Provision, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, telegram_id, domain, redirect_url, status, step,
		       cpanel_username, server_ip, script_urls, name_servers, error_message,
		       created_at, updated_at, completed_at
		FROM clssub.provisions
		WHERE telegram_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, telegramID, limit)
	if err != nil {
		return nil, fmt.Errorf("query provisions: %w", err)
	}
	defer rows.Close()
	return r.scanProvisions(rows)
}

// List returns the most recent provisions across all users.
func (r *ProvisionRepository) List(ctx context.Context, limit int) ([]*models.Provision, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, telegram_id, domain, redirect_url, status, step,
		       cpanel_username, server_ip, script_urls, name_servers, error_message,
		       created_at, updated_at, completed_at
		FROM clssub.provisions
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query provisions: %w", err)
	}
	defer rows.Close()
	return r.scanProvisions(rows)
}

// Update writes back the mutable fields of a provision record.
func (r *ProvisionRepository) Update(ctx context.Context, p *models.Provision) error {
	query := `
		UPDATE clssub.provisions SET
			status = $1,
			step = $2,
			cpanel_username = $3,
			server_ip = $4,
			script_urls = $5,
			name_servers = $6,
			error_message = $7,
			completed_at = $8,
			updated_at = now()
		WHERE id = $9
	`
	_, err := r.pool.Exec(ctx, query,
		p.Status, p.Step, p.CpanelUsername, p.ServerIP,
		p.ScriptURLs, p.NameServers, p.ErrorMessage, p.CompletedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update provision: %w", err)
	}
	return nil
}

func (r *ProvisionRepository) scanProvision(row pgx.Row) (*models.Provision, error) {
	p := &models.Provision{}
	err := row.Scan(
		&p.ID, &p.TelegramID, &p.Domain, &p.RedirectURL, &p.Status, &p.Step,
		&p.CpanelUsername, &p.ServerIP, &p.ScriptURLs, &p.NameServers, &p.ErrorMessage,
		&p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan provision: %w", err)
	}
	return p, nil
}

func (r *ProvisionRepository) scanProvisions(rows pgx.Rows) ([]*models.Provision, error) {
	var provisions []*models.Provision
	for rows.Next() {
		p, err := r.scanProvision(rows)
		if err != nil {
			return nil, err
		}
		provisions = append(provisions, p)
	}
	return provisions, rows.Err()
}
