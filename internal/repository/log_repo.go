package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/x8080x2/CLS0-sub000/internal/models"
)

type LogRepository struct {
	pool *pgxpool.Pool
}

func NewLogRepository(pool *pgxpool.Pool) *LogRepository {
	return &LogRepository{pool: pool}
}

// Create creates a new provision log entry.
func (r *LogRepository) Create(ctx context.Context, logEntry *models.ProvisionLog) error {
	if logEntry.ID == "" {
		logEntry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO clssub.provision_logs (id, provision_id, action, status, message)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		logEntry.ID, logEntry.ProvisionID, logEntry.Action, logEntry.Status, logEntry.Message,
	)
	if err != nil {
		return fmt.Errorf("insert provision log: %w", err)
	}
	return nil
}

// GetByProvisionID retrieves logs for a provision.
func (r *LogRepository) GetByProvisionID(ctx context.Context, provisionID string, limit int) ([]*models.ProvisionLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, provision_id, action, status, message, created_at
		FROM clssub.provision_logs
		WHERE provision_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, provisionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query provision logs: %w", err)
	}
	defer rows.Close()

	var logEntries []*models.ProvisionLog
	for rows.Next() {
		logEntry := &models.ProvisionLog{}
		err := rows.Scan(
			&logEntry.ID, &logEntry.ProvisionID, &logEntry.Action, &logEntry.Status,
			&logEntry.Message, &logEntry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan provision log: %w", err)
		}
		logEntries = append(logEntries, logEntry)
	}

	return logEntries, rows.Err()
}

// LogAction is a helper to log a step transition.
func (r *LogRepository) LogAction(ctx context.Context, provisionID, action, status, message string) error {
	return r.Create(ctx, &models.ProvisionLog{
		ProvisionID: provisionID,
		Action:      action,
		Status:      status,
		Message:     message,
	})
}
