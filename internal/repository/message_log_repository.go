package repository

import (
	"context"
	"database/sql"

	"github.com/unclebandit/wa-dispatch/internal/model"
)

type MessageLogRepositoryInterface interface {
	LatestByMessageID(ctx context.Context, id string) (*model.MessageLog, error)
	UpdateStatus(ctx context.Context, id, status, errMsg string) (int64, error)
}

type MessageLogRepository struct {
	DB *sql.DB
}

// LatestByMessageID matches either the provider message id or our own
// message id and returns the most recently created row.
func (r *MessageLogRepository) LatestByMessageID(ctx context.Context, id string) (*model.MessageLog, error) {
	query := `
        SELECT id, business_id, message_id, provider_message_id, status, error, created_at, updated_at
        FROM message_logs
        WHERE provider_message_id=$1 OR message_id=$1
        ORDER BY created_at DESC
        LIMIT 1
    `
	var m model.MessageLog
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.BusinessID, &m.MessageID, &m.ProviderMessageID,
		&m.Status, &m.Error, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// UpdateStatus moves a message log forward; a status that does not outrank
// the current one leaves the row alone.
func (r *MessageLogRepository) UpdateStatus(ctx context.Context, id, status, errMsg string) (int64, error) {
	query := `
        UPDATE message_logs
        SET status=$1, error=COALESCE($2, error), updated_at=NOW()
        WHERE (provider_message_id=$3 OR message_id=$3) AND ` + deliveryRank("status") + ` < $4
    `
	res, err := r.DB.ExecContext(ctx, query, status, nullString(errMsg), id, statusRank(status))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
