package repository

import (
	"context"
	"database/sql"
	"errors"

	appErrors "github.com/unclebandit/wa-dispatch/internal/errors"
	"github.com/unclebandit/wa-dispatch/internal/model"
)

type SendLogRepositoryInterface interface {
	Record(ctx context.Context, l *model.SendLog) error
	LatestMessageID(ctx context.Context, messageID string) (string, error)
	LatestIDByMessageID(ctx context.Context, messageID string) (int64, error)
	BusinessIDByMessageID(ctx context.Context, messageID string) (int64, error)
	UpdateDeliveryStatus(ctx context.Context, messageID, status, errMsg string) (int64, error)
	StatsByCampaign(ctx context.Context, campaignID int64) (map[string]int, error)
}

type SendLogRepository struct {
	DB *sql.DB
}

// Record upserts one send attempt keyed by its idempotency key. A row that is
// already 'sent' is never overwritten, so a retried item cannot produce a
// second successful send record. l.ID is left at zero in that case.
func (r *SendLogRepository) Record(ctx context.Context, l *model.SendLog) error {
	query := `
        INSERT INTO campaign_send_logs
        (campaign_id, business_id, recipient_id, idempotency_key, provider, phone_number_id, to_phone,
         message_id, status, error, latency_ms, attempted_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
        ON CONFLICT (idempotency_key) DO UPDATE
        SET message_id=EXCLUDED.message_id, status=EXCLUDED.status, error=EXCLUDED.error,
            latency_ms=EXCLUDED.latency_ms, attempted_at=EXCLUDED.attempted_at
        WHERE campaign_send_logs.status <> 'sent'
        RETURNING id
    `
	err := r.DB.QueryRowContext(ctx, query,
		l.CampaignID,
		l.BusinessID,
		l.RecipientID,
		l.IdempotencyKey,
		l.Provider,
		l.PhoneNumberID,
		l.To,
		nullString(l.MessageID),
		l.Status,
		nullString(l.Error),
		l.LatencyMillis,
		l.AttemptedAt,
	).Scan(&l.ID)
	if errors.Is(err, sql.ErrNoRows) {
		l.ID = 0
		return nil
	}
	return err
}

func (r *SendLogRepository) LatestMessageID(ctx context.Context, messageID string) (string, error) {
	query := `SELECT message_id FROM campaign_send_logs WHERE message_id=$1 ORDER BY created_at DESC LIMIT 1`
	var id string
	if err := r.DB.QueryRowContext(ctx, query, messageID).Scan(&id); err != nil {
		return "", notFound(err)
	}
	return id, nil
}

func (r *SendLogRepository) LatestIDByMessageID(ctx context.Context, messageID string) (int64, error) {
	query := `SELECT id FROM campaign_send_logs WHERE message_id=$1 ORDER BY created_at DESC LIMIT 1`
	var id int64
	if err := r.DB.QueryRowContext(ctx, query, messageID).Scan(&id); err != nil {
		return 0, notFound(err)
	}
	return id, nil
}

func (r *SendLogRepository) BusinessIDByMessageID(ctx context.Context, messageID string) (int64, error) {
	query := `SELECT business_id FROM campaign_send_logs WHERE message_id=$1 ORDER BY created_at DESC LIMIT 1`
	var id int64
	if err := r.DB.QueryRowContext(ctx, query, messageID).Scan(&id); err != nil {
		return 0, notFound(err)
	}
	return id, nil
}

// deliveryRank orders delivery statuses so late webhooks cannot move a row
// backwards. failed and read share the top rank; neither replaces the other.
func deliveryRank(column string) string {
	return `CASE COALESCE(` + column + `, '')
            WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2
            WHEN 'read' THEN 3 WHEN 'failed' THEN 3
            ELSE 0 END`
}

func statusRank(status string) int {
	switch status {
	case "sent":
		return 1
	case "delivered":
		return 2
	case "read", "failed":
		return 3
	}
	return 0
}

// UpdateDeliveryStatus applies a provider status event. Events that do not
// advance the current status, and unknown ids, affect zero rows; neither is
// an error.
func (r *SendLogRepository) UpdateDeliveryStatus(ctx context.Context, messageID, status, errMsg string) (int64, error) {
	query := `
        UPDATE campaign_send_logs
        SET delivery_status=$1, error=COALESCE($2, error)
        WHERE message_id=$3 AND ` + deliveryRank("delivery_status") + ` < $4
    `
	res, err := r.DB.ExecContext(ctx, query, status, nullString(errMsg), messageID, statusRank(status))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SendLogRepository) StatsByCampaign(ctx context.Context, campaignID int64) (map[string]int, error) {
	query := `
        SELECT COALESCE(delivery_status, status), COUNT(*)
        FROM campaign_send_logs WHERE campaign_id=$1
        GROUP BY COALESCE(delivery_status, status)
    `
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.ErrNotFound
	}
	return err
}
