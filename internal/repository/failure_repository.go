package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/wa-dispatch/internal/model"
)

type FailureRepositoryInterface interface {
	Insert(ctx context.Context, f *model.FailureRecord) error
}

// FailureRepository stores webhook payloads that could not be dispatched.
// raw_json is BYTEA so the payload is kept byte for byte, including escapes
// such as \u0000 that a JSONB column would refuse.
type FailureRepository struct {
	DB *sql.DB
}

func (r *FailureRepository) Insert(ctx context.Context, f *model.FailureRecord) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	query := `
        INSERT INTO webhook_failures (id, source, failure_type, error_message, raw_json, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err := r.DB.ExecContext(ctx, query, f.ID, f.Source, f.FailureType, f.ErrorMessage, f.RawJSON, f.CreatedAt)
	return err
}
