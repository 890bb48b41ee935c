package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/wa-dispatch/internal/errors"
	"github.com/unclebandit/wa-dispatch/internal/model"
)

func sendLogFixture() *model.SendLog {
	return &model.SendLog{
		CampaignID:     7,
		BusinessID:     3,
		RecipientID:    42,
		IdempotencyKey: "7:42",
		Provider:       model.ProviderMetaCloud,
		PhoneNumberID:  "1000",
		To:             "254700000001",
		MessageID:      "wamid.ABC",
		Status:         model.OutcomeSent,
		LatencyMillis:  120,
		AttemptedAt:    time.Now(),
	}
}

func TestSendLogRecordInserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &SendLogRepository{DB: db}
	l := sendLogFixture()

	mock.ExpectQuery(`INSERT INTO campaign_send_logs .* ON CONFLICT \(idempotency_key\) DO UPDATE .* WHERE campaign_send_logs.status <> 'sent'`).
		WithArgs(int64(7), int64(3), int64(42), "7:42", model.ProviderMetaCloud, "1000", "254700000001",
			sqlmock.AnyArg(), model.OutcomeSent, sqlmock.AnyArg(), int64(120), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	require.NoError(t, repo.Record(context.Background(), l))
	assert.Equal(t, int64(11), l.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendLogRecordDuplicateSentIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &SendLogRepository{DB: db}
	l := sendLogFixture()

	// conflicting row already 'sent': the guarded DO UPDATE returns nothing
	mock.ExpectQuery(`INSERT INTO campaign_send_logs`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	require.NoError(t, repo.Record(context.Background(), l))
	assert.Equal(t, int64(0), l.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendLogRecordError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &SendLogRepository{DB: db}
	mock.ExpectQuery(`INSERT INTO campaign_send_logs`).WillReturnError(errors.New("conn reset"))

	assert.Error(t, repo.Record(context.Background(), sendLogFixture()))
}

func TestSendLogLookups(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &SendLogRepository{DB: db}
	ctx := context.Background()

	mock.ExpectQuery(`SELECT message_id FROM campaign_send_logs WHERE message_id=\$1 ORDER BY created_at DESC LIMIT 1`).
		WithArgs("wamid.X").
		WillReturnRows(sqlmock.NewRows([]string{"message_id"}).AddRow("wamid.X"))
	mock.ExpectQuery(`SELECT id FROM campaign_send_logs`).
		WithArgs("wamid.X").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectQuery(`SELECT business_id FROM campaign_send_logs`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	id, err := repo.LatestMessageID(ctx, "wamid.X")
	require.NoError(t, err)
	assert.Equal(t, "wamid.X", id)

	logID, err := repo.LatestIDByMessageID(ctx, "wamid.X")
	require.NoError(t, err)
	assert.Equal(t, int64(9), logID)

	_, err = repo.BusinessIDByMessageID(ctx, "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendLogUpdateDeliveryStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &SendLogRepository{DB: db}
	mock.ExpectExec(`UPDATE campaign_send_logs`).
		WithArgs("delivered", sql.NullString{}, "wamid.X", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE campaign_send_logs`).
		WithArgs("failed", sql.NullString{String: "131026", Valid: true}, "unknown", 3).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.UpdateDeliveryStatus(context.Background(), "wamid.X", "delivered", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.UpdateDeliveryStatus(context.Background(), "unknown", "failed", "131026")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryStatusNeverMovesBackwards(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sends := &SendLogRepository{DB: db}
	messages := &MessageLogRepository{DB: db}
	// a late 'sent' after 'read' matches no row because of the rank guard
	mock.ExpectExec(`UPDATE campaign_send_logs\s+SET .*\s+WHERE message_id=\$3 AND CASE COALESCE\(delivery_status, ''\).* < \$4`).
		WithArgs("sent", sql.NullString{}, "wamid.X", 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE message_logs\s+SET .*\s+WHERE \(provider_message_id=\$3 OR message_id=\$3\) AND CASE COALESCE\(status, ''\).* < \$4`).
		WithArgs("sent", sql.NullString{}, "wamid.X", 1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := sends.UpdateDeliveryStatus(context.Background(), "wamid.X", "sent", "")
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = messages.UpdateStatus(context.Background(), "wamid.X", "sent", "")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusRankOrdering(t *testing.T) {
	assert.Less(t, statusRank("queued"), statusRank("sent"))
	assert.Less(t, statusRank("sent"), statusRank("delivered"))
	assert.Less(t, statusRank("delivered"), statusRank("read"))
	assert.Equal(t, statusRank("read"), statusRank("failed"))
}

func TestSendLogStatsByCampaign(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &SendLogRepository{DB: db}
	mock.ExpectQuery(`SELECT COALESCE\(delivery_status, status\), COUNT\(\*\)`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("delivered", 5).
			AddRow("failed", 2))

	stats, err := repo.StatsByCampaign(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"delivered": 5, "failed": 2}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageLogLatestByMessageID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &MessageLogRepository{DB: db}
	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM message_logs\s+WHERE provider_message_id=\$1 OR message_id=\$1\s+ORDER BY created_at DESC`).
		WithArgs("wamid.X").
		WillReturnRows(sqlmock.NewRows([]string{"id", "business_id", "message_id", "provider_message_id", "status", "error", "created_at", "updated_at"}).
			AddRow(1, 3, "msg-1", "wamid.X", "sent", nil, now, nil))

	m, err := repo.LatestByMessageID(context.Background(), "wamid.X")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", m.MessageID)
	require.NotNil(t, m.ProviderMessageID)
	assert.Equal(t, "wamid.X", *m.ProviderMessageID)
	assert.Nil(t, m.Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageLogNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &MessageLogRepository{DB: db}
	mock.ExpectQuery(`FROM message_logs`).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err = repo.LatestByMessageID(context.Background(), "nope")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestMessageLogUpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &MessageLogRepository{DB: db}
	mock.ExpectExec(`UPDATE message_logs`).
		WithArgs("read", sql.NullString{}, "wamid.X", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.UpdateStatus(context.Background(), "wamid.X", "read", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestFailureInsertAssignsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &FailureRepository{DB: db}
	raw := []byte(`{"object":"whatsapp_business_account"}`)
	mock.ExpectExec(`INSERT INTO webhook_failures`).
		WithArgs(sqlmock.AnyArg(), "webhook", "dispatch", "boom", raw, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	f := &model.FailureRecord{Source: "webhook", FailureType: "dispatch", ErrorMessage: "boom", RawJSON: raw}
	require.NoError(t, repo.Insert(context.Background(), f))
	assert.Len(t, f.ID, 36)
	assert.False(t, f.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailureInsertKeepsRawBytes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &FailureRepository{DB: db}
	// key order, whitespace, a duplicate key and a NUL escape all survive
	raw := []byte(`{ "b":1,  "a":"\u0000", "a":2 }`)
	mock.ExpectExec(`INSERT INTO webhook_failures`).
		WithArgs(sqlmock.AnyArg(), "webhook.meta", "dispatch_error", "bad envelope", raw, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	f := &model.FailureRecord{Source: "webhook.meta", FailureType: "dispatch_error", ErrorMessage: "bad envelope", RawJSON: raw}
	require.NoError(t, repo.Insert(context.Background(), f))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &CampaignRepository{DB: db}
	mock.ExpectQuery(`FROM campaigns WHERE id=\$1`).WithArgs(int64(99)).WillReturnError(sql.ErrNoRows)

	_, err = repo.GetByID(context.Background(), 99)
	var nf *appErrors.ErrCampaignNotFound
	assert.ErrorAs(t, err, &nf)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCampaignGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &CampaignRepository{DB: db}
	now := time.Now()
	mock.ExpectQuery(`FROM campaigns WHERE id=\$1`).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "business_id", "name", "provider", "template_name", "language_code", "status", "scheduled_at", "created_at", "updated_at"}).
			AddRow(7, 3, "Invoices", "META_CLOUD", "invoice_due", "en", "running", nil, now, nil))

	c, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, model.ProviderMetaCloud, c.Provider)
	assert.Equal(t, "invoice_due", c.TemplateName)
}
