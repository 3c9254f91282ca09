package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/ledger"
)

func newMockRecipientRepo(t *testing.T) (*RecipientRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRecipientRepo(db), mock
}

var recipientCols = []string{
	"id", "campaign_id", "user_id", "email", "name", "merge_data",
	"status", "open_count", "click_count", "opened_at", "clicked_at", "sent_at",
	"error_message", "error_permanent", "email_provider",
	"fallback_used", "retry_count", "last_retry_at", "created_at", "updated_at",
}

func recipientRow(id string, status domain.RecipientStatus) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(recipientCols).AddRow(
		id, "c1", "u1", "one@example.com", "One", `{"promo":"SAVE20"}`,
		string(status), 2, 1, now, nil, now,
		"", false, "sparkpost",
		false, 0, nil, now, now,
	)
}

func TestRecipientGet(t *testing.T) {
	repo, mock := newMockRecipientRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM campaign_recipients WHERE campaign_id =").
		WithArgs("c1", "r1").
		WillReturnRows(recipientRow("r1", domain.RecipientOpened))

	rec, err := repo.Get(context.Background(), "c1", "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", rec.ID)
	assert.Equal(t, domain.RecipientOpened, rec.Status)
	assert.Equal(t, 2, rec.OpenCount)
	assert.Equal(t, map[string]string{"promo": "SAVE20"}, rec.MergeData)
	assert.NotNil(t, rec.OpenedAt)
	assert.Nil(t, rec.ClickedAt)
}

func TestRecipientGetNotFound(t *testing.T) {
	repo, mock := newMockRecipientRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM campaign_recipients WHERE campaign_id =").
		WithArgs("c1", "ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "c1", "ghost")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestListByStatus(t *testing.T) {
	repo, mock := newMockRecipientRepo(t)

	rows := recipientRow("r1", domain.RecipientPending)
	now := time.Now().UTC()
	rows.AddRow("r2", "c1", "u2", "two@example.com", "", `{}`,
		string(domain.RecipientPending), 0, 0, nil, nil, nil,
		"", false, "", false, 0, nil, now, now)

	mock.ExpectQuery("SELECT (.+) FROM campaign_recipients WHERE campaign_id = (.+) AND status =").
		WithArgs("c1", string(domain.RecipientPending)).
		WillReturnRows(rows)

	out, err := repo.ListByStatus(context.Background(), "c1", domain.RecipientPending)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "two@example.com", out[1].Email)
}

func TestCountByStatus(t *testing.T) {
	repo, mock := newMockRecipientRepo(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("c1", string(domain.RecipientFailed)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.CountByStatus(context.Background(), "c1", domain.RecipientFailed)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestCreateBatchUsesCopy(t *testing.T) {
	repo, mock := newMockRecipientRepo(t)

	now := time.Now().UTC()
	recs := []*domain.Recipient{
		{ID: "r1", CampaignID: "c1", UserID: "u1", Email: "one@example.com",
			Name: "One", Status: domain.RecipientPending, CreatedAt: now, UpdatedAt: now},
		{ID: "r2", CampaignID: "c1", UserID: "u2", Email: "two@example.com",
			Status: domain.RecipientPending, CreatedAt: now, UpdatedAt: now},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`COPY "campaign_recipients"`)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0)) // flush
	mock.ExpectCommit()

	require.NoError(t, repo.CreateBatch(context.Background(), recs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBatchEmpty(t *testing.T) {
	repo, mock := newMockRecipientRepo(t)
	require.NoError(t, repo.CreateBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSendResults(t *testing.T) {
	repo, mock := newMockRecipientRepo(t)

	mock.ExpectExec("UPDATE campaign_recipients AS r SET").
		WithArgs("c1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.UpdateSendResults(context.Background(), "c1", []ledger.SendUpdate{
		{RecipientID: "r1", Status: domain.RecipientSent, Provider: domain.TransportSparkPost},
		{RecipientID: "r2", Status: domain.RecipientFailed, ErrorMessage: "mailbox full"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSendResultsEmpty(t *testing.T) {
	repo, mock := newMockRecipientRepo(t)
	require.NoError(t, repo.UpdateSendResults(context.Background(), "c1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRetryResult(t *testing.T) {
	repo, mock := newMockRecipientRepo(t)

	mock.ExpectExec("retry_count = retry_count").
		WithArgs("c1", "r1", string(domain.RecipientSent), "ses", true, "", false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateRetryResult(context.Background(), "c1", "r1", ledger.SendUpdate{
		RecipientID:  "r1",
		Status:       domain.RecipientSent,
		Provider:     domain.TransportSES,
		FallbackUsed: true,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRetryResultNotFound(t *testing.T) {
	repo, mock := newMockRecipientRepo(t)

	mock.ExpectExec("retry_count = retry_count").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateRetryResult(context.Background(), "c1", "ghost", ledger.SendUpdate{})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestRecordOpen(t *testing.T) {
	repo, mock := newMockRecipientRepo(t)
	at := time.Now().UTC()

	mock.ExpectExec("open_count = open_count").
		WithArgs("c1", "r1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordOpen(context.Background(), "c1", "r1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordOpenNotFound(t *testing.T) {
	repo, mock := newMockRecipientRepo(t)

	mock.ExpectExec("open_count = open_count").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RecordOpen(context.Background(), "c1", "ghost", time.Now())
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestRecordClick(t *testing.T) {
	repo, mock := newMockRecipientRepo(t)
	at := time.Now().UTC()

	mock.ExpectExec("click_count = click_count").
		WithArgs("c1", "r1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordClick(context.Background(), "c1", "r1", at))
}

func TestRecordBounce(t *testing.T) {
	repo, mock := newMockRecipientRepo(t)
	at := time.Now().UTC()

	mock.ExpectExec("status = 'bounced'").
		WithArgs("c1", "r1", "550 user unknown", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordBounce(context.Background(), "c1", "r1", "550 user unknown", at))
}
