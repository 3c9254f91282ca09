package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/ledger"
)

// RecipientRepo implements ledger.Recipients against PostgreSQL.
type RecipientRepo struct{ db *sql.DB }

// NewRecipientRepo creates a Postgres-backed recipient repository.
func NewRecipientRepo(db *sql.DB) *RecipientRepo { return &RecipientRepo{db: db} }

// CreateBatch inserts recipients with COPY inside one transaction.
// Campaign preparation can materialize six-figure recipient sets, so
// per-row INSERTs are off the table.
func (r *RecipientRepo) CreateBatch(ctx context.Context, recipients []*domain.Recipient) error {
	if len(recipients) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("campaign_recipients",
		"id", "campaign_id", "user_id", "email", "name", "merge_data",
		"status", "created_at", "updated_at"))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}

	for _, rec := range recipients {
		merge, merr := json.Marshal(rec.MergeData)
		if merr != nil {
			return fmt.Errorf("encode merge data: %w", merr)
		}
		if _, err = stmt.ExecContext(ctx, rec.ID, rec.CampaignID, rec.UserID,
			rec.Email, rec.Name, string(merge), rec.Status,
			rec.CreatedAt, rec.UpdatedAt); err != nil {
			return fmt.Errorf("copy recipient: %w", err)
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("flush copy: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return fmt.Errorf("close copy: %w", err)
	}
	return tx.Commit()
}

const recipientColumns = `
	id, campaign_id, user_id, email, COALESCE(name,''), COALESCE(merge_data,'{}'),
	status, open_count, click_count, opened_at, clicked_at, sent_at,
	COALESCE(error_message,''), error_permanent, COALESCE(email_provider,''),
	fallback_used, retry_count, last_retry_at, created_at, updated_at`

func scanRecipient(row interface{ Scan(...interface{}) error }) (*domain.Recipient, error) {
	rec := &domain.Recipient{}
	var merge []byte
	err := row.Scan(
		&rec.ID, &rec.CampaignID, &rec.UserID, &rec.Email, &rec.Name, &merge,
		&rec.Status, &rec.OpenCount, &rec.ClickCount, &rec.OpenedAt, &rec.ClickedAt,
		&rec.SentAt, &rec.ErrorMessage, &rec.ErrorPermanent, &rec.EmailProvider,
		&rec.FallbackUsed, &rec.RetryCount, &rec.LastRetryAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(merge) > 0 {
		if jerr := json.Unmarshal(merge, &rec.MergeData); jerr != nil {
			return nil, fmt.Errorf("decode merge data: %w", jerr)
		}
	}
	return rec, nil
}

func (r *RecipientRepo) Get(ctx context.Context, campaignID, recipientID string) (*domain.Recipient, error) {
	rec, err := scanRecipient(r.db.QueryRowContext(ctx,
		`SELECT `+recipientColumns+` FROM campaign_recipients WHERE campaign_id = $1 AND id = $2`,
		campaignID, recipientID))
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recipient: %w", err)
	}
	return rec, nil
}

func (r *RecipientRepo) ListByCampaign(ctx context.Context, campaignID string) ([]*domain.Recipient, error) {
	return r.list(ctx,
		`SELECT `+recipientColumns+` FROM campaign_recipients WHERE campaign_id = $1 ORDER BY id`,
		campaignID)
}

func (r *RecipientRepo) ListByStatus(ctx context.Context, campaignID string, status domain.RecipientStatus) ([]*domain.Recipient, error) {
	return r.list(ctx,
		`SELECT `+recipientColumns+` FROM campaign_recipients WHERE campaign_id = $1 AND status = $2 ORDER BY id`,
		campaignID, status)
}

func (r *RecipientRepo) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Recipient, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	var out []*domain.Recipient
	for rows.Next() {
		rec, serr := scanRecipient(rows)
		if serr != nil {
			return nil, fmt.Errorf("scan recipient: %w", serr)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RecipientRepo) CountByStatus(ctx context.Context, campaignID string, status domain.RecipientStatus) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM campaign_recipients WHERE campaign_id = $1 AND status = $2`,
		campaignID, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count recipients: %w", err)
	}
	return n, nil
}

// UpdateSendResults applies a batch's outcomes in one UNNEST update rather
// than a round trip per recipient.
func (r *RecipientRepo) UpdateSendResults(ctx context.Context, campaignID string, updates []ledger.SendUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	ids := make([]string, len(updates))
	statuses := make([]string, len(updates))
	providers := make([]string, len(updates))
	fallbacks := make([]bool, len(updates))
	errMsgs := make([]string, len(updates))
	perms := make([]bool, len(updates))
	for i, u := range updates {
		ids[i] = u.RecipientID
		statuses[i] = string(u.Status)
		providers[i] = string(u.Provider)
		fallbacks[i] = u.FallbackUsed
		errMsgs[i] = u.ErrorMessage
		perms[i] = u.ErrorPermanent
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE campaign_recipients AS r SET
			status = u.status,
			email_provider = u.provider,
			fallback_used = u.fallback_used,
			error_message = u.error_message,
			error_permanent = u.error_permanent,
			sent_at = CASE WHEN u.status = 'sent' THEN COALESCE(r.sent_at, NOW()) ELSE r.sent_at END,
			updated_at = NOW()
		FROM (
			SELECT UNNEST($2::text[]) AS id,
			       UNNEST($3::text[]) AS status,
			       UNNEST($4::text[]) AS provider,
			       UNNEST($5::boolean[]) AS fallback_used,
			       UNNEST($6::text[]) AS error_message,
			       UNNEST($7::boolean[]) AS error_permanent
		) AS u
		WHERE r.campaign_id = $1 AND r.id = u.id
	`, campaignID, pq.Array(ids), pq.Array(statuses), pq.Array(providers),
		pq.Array(fallbacks), pq.Array(errMsgs), pq.Array(perms))
	if err != nil {
		return fmt.Errorf("bulk update send results: %w", err)
	}
	return nil
}

func (r *RecipientRepo) UpdateRetryResult(ctx context.Context, campaignID, recipientID string, u ledger.SendUpdate) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_recipients SET
			status = $3,
			email_provider = $4,
			fallback_used = $5,
			error_message = $6,
			error_permanent = $7,
			sent_at = CASE WHEN $3 = 'sent' THEN COALESCE(sent_at, NOW()) ELSE sent_at END,
			retry_count = retry_count + 1,
			last_retry_at = NOW(),
			updated_at = NOW()
		WHERE campaign_id = $1 AND id = $2
	`, campaignID, recipientID, u.Status, string(u.Provider), u.FallbackUsed,
		u.ErrorMessage, u.ErrorPermanent)
	if err != nil {
		return fmt.Errorf("update retry result: %w", err)
	}
	return checkFound(res)
}

// RecordOpen is one conditional UPDATE: the status advances only along the
// forward path, the counter always increments, and opened_at keeps its
// first value.
func (r *RecipientRepo) RecordOpen(ctx context.Context, campaignID, recipientID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_recipients SET
			status = CASE WHEN status IN ('pending','sent','opened') THEN 'opened' ELSE status END,
			open_count = open_count + 1,
			opened_at = COALESCE(opened_at, $3),
			updated_at = NOW()
		WHERE campaign_id = $1 AND id = $2
	`, campaignID, recipientID, at)
	if err != nil {
		return fmt.Errorf("record open: %w", err)
	}
	return checkFound(res)
}

func (r *RecipientRepo) RecordClick(ctx context.Context, campaignID, recipientID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_recipients SET
			status = CASE WHEN status IN ('pending','sent','opened','clicked') THEN 'clicked' ELSE status END,
			click_count = click_count + 1,
			clicked_at = COALESCE(clicked_at, $3),
			updated_at = NOW()
		WHERE campaign_id = $1 AND id = $2
	`, campaignID, recipientID, at)
	if err != nil {
		return fmt.Errorf("record click: %w", err)
	}
	return checkFound(res)
}

// RecordBounce lets provider feedback win over any prior status.
func (r *RecipientRepo) RecordBounce(ctx context.Context, campaignID, recipientID, reason string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_recipients SET
			status = 'bounced',
			error_message = $3,
			updated_at = $4
		WHERE campaign_id = $1 AND id = $2
	`, campaignID, recipientID, reason, at)
	if err != nil {
		return fmt.Errorf("record bounce: %w", err)
	}
	return checkFound(res)
}
