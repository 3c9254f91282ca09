package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/ledger"
)

// CampaignRepo implements ledger.Campaigns against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `
	id, name, subject, from_name, from_email, COALESCE(reply_to,''),
	html_body, status, target_mode, COALESCE(target_filters,'{}'),
	estimated_recipients, retry_count, COALESCE(cancel_reason,''),
	total_recipients, sent, opened, clicked, bounced, failed, pending,
	open_rate, click_rate, bounce_rate, failure_rate, stats_updated_at,
	created_at, scheduled_at, sent_at, cancelled_at, updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	var filters []byte
	var statsUpdated sql.NullTime
	err := row.Scan(
		&c.ID, &c.Name, &c.Subject, &c.FromName, &c.FromEmail, &c.ReplyTo,
		&c.HTMLBody, &c.Status, &c.TargetMode, &filters,
		&c.EstimatedRecipients, &c.RetryCount, &c.CancelReason,
		&c.Stats.TotalRecipients, &c.Stats.Sent, &c.Stats.Opened, &c.Stats.Clicked,
		&c.Stats.Bounced, &c.Stats.Failed, &c.Stats.Pending,
		&c.Stats.OpenRate, &c.Stats.ClickRate, &c.Stats.BounceRate, &c.Stats.FailureRate,
		&statsUpdated,
		&c.CreatedAt, &c.ScheduledAt, &c.SentAt, &c.CancelledAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if statsUpdated.Valid {
		c.Stats.UpdatedAt = statsUpdated.Time
	}
	if len(filters) > 0 {
		if jerr := json.Unmarshal(filters, &c.TargetFilters); jerr != nil {
			return nil, fmt.Errorf("decode target filters: %w", jerr)
		}
	}
	return c, nil
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	filters, err := json.Marshal(c.TargetFilters)
	if err != nil {
		return fmt.Errorf("encode target filters: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO campaigns (
			id, name, subject, from_name, from_email, reply_to, html_body,
			status, target_mode, target_filters, estimated_recipients,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, c.ID, c.Name, c.Subject, c.FromName, c.FromEmail, c.ReplyTo, c.HTMLBody,
		c.Status, c.TargetMode, filters, c.EstimatedRecipients,
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, limit, offset int) ([]*domain.Campaign, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []*domain.Campaign
	for rows.Next() {
		c, serr := scanCampaign(rows)
		if serr != nil {
			return nil, fmt.Errorf("scan campaign: %w", serr)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) Update(ctx context.Context, c *domain.Campaign) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET
			name = $2, subject = $3, from_name = $4, reply_to = $5,
			html_body = $6, updated_at = NOW()
		WHERE id = $1
	`, c.ID, c.Name, c.Subject, c.FromName, c.ReplyTo, c.HTMLBody)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	return checkFound(res)
}

func (r *CampaignRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return checkFound(res)
}

func (r *CampaignRepo) TransitionStatus(ctx context.Context, id string, next domain.CampaignStatus, allowedFrom ...domain.CampaignStatus) error {
	from := make([]string, len(allowedFrom))
	for i, s := range allowedFrom {
		from[i] = string(s)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET
			status = $2,
			scheduled_at = CASE WHEN $2 = 'scheduled' THEN NOW() ELSE scheduled_at END,
			sent_at      = CASE WHEN $2 = 'sent'      THEN NOW() ELSE sent_at END,
			updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
	`, id, next, pq.Array(from))
	if err != nil {
		return fmt.Errorf("transition campaign status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, gerr := r.Get(ctx, id); gerr != nil {
			return gerr
		}
		return ledger.ErrStatusConflict
	}
	return nil
}

func (r *CampaignRepo) Cancel(ctx context.Context, id, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET
			status = 'cancelled', cancel_reason = $2,
			cancelled_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ('scheduled','sending')
	`, id, reason)
	if err != nil {
		return fmt.Errorf("cancel campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, gerr := r.Get(ctx, id); gerr != nil {
			return gerr
		}
		return ledger.ErrStatusConflict
	}
	return nil
}

func (r *CampaignRepo) SaveStats(ctx context.Context, id string, stats domain.CampaignStats) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET
			total_recipients = $2, sent = $3, opened = $4, clicked = $5,
			bounced = $6, failed = $7, pending = $8,
			open_rate = $9, click_rate = $10, bounce_rate = $11, failure_rate = $12,
			stats_updated_at = $13, updated_at = NOW()
		WHERE id = $1
	`, id, stats.TotalRecipients, stats.Sent, stats.Opened, stats.Clicked,
		stats.Bounced, stats.Failed, stats.Pending,
		stats.OpenRate, stats.ClickRate, stats.BounceRate, stats.FailureRate,
		stats.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save campaign stats: %w", err)
	}
	return checkFound(res)
}

func (r *CampaignRepo) IncrementRetryCount(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE campaigns SET retry_count = retry_count + 1, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment retry count: %w", err)
	}
	return checkFound(res)
}

func checkFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}
