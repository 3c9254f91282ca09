package domain

import (
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignCancelled CampaignStatus = "cancelled"
)

// TargetMode describes how a campaign's recipient set is selected.
type TargetMode string

const (
	TargetAll      TargetMode = "all"
	TargetSegment  TargetMode = "segment"
	TargetExplicit TargetMode = "explicit"
)

// Campaign represents one bulk-email send definition: content, targeting,
// lifecycle status, and a cached stats snapshot.
type Campaign struct {
	ID        string         `json:"id" db:"id"`
	Name      string         `json:"name" db:"name"`
	Subject   string         `json:"subject" db:"subject"`
	FromName  string         `json:"from_name" db:"from_name"`
	FromEmail string         `json:"from_email" db:"from_email"`
	ReplyTo   string         `json:"reply_to" db:"reply_to"`
	HTMLBody  string         `json:"html_body" db:"html_body"`
	Status    CampaignStatus `json:"status" db:"status"`

	TargetMode          TargetMode        `json:"target_mode" db:"target_mode"`
	TargetFilters       map[string]string `json:"target_filters,omitempty" db:"-"`
	EstimatedRecipients int               `json:"estimated_recipients" db:"estimated_recipients"`

	// Stats is a cache derived from the recipient set. It is never the
	// source of truth and is safe to recompute at any time.
	Stats CampaignStats `json:"stats" db:"-"`

	RetryCount   int    `json:"retry_count" db:"retry_count"`
	CancelReason string `json:"cancel_reason,omitempty" db:"cancel_reason"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ScheduledAt *time.Time `json:"scheduled_at" db:"scheduled_at"`
	SentAt      *time.Time `json:"sent_at" db:"sent_at"`
	CancelledAt *time.Time `json:"cancelled_at" db:"cancelled_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignSent || c.Status == CampaignCancelled
}

// CanTransitionTo reports whether moving to the given status is a legal
// lifecycle transition from the campaign's current status.
func (c *Campaign) CanTransitionTo(next CampaignStatus) bool {
	switch next {
	case CampaignScheduled:
		return c.Status == CampaignDraft
	case CampaignSending:
		return c.Status == CampaignDraft || c.Status == CampaignScheduled
	case CampaignSent:
		return c.Status == CampaignSending
	case CampaignCancelled:
		return c.Status == CampaignScheduled || c.Status == CampaignSending
	default:
		return false
	}
}

// CampaignStats is the aggregate view of a campaign's recipient set.
// Counts are derived by a full scan; rates are percentages rounded to
// two decimal places and are zero when the denominator is zero.
type CampaignStats struct {
	TotalRecipients int `json:"total_recipients" db:"total_recipients"`
	Sent            int `json:"sent" db:"sent"`
	Opened          int `json:"opened" db:"opened"`
	Clicked         int `json:"clicked" db:"clicked"`
	Bounced         int `json:"bounced" db:"bounced"`
	Failed          int `json:"failed" db:"failed"`
	Pending         int `json:"pending" db:"pending"`

	OpenRate    float64 `json:"open_rate" db:"open_rate"`
	ClickRate   float64 `json:"click_rate" db:"click_rate"`
	BounceRate  float64 `json:"bounce_rate" db:"bounce_rate"`
	FailureRate float64 `json:"failure_rate" db:"failure_rate"`

	UpdatedAt time.Time `json:"updated_at" db:"stats_updated_at"`
}
