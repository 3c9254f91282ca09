package domain

import (
	"time"
)

// RecipientStatus enumerates the delivery/engagement states of a recipient.
type RecipientStatus string

const (
	RecipientPending RecipientStatus = "pending"
	RecipientSent    RecipientStatus = "sent"
	RecipientFailed  RecipientStatus = "failed"
	RecipientOpened  RecipientStatus = "opened"
	RecipientClicked RecipientStatus = "clicked"
	RecipientBounced RecipientStatus = "bounced"
)

// statusRank orders statuses along the forward engagement path. Bounced and
// failed sit outside the path and are handled explicitly in AdvanceTo.
var statusRank = map[RecipientStatus]int{
	RecipientPending: 0,
	RecipientSent:    1,
	RecipientOpened:  2,
	RecipientClicked: 3,
}

// Recipient is one targeted user's per-campaign delivery and engagement
// record. Recipients are created when a campaign is prepared for sending and
// are never deleted; they are the terminal record of campaign history.
type Recipient struct {
	ID         string            `json:"id" db:"id"`
	CampaignID string            `json:"campaign_id" db:"campaign_id"`
	UserID     string            `json:"user_id" db:"user_id"`
	Email      string            `json:"email" db:"email"`
	Name       string            `json:"name" db:"name"`
	MergeData  map[string]string `json:"merge_data,omitempty" db:"-"`

	Status RecipientStatus `json:"status" db:"status"`

	// OpenCount and ClickCount are monotonic; OpenedAt and ClickedAt are
	// set once by the first event and never overwritten.
	OpenCount  int        `json:"open_count" db:"open_count"`
	ClickCount int        `json:"click_count" db:"click_count"`
	OpenedAt   *time.Time `json:"opened_at" db:"opened_at"`
	ClickedAt  *time.Time `json:"clicked_at" db:"clicked_at"`

	SentAt       *time.Time `json:"sent_at" db:"sent_at"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	// ErrorPermanent marks the last failure as a content/address
	// rejection that retrying cannot fix.
	ErrorPermanent bool   `json:"error_permanent,omitempty" db:"error_permanent"`
	EmailProvider  string `json:"email_provider,omitempty" db:"email_provider"`
	FallbackUsed   bool   `json:"fallback_used" db:"fallback_used"`

	RetryCount  int        `json:"retry_count" db:"retry_count"`
	LastRetryAt *time.Time `json:"last_retry_at" db:"last_retry_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsSendable reports whether a dispatcher may send to this recipient.
// Anything past pending is a duplicate-delivery artifact and must be skipped.
func (r *Recipient) IsSendable() bool {
	return r.Status == RecipientPending
}

// AdvanceTo reports whether a transition to next preserves the monotonic
// forward ordering of recipient state. Bounced is reachable from anywhere
// (provider feedback wins); failed->sent is the retry path; transitions that
// would reverse opened/clicked progress are rejected.
func (r *Recipient) AdvanceTo(next RecipientStatus) bool {
	if next == RecipientBounced {
		return true
	}
	if r.Status == RecipientFailed {
		return next == RecipientSent || next == RecipientFailed
	}
	if next == RecipientFailed {
		return r.Status == RecipientPending
	}
	cur, ok := statusRank[r.Status]
	if !ok {
		return false
	}
	n, ok := statusRank[next]
	if !ok {
		return false
	}
	return n >= cur
}
