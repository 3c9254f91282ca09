// Package ledger defines the persistence contracts for campaigns and their
// per-recipient delivery/engagement records. The recipient ledger is the
// single source of truth; campaign stats are a cache derived from it.
//
// Implementations must provide per-record atomic updates: engagement
// recording is conditional (set-once timestamps, guarded status advance) so
// that concurrent and repeated events stay idempotent without cross-record
// locks.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

var (
	// ErrNotFound is returned when a campaign or recipient does not exist.
	ErrNotFound = errors.New("ledger: not found")
	// ErrStatusConflict is returned when a conditional status transition
	// finds the record in a different state than required.
	ErrStatusConflict = errors.New("ledger: status conflict")
)

// SendUpdate carries one recipient's delivery outcome for bulk persistence
// after a batch completes.
type SendUpdate struct {
	RecipientID    string
	Status         domain.RecipientStatus
	Provider       domain.TransportType
	FallbackUsed   bool
	ErrorMessage   string
	ErrorPermanent bool
	SentAt         *time.Time
}

// Campaigns is the campaign side of the ledger.
type Campaigns interface {
	Create(ctx context.Context, c *domain.Campaign) error
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Campaign, error)
	Update(ctx context.Context, c *domain.Campaign) error
	// Delete removes a campaign record. Callers are responsible for
	// enforcing that only drafts may be deleted.
	Delete(ctx context.Context, id string) error

	// TransitionStatus atomically moves the campaign to next if its
	// current status is one of allowedFrom. Returns ErrStatusConflict
	// when the guard fails and ErrNotFound when the campaign is absent.
	TransitionStatus(ctx context.Context, id string, next domain.CampaignStatus, allowedFrom ...domain.CampaignStatus) error

	// Cancel is TransitionStatus to cancelled plus the caller's reason,
	// applied in one atomic update.
	Cancel(ctx context.Context, id, reason string) error

	// SaveStats overwrites the cached stats snapshot. Safe to repeat.
	SaveStats(ctx context.Context, id string, stats domain.CampaignStats) error

	IncrementRetryCount(ctx context.Context, id string) error
}

// Recipients is the per-recipient side of the ledger.
type Recipients interface {
	CreateBatch(ctx context.Context, recipients []*domain.Recipient) error
	Get(ctx context.Context, campaignID, recipientID string) (*domain.Recipient, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]*domain.Recipient, error)
	ListByStatus(ctx context.Context, campaignID string, status domain.RecipientStatus) ([]*domain.Recipient, error)
	CountByStatus(ctx context.Context, campaignID string, status domain.RecipientStatus) (int, error)

	// UpdateSendResults persists a batch's per-recipient outcomes as one
	// bulk update where the backend supports it.
	UpdateSendResults(ctx context.Context, campaignID string, updates []SendUpdate) error

	// UpdateRetryResult records one retry attempt: on success the
	// recipient moves to sent and its error message is cleared; on
	// failure it stays failed with the new message. Either way the
	// retry counter and timestamp advance.
	UpdateRetryResult(ctx context.Context, campaignID, recipientID string, update SendUpdate) error

	// RecordOpen applies open semantics atomically: advance status to
	// opened unless it is already past it, increment the open counter,
	// and set opened_at only if unset.
	RecordOpen(ctx context.Context, campaignID, recipientID string, at time.Time) error

	// RecordClick mirrors RecordOpen for clicks.
	RecordClick(ctx context.Context, campaignID, recipientID string, at time.Time) error

	// RecordBounce marks the recipient bounced with the provider's
	// reason. Bounce wins over any prior status.
	RecordBounce(ctx context.Context, campaignID, recipientID, reason string, at time.Time) error
}

// Store bundles both sides for components that need the whole ledger.
type Store interface {
	Campaigns() Campaigns
	Recipients() Recipients
}
