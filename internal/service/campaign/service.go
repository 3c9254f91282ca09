package campaign

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/ledger"
	"github.com/ignite/campaign-dispatch/internal/pkg/distlock"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// LockFactory returns a distributed lock for the given key. A nil factory
// disables launch locking; the status guard in the ledger remains as a
// secondary safety net.
type LockFactory func(key string) distlock.DistLock

// Service implements campaign lifecycle logic. All public methods are safe
// for concurrent use if the underlying ledger is concurrency-safe.
type Service struct {
	store    ledger.Store
	audience Audience
	planner  Planner
	locks    LockFactory
}

// NewService creates a campaign service.
func NewService(store ledger.Store, audience Audience, planner Planner, locks LockFactory) *Service {
	return &Service{store: store, audience: audience, planner: planner, locks: locks}
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name          string            `json:"name"`
	Subject       string            `json:"subject"`
	FromName      string            `json:"from_name"`
	FromEmail     string            `json:"from_email"`
	ReplyTo       string            `json:"reply_to"`
	HTMLBody      string            `json:"html_body"`
	TargetMode    domain.TargetMode `json:"target_mode"`
	TargetFilters map[string]string `json:"target_filters"`
}

// UpdateFields holds optional campaign edits; nil fields are untouched.
type UpdateFields struct {
	Name     *string `json:"name"`
	Subject  *string `json:"subject"`
	FromName *string `json:"from_name"`
	ReplyTo  *string `json:"reply_to"`
	HTMLBody *string `json:"html_body"`
}

// Create validates and persists a new campaign in draft status.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Campaign, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if input.Subject == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if input.HTMLBody == "" {
		return nil, fmt.Errorf("%w: html body is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(input.FromEmail); err != nil {
		return nil, fmt.Errorf("%w: bad from email", ErrValidation)
	}
	if input.TargetMode == "" {
		input.TargetMode = domain.TargetAll
	}

	now := time.Now().UTC()
	c := &domain.Campaign{
		ID:            uuid.NewString(),
		Name:          input.Name,
		Subject:       input.Subject,
		FromName:      input.FromName,
		FromEmail:     input.FromEmail,
		ReplyTo:       input.ReplyTo,
		HTMLBody:      input.HTMLBody,
		Status:        domain.CampaignDraft,
		TargetMode:    input.TargetMode,
		TargetFilters: input.TargetFilters,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.Campaigns().Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	return c, nil
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := s.store.Campaigns().Get(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, ErrNotFound
	}
	return c, err
}

// List returns campaigns, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*domain.Campaign, error) {
	return s.store.Campaigns().List(ctx, limit, offset)
}

// Update edits campaign content. Only draft and scheduled campaigns may be
// edited; anything later has already reached recipients.
func (s *Service) Update(ctx context.Context, id string, u UpdateFields) (*domain.Campaign, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignDraft && c.Status != domain.CampaignScheduled {
		return nil, ErrInvalidTransition
	}

	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Subject != nil {
		c.Subject = *u.Subject
	}
	if u.FromName != nil {
		c.FromName = *u.FromName
	}
	if u.ReplyTo != nil {
		c.ReplyTo = *u.ReplyTo
	}
	if u.HTMLBody != nil {
		c.HTMLBody = *u.HTMLBody
	}

	if err := s.store.Campaigns().Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update campaign: %w", err)
	}
	return c, nil
}

// Delete removes a campaign. Only drafts may be deleted; everything else is
// history.
func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != domain.CampaignDraft {
		return ErrNotDraft
	}
	return s.store.Campaigns().Delete(ctx, id)
}

// Schedule moves a draft to scheduled.
func (s *Service) Schedule(ctx context.Context, id string) error {
	err := s.store.Campaigns().TransitionStatus(ctx, id, domain.CampaignScheduled, domain.CampaignDraft)
	return s.mapTransitionErr(err)
}

// Send prepares a campaign and launches delivery: it materializes one
// pending recipient per targeted user, moves the campaign to sending, and
// enqueues the recipient set as batch jobs. A campaign may enter sending
// only from draft or scheduled and only with at least one pending
// recipient.
//
// Re-invoking Send on a campaign whose earlier launch half-completed reuses
// the recipients already in the ledger instead of duplicating them.
func (s *Service) Send(ctx context.Context, id string) (int, error) {
	if s.locks != nil {
		lock := s.locks("campaign-launch:" + id)
		acquired, lerr := lock.Acquire(ctx)
		if lerr != nil {
			// the status guard below still prevents double launches
			logger.Warn("launch lock unavailable", "campaign_id", id, "error", lerr.Error())
		} else if !acquired {
			return 0, ErrLaunchInProgress
		} else {
			defer lock.Release(ctx)
		}
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if !c.CanTransitionTo(domain.CampaignSending) {
		return 0, ErrInvalidTransition
	}

	pending, err := s.preparedRecipients(ctx, c)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, ErrNoRecipients
	}

	err = s.store.Campaigns().TransitionStatus(ctx, id, domain.CampaignSending,
		domain.CampaignDraft, domain.CampaignScheduled)
	if err != nil {
		return 0, s.mapTransitionErr(err)
	}

	batches, err := s.planner.Plan(ctx, id, pending)
	if err != nil {
		// Already-published batches will flow regardless; the error
		// surfaces so the operator knows the plan was incomplete.
		return 0, fmt.Errorf("enqueue batches: %w", err)
	}

	logger.Info("campaign launched",
		"campaign_id", id,
		"recipients", len(pending),
		"batches", batches)
	return len(pending), nil
}

// preparedRecipients returns the ids of the campaign's pending recipients,
// materializing them from the audience on first launch.
func (s *Service) preparedRecipients(ctx context.Context, c *domain.Campaign) ([]string, error) {
	existing, err := s.store.Recipients().ListByStatus(ctx, c.ID, domain.RecipientPending)
	if err != nil {
		return nil, fmt.Errorf("list pending recipients: %w", err)
	}
	if len(existing) > 0 {
		ids := make([]string, len(existing))
		for i, r := range existing {
			ids[i] = r.ID
		}
		return ids, nil
	}

	members, err := s.audience.Resolve(ctx, c.TargetMode, c.TargetFilters)
	if err != nil {
		return nil, fmt.Errorf("resolve audience: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	recipients := make([]*domain.Recipient, len(members))
	ids := make([]string, len(members))
	for i, m := range members {
		id := uuid.NewString()
		recipients[i] = &domain.Recipient{
			ID:         id,
			CampaignID: c.ID,
			UserID:     m.UserID,
			Email:      m.Email,
			Name:       m.Name,
			MergeData:  m.MergeData,
			Status:     domain.RecipientPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		ids[i] = id
	}

	if err := s.store.Recipients().CreateBatch(ctx, recipients); err != nil {
		return nil, fmt.Errorf("create recipients: %w", err)
	}
	return ids, nil
}

// Cancel terminates a scheduled or sending campaign. The reason is
// required and recorded; in-flight batches observe the cancellation and
// stop sending.
func (s *Service) Cancel(ctx context.Context, id, reason string) error {
	if reason == "" {
		return ErrReasonRequired
	}
	err := s.store.Campaigns().Cancel(ctx, id, reason)
	return s.mapTransitionErr(err)
}

func (s *Service) mapTransitionErr(err error) error {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ledger.ErrStatusConflict):
		return ErrInvalidTransition
	default:
		return err
	}
}
