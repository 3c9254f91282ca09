package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/ledger"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/stats"
)

// maxRetryErrors caps the per-recipient error details in a retry report.
const maxRetryErrors = 10

// RetryCoordinator re-sends a campaign's failed recipients on operator
// request. Sends are sequential with a fixed delay so a large failure set
// does not burst against transport limits.
type RetryCoordinator struct {
	store   ledger.Store
	sender  Sender
	builder *ContentBuilder
	aggr    *stats.Aggregator
	limiter *RateLimiter
	primary domain.TransportType
	delay   time.Duration
}

// NewRetryCoordinator wires a coordinator. limiter may be nil; delay <= 0
// selects 100ms.
func NewRetryCoordinator(store ledger.Store, sender Sender, builder *ContentBuilder, aggr *stats.Aggregator, limiter *RateLimiter, primary domain.TransportType, delay time.Duration) *RetryCoordinator {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	return &RetryCoordinator{
		store:   store,
		sender:  sender,
		builder: builder,
		aggr:    aggr,
		limiter: limiter,
		primary: primary,
		delay:   delay,
	}
}

// RetryFailed re-sends every recipient currently in the failed state.
// Recipients whose last failure was permanent are skipped unless force is
// set; resending a rejected address just fails again. Successes move to
// sent with the error cleared; repeated failures stay failed with the new
// error. The campaign retry counter advances once per run.
func (c *RetryCoordinator) RetryFailed(ctx context.Context, campaignID string, force bool) (*domain.RetryResult, error) {
	campaign, err := c.store.Campaigns().Get(ctx, campaignID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load campaign: %w", err)
	}

	failed, err := c.store.Recipients().ListByStatus(ctx, campaignID, domain.RecipientFailed)
	if err != nil {
		return nil, fmt.Errorf("list failed recipients: %w", err)
	}
	if len(failed) == 0 {
		return nil, ErrNoFailedRecipients
	}

	logger.Info("retrying failed recipients",
		"campaign_id", campaignID,
		"count", len(failed),
		"force", fmt.Sprintf("%t", force))

	result := &domain.RetryResult{
		CampaignID: campaignID,
		Total:      len(failed),
	}

	for i, recipient := range failed {
		if recipient.ErrorPermanent && !force {
			result.SkippedCount++
			continue
		}

		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.delay):
			}
		}
		if err := c.limiter.Wait(ctx, c.primary); err != nil {
			return nil, err
		}

		msg := c.builder.Build(campaign, recipient)
		res := c.sender.Send(ctx, msg)

		update := ledger.SendUpdate{
			RecipientID:  recipient.ID,
			Provider:     res.Provider,
			FallbackUsed: res.FallbackUsed,
		}
		if res.Success {
			sentAt := res.SentAt
			update.Status = domain.RecipientSent
			update.SentAt = &sentAt
			result.SuccessCount++
		} else {
			update.Status = domain.RecipientFailed
			update.ErrorMessage = res.Error
			update.ErrorPermanent = res.Permanent
			result.FailureCount++
			if len(result.Errors) < maxRetryErrors {
				result.Errors = append(result.Errors, domain.RetryError{
					RecipientID: recipient.ID,
					Email:       recipient.Email,
					Error:       res.Error,
				})
			}
		}

		if err := c.store.Recipients().UpdateRetryResult(ctx, campaignID, recipient.ID, update); err != nil {
			logger.Error("persist retry result",
				"campaign_id", campaignID,
				"recipient_id", recipient.ID,
				"error", err.Error())
		}
	}

	if err := c.store.Campaigns().IncrementRetryCount(ctx, campaignID); err != nil {
		logger.Error("increment campaign retry count", "campaign_id", campaignID, "error", err.Error())
	}

	c.aggr.RecomputeAsync(ctx, campaignID)
	finalizeIfComplete(ctx, c.store, campaignID)

	result.CompletedAt = time.Now().UTC()
	return result, nil
}
