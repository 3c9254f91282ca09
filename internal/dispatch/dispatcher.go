// Package dispatch processes queue-delivered batches of campaign work:
// authenticating each delivery, sending every still-pending recipient
// through the delivery provider, persisting outcomes, and detecting
// campaign completion. The queue is at-least-once, so everything here is
// written to be safe under redelivery.
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

// statusRecheckEvery bounds how stale the cached campaign status may get
// inside one batch loop. A cancellation lands within this many sends.
const statusRecheckEvery = 10

// Sender delivers one resolved message. The production implementation is
// delivery.Provider.
type Sender interface {
	Send(ctx context.Context, msg *domain.EmailMessage) *domain.SendResult
}

// Dispatcher executes one BatchJob end to end.
type Dispatcher struct {
	store   ledger.Store
	sender  Sender
	builder *ContentBuilder
	aggr    *stats.Aggregator
	signer  *BatchSigner
	limiter *RateLimiter
	primary domain.TransportType
}

// NewDispatcher wires a Dispatcher. limiter may be nil.
func NewDispatcher(store ledger.Store, sender Sender, builder *ContentBuilder, aggr *stats.Aggregator, signer *BatchSigner, limiter *RateLimiter, primary domain.TransportType) *Dispatcher {
	return &Dispatcher{
		store:   store,
		sender:  sender,
		builder: builder,
		aggr:    aggr,
		signer:  signer,
		limiter: limiter,
		primary: primary,
	}
}

// ProcessBatch handles one queue delivery of a batch job.
//
// The token is verified before any ledger access; a bad token mutates
// nothing. Recipients that are no longer pending are skipped, which is what
// makes duplicate deliveries of the same job harmless. Each recipient's
// send is isolated: a failure is recorded and the loop moves on.
func (d *Dispatcher) ProcessBatch(ctx context.Context, token string, job *domain.BatchJob) (*domain.BatchResult, error) {
	if !d.signer.Verify(token, job.CampaignID, job.BatchID) {
		return nil, ErrUnauthorized
	}

	campaign, err := d.store.Campaigns().Get(ctx, job.CampaignID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load campaign: %w", err)
	}

	logger.Info("processing batch",
		"campaign_id", job.CampaignID,
		"batch_id", job.BatchID,
		"batch_index", job.BatchIndex,
		"total_batches", job.TotalBatches,
		"recipients", len(job.RecipientIDs),
		"attempt", job.AttemptCount)

	result := &domain.BatchResult{
		BatchID:    job.BatchID,
		CampaignID: job.CampaignID,
	}
	var updates []ledger.SendUpdate

	cancelled := campaign.Status == domain.CampaignCancelled
	for i, recipientID := range job.RecipientIDs {
		// Re-read the campaign status at a bounded interval so a
		// cancellation stops the remainder of the batch.
		if !cancelled && i > 0 && i%statusRecheckEvery == 0 {
			if cur, cerr := d.store.Campaigns().Get(ctx, job.CampaignID); cerr == nil {
				cancelled = cur.Status == domain.CampaignCancelled
			}
		}

		recipient, rerr := d.store.Recipients().Get(ctx, job.CampaignID, recipientID)
		if errors.Is(rerr, ledger.ErrNotFound) {
			// Tolerates races with deletion; the id is simply gone.
			logger.Debug("batch recipient no longer exists", "recipient_id", recipientID)
			continue
		}
		if rerr != nil {
			return nil, fmt.Errorf("load recipient %s: %w", recipientID, rerr)
		}

		if cancelled || !recipient.IsSendable() {
			result.SkippedCount++
			result.Results = append(result.Results, domain.RecipientResult{
				RecipientID: recipient.ID,
				Email:       recipient.Email,
				Status:      recipient.Status,
				Skipped:     true,
			})
			continue
		}

		update, rr := d.sendOne(ctx, campaign, recipient)
		updates = append(updates, update)
		result.Results = append(result.Results, rr)
		if update.Status == domain.RecipientSent {
			result.SuccessCount++
		} else {
			result.FailureCount++
		}
	}

	if len(updates) > 0 {
		if err := d.store.Recipients().UpdateSendResults(ctx, job.CampaignID, updates); err != nil {
			return nil, fmt.Errorf("persist batch results: %w", err)
		}
	}

	d.aggr.RecomputeAsync(ctx, job.CampaignID)
	finalizeIfComplete(ctx, d.store, job.CampaignID)

	result.CompletedAt = time.Now().UTC()
	return result, nil
}

func (d *Dispatcher) sendOne(ctx context.Context, campaign *domain.Campaign, recipient *domain.Recipient) (ledger.SendUpdate, domain.RecipientResult) {
	if err := d.limiter.Wait(ctx, d.primary); err != nil {
		return failedUpdate(recipient, "send limit: "+err.Error(), false, "")
	}

	msg := d.builder.Build(campaign, recipient)
	res := d.sender.Send(ctx, msg)
	if !res.Success {
		logger.Warn("send failed",
			"campaign_id", campaign.ID,
			"recipient_id", recipient.ID,
			"provider", string(res.Provider),
			"permanent", fmt.Sprintf("%t", res.Permanent),
			"error", res.Error)
		u, rr := failedUpdate(recipient, res.Error, res.Permanent, res.Provider)
		u.FallbackUsed = res.FallbackUsed
		return u, rr
	}

	sentAt := res.SentAt
	return ledger.SendUpdate{
			RecipientID:  recipient.ID,
			Status:       domain.RecipientSent,
			Provider:     res.Provider,
			FallbackUsed: res.FallbackUsed,
			SentAt:       &sentAt,
		}, domain.RecipientResult{
			RecipientID: recipient.ID,
			Email:       recipient.Email,
			Status:      domain.RecipientSent,
			Provider:    res.Provider,
		}
}

func failedUpdate(recipient *domain.Recipient, errMsg string, perm bool, provider domain.TransportType) (ledger.SendUpdate, domain.RecipientResult) {
	return ledger.SendUpdate{
			RecipientID:    recipient.ID,
			Status:         domain.RecipientFailed,
			Provider:       provider,
			ErrorMessage:   errMsg,
			ErrorPermanent: perm,
		}, domain.RecipientResult{
			RecipientID: recipient.ID,
			Email:       recipient.Email,
			Status:      domain.RecipientFailed,
			Provider:    provider,
			Error:       errMsg,
		}
}

// finalizeIfComplete marks the campaign sent once no recipient is left to
// process. Failed recipients count as unfinished work: they are still
// eligible for retry, so the campaign stays in sending until they clear.
func finalizeIfComplete(ctx context.Context, store ledger.Store, campaignID string) {
	pending, err := store.Recipients().CountByStatus(ctx, campaignID, domain.RecipientPending)
	if err != nil {
		logger.Error("completion scan", "campaign_id", campaignID, "error", err.Error())
		return
	}
	if pending > 0 {
		return
	}
	failed, err := store.Recipients().CountByStatus(ctx, campaignID, domain.RecipientFailed)
	if err != nil || failed > 0 {
		return
	}

	err = store.Campaigns().TransitionStatus(ctx, campaignID, domain.CampaignSent, domain.CampaignSending)
	switch {
	case errors.Is(err, ledger.ErrStatusConflict):
		// Already sent by a sibling batch, or cancelled. Either way the
		// campaign is settled.
	case err != nil:
		logger.Error("mark campaign sent", "campaign_id", campaignID, "error", err.Error())
	default:
		logger.Info("campaign completed", "campaign_id", campaignID)
	}
}
