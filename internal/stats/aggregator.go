// Package stats recomputes campaign-level aggregate counts and rates from
// the recipient ledger. The computation is a pure function of ledger state;
// the campaign's stats snapshot is only a cache of its output.
package stats

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/ledger"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// Aggregator scans a campaign's recipients and writes back the derived
// stats snapshot.
type Aggregator struct {
	store ledger.Store
}

// NewAggregator returns an Aggregator over the given ledger.
func NewAggregator(store ledger.Store) *Aggregator {
	return &Aggregator{store: store}
}

// Recompute derives the campaign's stats from a full recipient scan and
// persists the snapshot. Repeating the call with unchanged ledger state
// produces an identical snapshot.
func (a *Aggregator) Recompute(ctx context.Context, campaignID string) (*domain.CampaignStats, error) {
	recipients, err := a.store.Recipients().ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}

	s := Compute(recipients)
	s.UpdatedAt = time.Now().UTC()

	if err := a.store.Campaigns().SaveStats(ctx, campaignID, s); err != nil {
		return nil, fmt.Errorf("save stats: %w", err)
	}
	return &s, nil
}

// RecomputeAsync runs Recompute and logs failures instead of returning
// them. Send and tracking paths use it so an aggregation failure never
// aborts the operation that triggered it.
func (a *Aggregator) RecomputeAsync(ctx context.Context, campaignID string) {
	if _, err := a.Recompute(ctx, campaignID); err != nil {
		logger.Error("stats recompute failed", "campaign_id", campaignID, "error", err.Error())
	}
}

// Compute derives aggregate counts and rates from a recipient set.
//
// A recipient counts as sent once it reaches sent, opened, or clicked;
// opened includes clicked. Open/click/bounce rates are over the sent count,
// failure rate over the total recipient count. All rates are percentages
// rounded to two decimals and are 0 when the denominator is 0.
func Compute(recipients []*domain.Recipient) domain.CampaignStats {
	var s domain.CampaignStats
	s.TotalRecipients = len(recipients)

	for _, r := range recipients {
		switch r.Status {
		case domain.RecipientPending:
			s.Pending++
		case domain.RecipientSent:
			s.Sent++
		case domain.RecipientOpened:
			s.Sent++
			s.Opened++
		case domain.RecipientClicked:
			s.Sent++
			s.Opened++
			s.Clicked++
		case domain.RecipientBounced:
			s.Bounced++
		case domain.RecipientFailed:
			s.Failed++
		}
	}

	s.OpenRate = rate(s.Opened, s.Sent)
	s.ClickRate = rate(s.Clicked, s.Sent)
	s.BounceRate = rate(s.Bounced, s.Sent)
	s.FailureRate = rate(s.Failed, s.TotalRecipients)
	return s
}

// rate returns num/denom as a percentage rounded to two decimals, or 0
// when the denominator is zero.
func rate(num, denom int) float64 {
	if denom <= 0 || num <= 0 {
		return 0
	}
	return math.Round(float64(num)/float64(denom)*100*100) / 100
}
