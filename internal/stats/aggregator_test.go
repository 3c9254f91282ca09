package stats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/ledger"
)

func recipientsWith(statuses ...domain.RecipientStatus) []*domain.Recipient {
	out := make([]*domain.Recipient, len(statuses))
	for i, s := range statuses {
		out[i] = &domain.Recipient{Status: s}
	}
	return out
}

func TestComputeCounts(t *testing.T) {
	s := Compute(recipientsWith(
		domain.RecipientSent,
		domain.RecipientSent,
		domain.RecipientOpened,
		domain.RecipientClicked,
		domain.RecipientBounced,
		domain.RecipientFailed,
		domain.RecipientPending,
	))

	assert.Equal(t, 7, s.TotalRecipients)
	// sent includes opened and clicked; opened includes clicked
	assert.Equal(t, 4, s.Sent)
	assert.Equal(t, 2, s.Opened)
	assert.Equal(t, 1, s.Clicked)
	assert.Equal(t, 1, s.Bounced)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Pending)

	assert.Equal(t, 50.0, s.OpenRate)
	assert.Equal(t, 25.0, s.ClickRate)
	assert.Equal(t, 25.0, s.BounceRate)
	// failure rate is over the total, not the sent count
	assert.InDelta(t, 14.29, s.FailureRate, 0.001)
}

func TestComputeEmpty(t *testing.T) {
	s := Compute(nil)

	assert.Equal(t, 0, s.TotalRecipients)
	assert.Equal(t, 0.0, s.OpenRate)
	assert.Equal(t, 0.0, s.ClickRate)
	assert.Equal(t, 0.0, s.BounceRate)
	assert.Equal(t, 0.0, s.FailureRate)
}

func TestComputeNothingSent(t *testing.T) {
	// All pending: every sent-denominated rate must be zero, not NaN
	s := Compute(recipientsWith(domain.RecipientPending, domain.RecipientPending))

	assert.Equal(t, 2, s.Pending)
	assert.Equal(t, 0.0, s.OpenRate)
	assert.Equal(t, 0.0, s.BounceRate)
}

func TestComputeRounding(t *testing.T) {
	// 1 open of 3 sent = 33.333...% which must round to 33.33
	s := Compute(recipientsWith(
		domain.RecipientSent,
		domain.RecipientSent,
		domain.RecipientOpened,
	))
	assert.Equal(t, 33.33, s.OpenRate)
}

func TestRecomputeIdempotent(t *testing.T) {
	store := ledger.NewMemory()
	ctx := context.Background()

	c := &domain.Campaign{ID: "c1", Status: domain.CampaignSending}
	require.NoError(t, store.Campaigns().Create(ctx, c))
	require.NoError(t, store.Recipients().CreateBatch(ctx, []*domain.Recipient{
		{ID: "r1", CampaignID: "c1", Status: domain.RecipientSent},
		{ID: "r2", CampaignID: "c1", Status: domain.RecipientOpened},
	}))

	aggr := NewAggregator(store)
	first, err := aggr.Recompute(ctx, "c1")
	require.NoError(t, err)
	second, err := aggr.Recompute(ctx, "c1")
	require.NoError(t, err)

	assert.Equal(t, first.Sent, second.Sent)
	assert.Equal(t, first.Opened, second.Opened)
	assert.Equal(t, first.OpenRate, second.OpenRate)

	got, err := store.Campaigns().Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stats.Sent)
	assert.Equal(t, 1, got.Stats.Opened)
	assert.Equal(t, 50.0, got.Stats.OpenRate)
}
