package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/ledger"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/stats"
)

// scannerAgents are mail-gateway link scanners whose requests would inflate
// engagement counts. Image proxies (Gmail) are real opens and are not
// listed.
var scannerAgents = []string{
	"barracuda",
	"proofpoint",
	"mimecast",
	"symantec",
	"python-requests",
	"curl/",
}

// IsScanner reports whether the user agent belongs to a known security
// scanner rather than a person.
func IsScanner(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, s := range scannerAgents {
		if strings.Contains(ua, s) {
			return true
		}
	}
	return false
}

// Recorder applies engagement events to the recipient ledger with
// idempotent semantics and keeps the campaign stats cache fresh. A missing
// recipient is a silent no-op: tracking requests arrive from arbitrary mail
// clients long after campaigns end.
type Recorder struct {
	store ledger.Store
	aggr  *stats.Aggregator
}

// NewRecorder returns a Recorder over the given ledger.
func NewRecorder(store ledger.Store, aggr *stats.Aggregator) *Recorder {
	return &Recorder{store: store, aggr: aggr}
}

// Record dispatches one event. Errors are returned for queue retry except
// where the event can never succeed (unknown recipient, scanner traffic).
func (r *Recorder) Record(ctx context.Context, evt domain.EngagementEvent) error {
	if evt.CampaignID == "" || evt.RecipientID == "" {
		logger.Debug("engagement event without correlation ids dropped",
			"event_type", string(evt.EventType))
		return nil
	}

	at := evt.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var err error
	switch evt.EventType {
	case domain.EventOpen:
		if IsScanner(evt.UserAgent) {
			logger.Debug("scanner open ignored", "campaign_id", evt.CampaignID, "user_agent", evt.UserAgent)
			return nil
		}
		err = r.store.Recipients().RecordOpen(ctx, evt.CampaignID, evt.RecipientID, at)
	case domain.EventClick:
		err = r.store.Recipients().RecordClick(ctx, evt.CampaignID, evt.RecipientID, at)
	case domain.EventBounced, domain.EventComplaint:
		reason := evt.Reason
		if reason == "" {
			reason = "provider reported " + string(evt.EventType)
		}
		err = r.store.Recipients().RecordBounce(ctx, evt.CampaignID, evt.RecipientID, reason, at)
	case domain.EventDelivered:
		// Delivery confirmations carry no state change beyond what the
		// send path already wrote.
		return nil
	default:
		logger.Warn("unknown engagement event type", "event_type", string(evt.EventType))
		return nil
	}

	if errors.Is(err, ledger.ErrNotFound) {
		logger.Debug("engagement event for unknown recipient",
			"campaign_id", evt.CampaignID, "recipient_id", evt.RecipientID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("record %s: %w", evt.EventType, err)
	}

	r.aggr.RecomputeAsync(ctx, evt.CampaignID)
	return nil
}
