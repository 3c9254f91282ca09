package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// webhookPayload is the provider's delivery-event envelope. The data block
// carries the correlation ids we attached to the outgoing transmission.
type webhookPayload struct {
	Type string `json:"type"`
	Data struct {
		CampaignID  string `json:"campaign_id"`
		RecipientID string `json:"recipient_id"`
		Reason      string `json:"reason"`
		Timestamp   string `json:"timestamp"`
	} `json:"data"`
}

// ProviderWebhook ingests delivery events. It acknowledges with 200 no
// matter what: a non-200 makes the provider re-deliver the event forever,
// and our recording is idempotent anyway.
func (h *Handlers) ProviderWebhook(w http.ResponseWriter, r *http.Request) {
	defer func() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"received":true}`))
	}()

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.Warn("malformed provider webhook", "error", err.Error())
		return
	}

	eventType, ok := webhookEventType(payload.Type)
	if !ok {
		logger.Debug("ignoring provider event", "type", payload.Type)
		return
	}

	occurredAt := time.Now().UTC()
	if payload.Data.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, payload.Data.Timestamp); err == nil {
			occurredAt = t.UTC()
		}
	}

	evt := domain.EngagementEvent{
		EventType:   eventType,
		CampaignID:  payload.Data.CampaignID,
		RecipientID: payload.Data.RecipientID,
		Reason:      payload.Data.Reason,
		OccurredAt:  occurredAt,
	}
	if err := h.recorder.Record(r.Context(), evt); err != nil {
		logger.Error("webhook event not applied",
			"type", payload.Type,
			"campaign_id", evt.CampaignID,
			"error", err.Error())
	}
}

func webhookEventType(t string) (domain.EngagementEventType, bool) {
	switch t {
	case "delivered":
		return domain.EventDelivered, true
	case "bounced":
		return domain.EventBounced, true
	case "complained":
		return domain.EventComplaint, true
	case "opened":
		return domain.EventOpen, true
	case "clicked":
		return domain.EventClick, true
	default:
		return "", false
	}
}
