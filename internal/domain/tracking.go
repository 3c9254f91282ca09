package domain

import "time"

// EngagementEventType enumerates the types of recipient engagement events.
type EngagementEventType string

const (
	EventOpen      EngagementEventType = "open"
	EventClick     EngagementEventType = "click"
	EventDelivered EngagementEventType = "delivered"
	EventBounced   EngagementEventType = "bounced"
	EventComplaint EngagementEventType = "complained"
)

// EngagementEvent is a single open/click/provider signal attributed to one
// recipient/campaign pair. Tracking handlers publish these to the event
// queue; the worker consumes them and applies the ledger update.
type EngagementEvent struct {
	EventType   EngagementEventType `json:"event_type"`
	CampaignID  string              `json:"campaign_id"`
	RecipientID string              `json:"recipient_id"`
	TargetURL   string              `json:"target_url,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	IPAddress   string              `json:"ip_address,omitempty"`
	UserAgent   string              `json:"user_agent,omitempty"`
	OccurredAt  time.Time           `json:"occurred_at"`
}
