package domain

import "time"

// TransportType identifies the email transport used for sending.
type TransportType string

const (
	TransportSparkPost TransportType = "sparkpost"
	TransportSES       TransportType = "ses"
)

// EmailMessage is the fully-resolved message ready for a transport.
// By the time a message reaches this struct, all merge-field rendering and
// tracking injection is complete.
type EmailMessage struct {
	CampaignID  string            `json:"campaign_id"`
	RecipientID string            `json:"recipient_id"`
	Email       string            `json:"email"`
	Name        string            `json:"name,omitempty"`
	FromName    string            `json:"from_name"`
	FromEmail   string            `json:"from_email"`
	ReplyTo     string            `json:"reply_to,omitempty"`
	Subject     string            `json:"subject"`
	HTMLBody    string            `json:"html_body"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// SendResult is returned by a transport after attempting delivery.
type SendResult struct {
	Success      bool          `json:"success"`
	MessageID    string        `json:"message_id,omitempty"`
	Provider     TransportType `json:"provider"`
	FallbackUsed bool          `json:"fallback_used"`
	SentAt       time.Time     `json:"sent_at"`
	Error        string        `json:"error,omitempty"`
	// Permanent marks a content/address-level rejection that automatic
	// retry cannot fix.
	Permanent bool `json:"permanent,omitempty"`
}
