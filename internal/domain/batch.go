package domain

import "time"

// BatchJob is one queue-delivered unit of campaign work: a bounded, ordered
// slice of a campaign's recipient set. Jobs are transient; they exist only
// as queue messages and HTTP payloads, never in the ledger.
type BatchJob struct {
	CampaignID   string   `json:"campaign_id"`
	BatchID      string   `json:"batch_id"`
	RecipientIDs []string `json:"recipient_ids"`
	BatchIndex   int      `json:"batch_index"`
	TotalBatches int      `json:"total_batches"`
	AttemptCount int      `json:"attempt_count"`
}

// RecipientResult records the outcome of one recipient within a batch.
type RecipientResult struct {
	RecipientID string          `json:"recipient_id"`
	Email       string          `json:"email"`
	Status      RecipientStatus `json:"status"`
	Skipped     bool            `json:"skipped,omitempty"`
	Provider    TransportType   `json:"provider,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// BatchResult summarizes the processing of one BatchJob.
type BatchResult struct {
	BatchID      string            `json:"batch_id"`
	CampaignID   string            `json:"campaign_id"`
	SuccessCount int               `json:"success_count"`
	FailureCount int               `json:"failure_count"`
	SkippedCount int               `json:"skipped_count"`
	Results      []RecipientResult `json:"results"`
	CompletedAt  time.Time         `json:"completed_at"`
}

// RetryError is one entry in a retry run's bounded error report.
type RetryError struct {
	RecipientID string `json:"recipient_id"`
	Email       string `json:"email"`
	Error       string `json:"error"`
}

// RetryResult summarizes an operator-triggered retry of failed recipients.
type RetryResult struct {
	CampaignID   string       `json:"campaign_id"`
	SuccessCount int          `json:"success_count"`
	FailureCount int          `json:"failure_count"`
	SkippedCount int          `json:"skipped_count"`
	Total        int          `json:"total"`
	Errors       []RetryError `json:"errors,omitempty"`
	CompletedAt  time.Time    `json:"completed_at"`
}
