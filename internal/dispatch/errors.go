package dispatch

import "errors"

var (
	// ErrUnauthorized means the batch token failed verification. Nothing
	// is read or written when this is returned.
	ErrUnauthorized = errors.New("dispatch: invalid batch token")
	// ErrCampaignNotFound means the job references an unknown campaign.
	ErrCampaignNotFound = errors.New("dispatch: campaign not found")
	// ErrNoFailedRecipients means a retry was requested but no recipient
	// is in the failed state.
	ErrNoFailedRecipients = errors.New("dispatch: no failed recipients")
	// ErrDailyLimit means a transport's daily send budget is exhausted.
	ErrDailyLimit = errors.New("dispatch: daily send limit exceeded")
)
