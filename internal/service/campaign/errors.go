package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound          = errors.New("campaign not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotDraft          = errors.New("campaign is not a draft")
	ErrReasonRequired    = errors.New("cancellation reason is required")
	ErrNoRecipients      = errors.New("campaign has no pending recipients")
	ErrValidation        = errors.New("invalid campaign input")
	ErrLaunchInProgress  = errors.New("campaign launch already in progress")
)
