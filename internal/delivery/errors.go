package delivery

import (
	"errors"
	"fmt"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// SendError is a classified transport failure. Permanent errors are
// content/address-level rejections that a different transport cannot fix;
// transient errors are network/throttling/provider issues worth one
// fallback attempt.
type SendError struct {
	Provider  domain.TransportType
	Code      string
	Message   string
	Permanent bool
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Code)
}

// IsPermanent reports whether err carries a permanent send classification.
// Unclassified errors are treated as transient.
func IsPermanent(err error) bool {
	var se *SendError
	if errors.As(err, &se) {
		return se.Permanent
	}
	return false
}

func permanent(provider domain.TransportType, code, msg string) *SendError {
	return &SendError{Provider: provider, Code: code, Message: msg, Permanent: true}
}

func transient(provider domain.TransportType, code, msg string) *SendError {
	return &SendError{Provider: provider, Code: code, Message: msg}
}
