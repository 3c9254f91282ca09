// Package delivery sends individual campaign emails through a primary
// transport with automatic fallback to a secondary transport on transient
// failure. The result always reports which transport ultimately handled the
// message and whether fallback was used.
package delivery

import (
	"context"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// Transport is one concrete email-sending path.
type Transport interface {
	Type() domain.TransportType
	// Send attempts delivery and returns the provider message id.
	// Failures are returned as *SendError with a permanence
	// classification.
	Send(ctx context.Context, msg *domain.EmailMessage) (string, error)
}

// Provider routes a message through the primary transport and, on a
// transient failure, exactly one fallback attempt. Permanent failures are
// never retried by fallback.
type Provider struct {
	primary  Transport
	fallback Transport
}

// NewProvider returns a Provider. fallback may be nil.
func NewProvider(primary, fallback Transport) *Provider {
	return &Provider{primary: primary, fallback: fallback}
}

// Send delivers one message. The returned result is always non-nil; on
// failure Success is false and Error carries the final transport error.
func (p *Provider) Send(ctx context.Context, msg *domain.EmailMessage) *domain.SendResult {
	id, err := p.primary.Send(ctx, msg)
	if err == nil {
		return &domain.SendResult{
			Success:   true,
			MessageID: id,
			Provider:  p.primary.Type(),
			SentAt:    time.Now().UTC(),
		}
	}

	if IsPermanent(err) || p.fallback == nil {
		return &domain.SendResult{
			Success:   false,
			Provider:  p.primary.Type(),
			SentAt:    time.Now().UTC(),
			Error:     err.Error(),
			Permanent: IsPermanent(err),
		}
	}

	logger.Warn("primary transport failed, trying fallback",
		"primary", string(p.primary.Type()),
		"fallback", string(p.fallback.Type()),
		"recipient_id", msg.RecipientID,
		"error", err.Error())

	id, ferr := p.fallback.Send(ctx, msg)
	if ferr == nil {
		return &domain.SendResult{
			Success:      true,
			MessageID:    id,
			Provider:     p.fallback.Type(),
			FallbackUsed: true,
			SentAt:       time.Now().UTC(),
		}
	}

	return &domain.SendResult{
		Success:      false,
		Provider:     p.fallback.Type(),
		FallbackUsed: true,
		SentAt:       time.Now().UTC(),
		Error:        ferr.Error(),
		Permanent:    IsPermanent(ferr),
	}
}
