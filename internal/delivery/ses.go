package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// SESTransport sends through AWS SES v2. It is the default fallback path.
type SESTransport struct {
	client *sesv2.Client
}

// NewSESTransport wraps an already-configured SES v2 client.
func NewSESTransport(client *sesv2.Client) *SESTransport {
	return &SESTransport{client: client}
}

// Type identifies this transport.
func (t *SESTransport) Type() domain.TransportType { return domain.TransportSES }

// Send delivers one message via the SES SendEmail API.
func (t *SESTransport) Send(ctx context.Context, msg *domain.EmailMessage) (string, error) {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail)),
		Destination: &types.Destination{
			ToAddresses: []string{msg.Email},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTMLBody)},
				},
			},
		},
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}

	out, err := t.client.SendEmail(ctx, input)
	if err != nil {
		return "", classifySESError(err)
	}
	return aws.ToString(out.MessageId), nil
}

func classifySESError(err error) *SendError {
	var rejected *types.MessageRejected
	if errors.As(err, &rejected) {
		return permanent(domain.TransportSES, "message_rejected", err.Error())
	}
	var badReq *types.BadRequestException
	if errors.As(err, &badReq) {
		return permanent(domain.TransportSES, "bad_request", err.Error())
	}
	var notFound *types.NotFoundException
	if errors.As(err, &notFound) {
		return permanent(domain.TransportSES, "not_found", err.Error())
	}
	var suspended *types.AccountSuspendedException
	if errors.As(err, &suspended) {
		return permanent(domain.TransportSES, "account_suspended", err.Error())
	}
	// Throttling, sending paused, and anything unclassified is transient.
	return transient(domain.TransportSES, "send_failed", err.Error())
}
