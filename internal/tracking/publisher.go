package tracking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// EventPublisher hands engagement events to the worker via SQS. Handlers
// publish fire-and-forget so the pixel/redirect response is never delayed
// by the ledger write; publish failures are logged, not surfaced.
type EventPublisher struct {
	client   *sqs.Client
	queueURL string
}

// NewEventPublisher returns a publisher for the given queue.
func NewEventPublisher(client *sqs.Client, queueURL string) *EventPublisher {
	return &EventPublisher{client: client, queueURL: queueURL}
}

// Publish enqueues the event on a detached goroutine with its own timeout.
func (p *EventPublisher) Publish(evt domain.EngagementEvent) {
	body, err := json.Marshal(evt)
	if err != nil {
		logger.Error("marshal engagement event", "error", err.Error())
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(p.queueURL),
			MessageBody: aws.String(string(body)),
		})
		if err != nil {
			logger.Error("publish engagement event",
				"event_type", string(evt.EventType),
				"campaign_id", evt.CampaignID,
				"error", err.Error())
		}
	}()
}
