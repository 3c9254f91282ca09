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

// Consumer long-polls the engagement event queue and applies each event
// through the Recorder. Messages that fail to apply are left on the queue
// for SQS redelivery; the recorder's idempotent updates make redelivery
// harmless.
type Consumer struct {
	sqsClient *sqs.Client
	queueURL  string
	recorder  *Recorder
	done      chan struct{}
}

// NewConsumer returns a Consumer for the given queue.
func NewConsumer(sqsClient *sqs.Client, queueURL string, recorder *Recorder) *Consumer {
	return &Consumer{
		sqsClient: sqsClient,
		queueURL:  queueURL,
		recorder:  recorder,
		done:      make(chan struct{}),
	}
}

// Start begins polling in a background goroutine.
func (c *Consumer) Start(ctx context.Context) {
	logger.Info("engagement event consumer started", "queue", c.queueURL)
	go c.poll(ctx)
}

// Stop terminates the poll loop.
func (c *Consumer) Stop() {
	close(c.done)
}

func (c *Consumer) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		out, err := c.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("sqs receive", "error", err.Error())
			time.Sleep(5 * time.Second)
			continue
		}

		for _, msg := range out.Messages {
			var evt domain.EngagementEvent
			if err := json.Unmarshal([]byte(*msg.Body), &evt); err != nil {
				logger.Warn("dropping malformed engagement message", "error", err.Error())
				c.deleteMessage(ctx, msg.ReceiptHandle)
				continue
			}

			if err := c.recorder.Record(ctx, evt); err != nil {
				logger.Error("apply engagement event",
					"event_type", string(evt.EventType),
					"campaign_id", evt.CampaignID,
					"error", err.Error())
				continue
			}

			c.deleteMessage(ctx, msg.ReceiptHandle)
		}
	}
}

func (c *Consumer) deleteMessage(ctx context.Context, receipt *string) {
	_, err := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: receipt,
	})
	if err != nil {
		logger.Warn("sqs delete message", "error", err.Error())
	}
}
