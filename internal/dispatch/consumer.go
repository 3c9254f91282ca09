package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// Consumer long-polls the dispatch queue and runs each batch job through
// the Dispatcher. It authenticates with the same token the HTTP batch
// endpoint expects, carried as a message attribute. Failed jobs are left
// for SQS redelivery; the dispatcher's pending-only sends make redelivery
// safe.
type Consumer struct {
	sqsClient  *sqs.Client
	queueURL   string
	dispatcher *Dispatcher
	done       chan struct{}
}

// NewConsumer returns a Consumer for the given queue.
func NewConsumer(sqsClient *sqs.Client, queueURL string, dispatcher *Dispatcher) *Consumer {
	return &Consumer{
		sqsClient:  sqsClient,
		queueURL:   queueURL,
		dispatcher: dispatcher,
		done:       make(chan struct{}),
	}
}

// Start begins polling in a background goroutine.
func (c *Consumer) Start(ctx context.Context) {
	logger.Info("batch job consumer started", "queue", c.queueURL)
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
			QueueUrl:              aws.String(c.queueURL),
			MaxNumberOfMessages:   5,
			WaitTimeSeconds:       20,
			MessageAttributeNames: []string{tokenAttribute},
			MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
				sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
			},
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
			var job domain.BatchJob
			if err := json.Unmarshal([]byte(*msg.Body), &job); err != nil {
				logger.Warn("dropping malformed batch job", "error", err.Error())
				c.deleteMessage(ctx, msg.ReceiptHandle)
				continue
			}
			if attempts, ok := msg.Attributes["ApproximateReceiveCount"]; ok {
				job.AttemptCount, _ = strconv.Atoi(attempts)
			}

			var token string
			if attr, ok := msg.MessageAttributes[tokenAttribute]; ok {
				token = aws.ToString(attr.StringValue)
			}

			_, perr := c.dispatcher.ProcessBatch(ctx, token, &job)
			switch {
			case perr == nil:
				c.deleteMessage(ctx, msg.ReceiptHandle)
			case errors.Is(perr, ErrUnauthorized), errors.Is(perr, ErrCampaignNotFound):
				// Redelivery cannot fix either condition.
				logger.Warn("dropping undeliverable batch job",
					"campaign_id", job.CampaignID,
					"batch_id", job.BatchID,
					"error", perr.Error())
				c.deleteMessage(ctx, msg.ReceiptHandle)
			default:
				logger.Error("batch job failed, leaving for redelivery",
					"campaign_id", job.CampaignID,
					"batch_id", job.BatchID,
					"attempt", job.AttemptCount,
					"error", perr.Error())
			}
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
