package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// tokenAttribute is the SQS message attribute carrying the batch token.
const tokenAttribute = "batch_token"

// DefaultBatchSize bounds how many recipients ride in one batch job.
const DefaultBatchSize = 50

// Planner splits a campaign's pending recipient set into ordered batch
// jobs and publishes them to the dispatch queue.
type Planner struct {
	client    *sqs.Client
	queueURL  string
	signer    *BatchSigner
	batchSize int
}

// NewPlanner returns a Planner. batchSize <= 0 selects the default.
func NewPlanner(client *sqs.Client, queueURL string, signer *BatchSigner, batchSize int) *Planner {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Planner{
		client:    client,
		queueURL:  queueURL,
		signer:    signer,
		batchSize: batchSize,
	}
}

// Plan chunks recipientIDs and enqueues one job per chunk. It returns the
// number of batches published. Recipient order is preserved across and
// within batches.
func (p *Planner) Plan(ctx context.Context, campaignID string, recipientIDs []string) (int, error) {
	if len(recipientIDs) == 0 {
		return 0, nil
	}

	total := (len(recipientIDs) + p.batchSize - 1) / p.batchSize
	for i := 0; i < total; i++ {
		start := i * p.batchSize
		end := start + p.batchSize
		if end > len(recipientIDs) {
			end = len(recipientIDs)
		}

		job := &domain.BatchJob{
			CampaignID:   campaignID,
			BatchID:      uuid.NewString(),
			RecipientIDs: recipientIDs[start:end],
			BatchIndex:   i,
			TotalBatches: total,
		}
		if err := p.publish(ctx, job); err != nil {
			return i, fmt.Errorf("publish batch %d/%d: %w", i+1, total, err)
		}
	}

	logger.Info("campaign batches enqueued",
		"campaign_id", campaignID,
		"recipients", len(recipientIDs),
		"batches", total,
		"batch_size", p.batchSize)
	return total, nil
}

func (p *Planner) publish(ctx context.Context, job *domain.BatchJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			tokenAttribute: {
				DataType:    aws.String("String"),
				StringValue: aws.String(p.signer.Token(job.CampaignID, job.BatchID)),
			},
		},
	})
	return err
}
