// Package notify moves upgrade workflow events out of the request path:
// an SQS publisher on the producing side, and the webhook delivery client
// plus CloudWatch metrics used by the worker on the consuming side.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"vendhub/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends upgrade events to the notification queue. Publish is
// fire-and-forget: a lost notification is an acceptable cost, a failed
// upgrade because the queue hiccuped is not.
type SQSPublisher struct {
	client   SQSSender
	queueURL string
	metrics  *Metrics
	logger   *slog.Logger
}

// NewSQSPublisher creates a publisher for the given queue URL. Metrics may
// be nil.
func NewSQSPublisher(client SQSSender, queueURL string, metrics *Metrics, logger *slog.Logger) *SQSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQSPublisher{
		client:   client,
		queueURL: queueURL,
		metrics:  metrics,
		logger:   logger,
	}
}

// Publish serializes the event and sends it to the queue. Failures are
// logged and counted, never returned.
func (p *SQSPublisher) Publish(ctx context.Context, event types.UpgradeEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal upgrade event",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err,
		)
		return
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.EventType),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		p.logger.Error("failed to publish upgrade event",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"vendor_id", event.VendorID,
			"error", err,
		)
		if p.metrics != nil {
			p.metrics.CountPublish(ctx, event.EventType, false)
		}
		return
	}

	p.logger.Info("published upgrade event",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"vendor_id", event.VendorID,
	)
	if p.metrics != nil {
		p.metrics.CountPublish(ctx, event.EventType, true)
	}
}
