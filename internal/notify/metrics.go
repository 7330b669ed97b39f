package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric and dimension names emitted to CloudWatch.
const (
	metricEventPublished  = "EventPublished"
	metricWebhookDelivery = "WebhookDelivery"
	metricWebhookLatency  = "WebhookLatency"

	dimEventType = "EventType"
	dimResult    = "Result"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Metrics emits notification pipeline metrics to CloudWatch. Emission
// failures are logged, never surfaced; metrics must not affect delivery.
type Metrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewMetrics creates a Metrics publisher for the given namespace.
func NewMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *Metrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Metrics{client: client, namespace: namespace, logger: logger}
}

func resultValue(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// CountPublish records one queue publish outcome.
func (m *Metrics) CountPublish(ctx context.Context, eventType string, ok bool) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(metricEventPublished),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(dimEventType), Value: aws.String(eventType)},
			{Name: aws.String(dimResult), Value: aws.String(resultValue(ok))},
		},
	})
}

// CountDelivery records one webhook delivery outcome and its latency.
func (m *Metrics) CountDelivery(ctx context.Context, eventType string, ok bool, elapsed time.Duration) {
	m.put(ctx,
		cwtypes.MetricDatum{
			MetricName: aws.String(metricWebhookDelivery),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{
				{Name: aws.String(dimEventType), Value: aws.String(eventType)},
				{Name: aws.String(dimResult), Value: aws.String(resultValue(ok))},
			},
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(metricWebhookLatency),
			Value:      aws.Float64(float64(elapsed.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: []cwtypes.Dimension{
				{Name: aws.String(dimEventType), Value: aws.String(eventType)},
			},
		},
	)
}

func (m *Metrics) put(ctx context.Context, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to put metric data", "error", err)
	}
}
