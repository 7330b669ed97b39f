// Package main is the entrypoint for the notify worker Lambda function.
//
// The worker consumes upgrade events from the notification SQS queue and
// delivers them to the configured downstream webhook (the email/SMS
// dispatcher). Delivery goes through a circuit breaker with bounded retries;
// messages that still fail are reported as partial batch failures so SQS
// redrives only those.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"vendhub/internal/notify"
	"vendhub/internal/types"
)

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
// slog.Logger satisfies Info, Error, and Warn directly, but With returns
// *slog.Logger rather than types.Logger, so an adapter is necessary.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

// Handler holds the dependencies for the notify worker Lambda handler.
type Handler struct {
	deliverer *notify.WebhookDeliverer
	logger    types.Logger
}

// Handle processes an SQS event containing one or more upgrade events.
// Each record is processed independently; failures are returned in
// batchItemFailures so SQS retries only those messages.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.Error("failed to process SQS message",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

// processMessage delivers a single upgrade event to the webhook.
func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	var event types.UpgradeEvent
	if err := json.Unmarshal([]byte(record.Body), &event); err != nil {
		h.logger.Error("failed to unmarshal upgrade event",
			"message_id", record.MessageId,
			"error", err.Error(),
		)
		// Permanent parse failure; retrying cannot fix it, so ACK.
		return nil
	}

	logger := h.logger.With(
		"event_id", event.EventID,
		"event_type", event.EventType,
		"vendor_id", event.VendorID,
	)
	logger.Info("delivering upgrade event")

	if err := h.deliverer.Deliver(ctx, event); err != nil {
		return err
	}

	logger.Info("upgrade event delivered")
	return nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	logger.Info("notify worker initializing (cold start)")

	typedLogger := &slogAdapter{logger: logger}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	webhookURL := os.Getenv("NOTIFY_WEBHOOK_URL")
	if webhookURL == "" {
		logger.Error("NOTIFY_WEBHOOK_URL is required")
		os.Exit(1)
	}

	namespace := os.Getenv("CW_METRICS_NAMESPACE")
	if namespace == "" {
		namespace = "VendHub"
	}

	maxRetries := 3
	if raw := os.Getenv("NOTIFY_MAX_RETRIES"); raw != "" {
		if n, parseErr := strconv.Atoi(raw); parseErr == nil && n > 0 {
			maxRetries = n
		}
	}

	timeout := 10 * time.Second
	if raw := os.Getenv("NOTIFY_DELIVER_TIMEOUT"); raw != "" {
		if d, parseErr := time.ParseDuration(raw); parseErr == nil {
			timeout = d
		}
	}

	metrics := notify.NewMetrics(cloudwatch.NewFromConfig(awsCfg), namespace, logger)
	deliverer := notify.NewWebhookDeliverer(
		&http.Client{Timeout: timeout},
		webhookURL,
		maxRetries,
		metrics,
		logger,
	)

	handler := &Handler{
		deliverer: deliverer,
		logger:    typedLogger,
	}

	logger.Info("notify worker initialized",
		"webhook_url", webhookURL,
		"metric_namespace", namespace,
		"max_retries", maxRetries,
		"timeout", timeout.String(),
	)

	lambda.Start(handler.Handle)
}

// Compile-time assertion that slogAdapter implements types.Logger.
var _ types.Logger = (*slogAdapter)(nil)
