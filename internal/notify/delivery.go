package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"vendhub/internal/types"
)

// WebhookDeliverer posts upgrade events to the vendor-facing webhook
// endpoint. All calls go through a circuit breaker and a bounded retry
// loop: a flapping endpoint trips the breaker instead of tying up worker
// invocations.
type WebhookDeliverer struct {
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	webhookURL string
	maxRetries int
	metrics    *Metrics
	logger     *slog.Logger
	sleepFn    func(time.Duration)
}

// DelivererOption is a functional option for configuring a WebhookDeliverer.
type DelivererOption func(*WebhookDeliverer)

// WithSleepFunc overrides the sleep between retries, for tests.
func WithSleepFunc(fn func(time.Duration)) DelivererOption {
	return func(d *WebhookDeliverer) {
		d.sleepFn = fn
	}
}

// NewWebhookDeliverer creates a deliverer for the given endpoint. Metrics
// may be nil.
func NewWebhookDeliverer(client *http.Client, webhookURL string, maxRetries int, metrics *Metrics, logger *slog.Logger, opts ...DelivererOption) *WebhookDeliverer {
	if logger == nil {
		logger = slog.Default()
	}
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "upgrade-webhook",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	d := &WebhookDeliverer{
		client:     client,
		breaker:    cb,
		webhookURL: webhookURL,
		maxRetries: maxRetries,
		metrics:    metrics,
		logger:     logger,
		sleepFn:    time.Sleep,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver posts one event as JSON. Retries on network errors, 429 and 5xx
// with doubling backoff; any other status is final. Returns
// upstream_webhook_unavailable once retries are exhausted or the breaker
// is open.
func (d *WebhookDeliverer) Deliver(ctx context.Context, event types.UpgradeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal event for delivery", err)
	}

	start := time.Now()
	err = d.deliverWithRetry(ctx, event, body)
	if d.metrics != nil {
		d.metrics.CountDelivery(ctx, event.EventType, err == nil, time.Since(start))
	}
	return err
}

func (d *WebhookDeliverer) deliverWithRetry(ctx context.Context, event types.UpgradeEvent, body []byte) error {
	var lastErr error
	backoff := 500 * time.Millisecond

	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			d.sleepFn(backoff)
			backoff *= 2
		}

		resp, err := d.breaker.Execute(func() (*http.Response, error) {
			return d.post(ctx, event, body)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return types.NewAppError(types.ErrCodeUpstreamWebhook, "webhook circuit breaker is open", err)
			}
			lastErr = err
			d.logger.Warn("webhook delivery attempt failed",
				"event_id", event.EventID,
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode < 300 {
			return nil
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("webhook returned status %d", resp.StatusCode)
			continue
		}
		// A 4xx other than 429 will not get better by retrying.
		return types.NewAppError(
			types.ErrCodeUpstreamWebhook,
			fmt.Sprintf("webhook rejected event with status %d", resp.StatusCode),
			nil,
		)
	}

	return types.NewAppError(types.ErrCodeUpstreamWebhook, "webhook delivery failed after retries", lastErr)
}

func (d *WebhookDeliverer) post(ctx context.Context, event types.UpgradeEvent, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", event.EventType)
	req.Header.Set("X-Event-Id", event.EventID)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	// 5xx counts as a breaker failure; the outer loop still owns retries.
	if resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return resp, nil
}
