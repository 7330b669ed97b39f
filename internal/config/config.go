// Package config defines the global configuration structure for the VendHub
// platform. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values come from the OS environment, with a .env file as a non-overriding
// fallback for local development. Any missing required value or invalid
// format fails the process immediately on startup.
package config

import (
	"time"

	"vendhub/internal/types"
)

// Config is the top-level configuration struct for the VendHub platform.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"vendhub-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server     ServerConfig
	Database   DatabaseConfig
	Quota      QuotaConfig
	Compaction CompactionConfig
	AWS        AWSConfig
	Notify     NotifyConfig
}

// CompactionConfig holds ledger compaction parameters.
type CompactionConfig struct {
	// ArchiveDir is where compaction checkpoints (zstd JSONL) are written.
	ArchiveDir string `envconfig:"LEDGER_ARCHIVE_DIR" default:"data/ledger-archive"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL" validate:"required"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// QuotaConfig holds the commercial capacity-upgrade policy. The defaults
// mirror types.DefaultQuotaPolicy and exist so deployments can reprice
// without a rebuild.
type QuotaConfig struct {
	BaseCapacity int   `envconfig:"QUOTA_BASE_CAPACITY" default:"1000" validate:"min=0"`
	UnitSize     int   `envconfig:"QUOTA_UNIT_SIZE" default:"500" validate:"min=1"`
	MinUnits     int   `envconfig:"QUOTA_MIN_UNITS" default:"500" validate:"min=1"`
	MaxUnits     int   `envconfig:"QUOTA_MAX_UNITS" default:"5000" validate:"min=1"`
	UnitPrice    int64 `envconfig:"QUOTA_UNIT_PRICE" default:"50000" validate:"min=0"`
}

// Policy converts the env-backed quota configuration into the domain value
// threaded through the quota and upgrade services.
func (q QuotaConfig) Policy() types.QuotaPolicy {
	return types.QuotaPolicy{
		BaseCapacity: q.BaseCapacity,
		UnitSize:     q.UnitSize,
		MinUnits:     q.MinUnits,
		MaxUnits:     q.MaxUnits,
		UnitPrice:    q.UnitPrice,
	}
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"eu-west-1"`

	// NotifyQueueURL is the SQS queue upgrade events are published to.
	NotifyQueueURL string `envconfig:"SQS_NOTIFY_QUEUE" validate:"omitempty,url"`

	// MetricsNamespace is the CloudWatch namespace for quota telemetry.
	MetricsNamespace string `envconfig:"CW_METRICS_NAMESPACE" default:"VendHub"`
}

// NotifyConfig holds delivery parameters for the notification worker.
type NotifyConfig struct {
	// WebhookURL is the downstream endpoint upgrade events are delivered
	// to (the email/SMS dispatcher). Empty disables delivery.
	WebhookURL string `envconfig:"NOTIFY_WEBHOOK_URL" validate:"omitempty,url"`

	DeliverTimeout time.Duration `envconfig:"NOTIFY_DELIVER_TIMEOUT" default:"10s"`
	MaxRetries     int           `envconfig:"NOTIFY_MAX_RETRIES" default:"3"`
}
