// Package config defines the configuration for the payhook binaries.
// Configuration is loaded once at process start (Lambda cold start) and is
// immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format fails startup.
package config

import (
	"time"

	"payhook/internal/types"
)

// SecretString is an alias for types.SecretString so config consumers need
// not import types for it.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the subset they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"payhook"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	AWS       AWSConfig
	Queue     QueueConfig
	Signature SignatureConfig
	Server    ServerConfig
	Poller    PollerConfig
	Breaker   BreakerConfig
	Metrics   MetricsConfig

	// Injected via ldflags, not env.
	Build BuildInfo
}

// AWSConfig holds regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1" validate:"required"`

	// LocalStack support. Empty in deployed environments.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// QueueConfig identifies the queues and the redrive contract between them.
type QueueConfig struct {
	WebhookQueueURL      string `envconfig:"WEBHOOK_QUEUE_URL" validate:"required,url"`
	DeadLetterQueueURL   string `envconfig:"WEBHOOK_DLQ_URL" validate:"omitempty,url"`
	TransactionsQueueURL string `envconfig:"TRANSACTIONS_QUEUE_URL" validate:"omitempty,url"`

	// Messages move to the DLQ after this many receives.
	MaxReceiveCount int `envconfig:"REDRIVE_MAX_RECEIVE_COUNT" default:"3" validate:"min=1,max=1000"`
	// Seconds; SQS caps retention at 14 days.
	DLQRetentionPeriod int `envconfig:"DLQ_RETENTION_PERIOD" default:"1209600" validate:"min=60,max=1209600"`
}

// SignatureConfig holds the trusted provider key. An empty key makes every
// verification fail.
type SignatureConfig struct {
	PublicKey SecretString `envconfig:"MONOOVA_PUBLIC_KEY"`
	Header    string       `envconfig:"SIGNATURE_HEADER" default:"verification-signature" validate:"required"`
}

// ServerConfig holds settings for the long-running HTTP server.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	// SQS rejects messages over 256 KiB, so larger bodies can never be queued.
	MaxBodyBytes    int64         `envconfig:"MAX_BODY_BYTES" default:"262144" validate:"min=1,max=262144"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// PollerConfig tunes the local SQS poller used outside Lambda.
type PollerConfig struct {
	Workers           int           `envconfig:"POLLER_WORKERS" default:"4" validate:"min=1,max=64"`
	WaitTime          time.Duration `envconfig:"POLLER_WAIT_TIME" default:"20s" validate:"max=20s"`
	VisibilityTimeout time.Duration `envconfig:"POLLER_VISIBILITY_TIMEOUT" default:"30s" validate:"min=1s,max=12h"`
}

// BreakerConfig tunes the circuit breaker guarding the enqueue path.
type BreakerConfig struct {
	MaxFailures uint32        `envconfig:"BREAKER_MAX_FAILURES" default:"5" validate:"min=1"`
	OpenTimeout time.Duration `envconfig:"BREAKER_OPEN_TIMEOUT" default:"30s"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	Backend   string `envconfig:"METRICS_BACKEND" default:"cloudwatch" validate:"oneof=cloudwatch prometheus none"`
	Namespace string `envconfig:"METRICS_NAMESPACE" default:"Payhook" validate:"required"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
