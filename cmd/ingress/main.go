// Package main is the entrypoint for the webhook ingress.
//
// The ingress accepts provider notifications, checks that a signature header
// and a JSON body are present, and enqueues exactly one message per accepted
// call on the webhook queue. Signature verification happens in the consumer.
//
// Cold Start:
//  1. Resolve configuration (env > .env > SSM).
//  2. Initialize the structured logger.
//  3. Build SQS and CloudWatch clients from the shared AWS config.
//  4. Select the metrics backend.
//  5. Wire Publisher -> Receiver.
//  6. Inside Lambda, register the API Gateway handler; otherwise serve
//     POST /webhook, GET /health and (for prometheus) GET /metrics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"payhook/internal/config"
	"payhook/internal/core"
	"payhook/internal/ingress"
	"payhook/internal/logging"
	"payhook/internal/metrics"
	"payhook/internal/queue"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, awsCfg, err := config.Bootstrap(ctx)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", "ingress")
	typedLogger := logging.NewAdapter(logger)
	logger.Info("ingress initializing",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"queue", cfg.Queue.WebhookQueueURL,
	)

	sqsClient := sqs.NewFromConfig(awsCfg)

	var cw metrics.CloudWatchClient
	if cfg.Metrics.Backend == metrics.BackendCloudWatch {
		cw = cloudwatch.NewFromConfig(awsCfg)
	}
	backend, err := metrics.NewBackend(cfg.Metrics, cw, typedLogger)
	if err != nil {
		return err
	}

	publisher := queue.NewPublisher(sqsClient, cfg.Queue.WebhookQueueURL, cfg.Breaker, logger)
	receiver := ingress.NewReceiver(ingress.ReceiverConfig{
		Enqueuer:        publisher,
		Metrics:         backend.Pipeline,
		Logger:          typedLogger,
		SignatureHeader: cfg.Signature.Header,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
	})

	if isLambdaEnvironment() {
		logger.Info("ingress starting in lambda mode")
		lambda.StartWithOptions(receiver.HandleAPIGateway, lambda.WithContext(ctx))
		return nil
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = []core.HealthProbe{
		queue.NewProbe("webhook_queue", sqsClient, cfg.Queue.WebhookQueueURL),
	}
	if backend.Prometheus != nil {
		srv.Metrics = backend.Prometheus
		srv.MetricsHandler = backend.Prometheus.Handler()
	}
	srv.Registrars = []core.RouteRegistrar{receiver.RegisterRoutes}
	srv.MountRoutes()

	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	logger.Info("ingress stopped cleanly")
	return nil
}

// isLambdaEnvironment reports whether the process runs inside the Lambda
// runtime.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}
