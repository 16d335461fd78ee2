// Package main is the entrypoint for the webhook consumer.
//
// The consumer drains the webhook queue. For every message it verifies the
// provider signature over the exact queued body, transforms the payload into
// canonical transactions and hands them to the configured sinks. Terminal
// rejections are acknowledged; transient failures are reported back so the
// queue redrives them and, after maxReceiveCount, parks them on the DLQ.
//
// Cold Start:
//  1. Resolve configuration (env > .env > SSM).
//  2. Initialize the structured logger.
//  3. Parse the provider public key. A missing or unusable key is logged
//     and every message is then rejected as unauthorized.
//  4. Wire Verifier, Transformer and sinks into the Processor.
//  5. Inside Lambda, register the SQS handler with partial batch
//     responses; otherwise long-poll the queue with a worker pool and
//     serve GET /health and GET /metrics.
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
	"golang.org/x/sync/errgroup"

	"payhook/internal/config"
	"payhook/internal/consumer"
	"payhook/internal/core"
	"payhook/internal/logging"
	"payhook/internal/metrics"
	"payhook/internal/queue"
	"payhook/internal/signature"
	"payhook/internal/transform"
	"payhook/internal/types"
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

	logger := logging.New(cfg.LogLevel).With("service", "consumer")
	typedLogger := logging.NewAdapter(logger)
	logger.Info("consumer initializing",
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

	sinks := consumer.MultiSink{consumer.NewLogSink(typedLogger)}
	if cfg.Queue.TransactionsQueueURL != "" {
		sinks = append(sinks, queue.NewTransactionSink(sqsClient, cfg.Queue.TransactionsQueueURL, logger))
	}

	processor := consumer.NewProcessor(consumer.ProcessorConfig{
		Verifier:        signature.NewVerifier(cfg.Signature.PublicKey, typedLogger),
		Transformer:     transform.New(types.RealClock{}, typedLogger),
		Sink:            sinks,
		Metrics:         backend.Pipeline,
		Logger:          typedLogger,
		SignatureHeader: cfg.Signature.Header,
	})
	handler := consumer.NewHandler(processor, backend.Pipeline, typedLogger)

	if isLambdaEnvironment() {
		logger.Info("consumer starting in lambda mode")
		lambda.StartWithOptions(handler.Handle, lambda.WithContext(ctx))
		return nil
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = []core.HealthProbe{
		queue.NewProbe("webhook_queue", sqsClient, cfg.Queue.WebhookQueueURL),
	}
	if cfg.Queue.DeadLetterQueueURL != "" {
		srv.HealthProbes = append(srv.HealthProbes,
			queue.NewProbe("webhook_dlq", sqsClient, cfg.Queue.DeadLetterQueueURL))
	}
	if backend.Prometheus != nil {
		srv.Metrics = backend.Prometheus
		srv.MetricsHandler = backend.Prometheus.Handler()
	}
	srv.MountRoutes()

	poller := queue.NewPoller(sqsClient, cfg.Queue.WebhookQueueURL, cfg.AWS.Region, handler, cfg.Poller, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return poller.Run(gctx) })
	g.Go(func() error { return srv.ListenAndServe(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("consumer stopped cleanly")
	return nil
}

// isLambdaEnvironment reports whether the process runs inside the Lambda
// runtime.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}
