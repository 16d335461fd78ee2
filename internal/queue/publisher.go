package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"payhook/internal/config"
	"payhook/internal/types"
)

// SourceWebhook is the source attribute on messages published by the ingress.
const SourceWebhook = "webhook"

var (
	// ErrQueueUnavailable is returned without calling SQS while the breaker is open.
	ErrQueueUnavailable = errors.New("queue: webhook queue unavailable")
	// ErrMessageTooLarge is returned when the encoded message exceeds MaxMessageBytes.
	ErrMessageTooLarge = errors.New("queue: message exceeds SQS size limit")
)

// Publisher sends QueuedMessages to the webhook queue. Sends go through a
// circuit breaker so a failing queue is not hammered by every inbound call.
type Publisher struct {
	client   SQSSender
	queueURL string
	breaker  *gobreaker.CircuitBreaker[*sqs.SendMessageOutput]
	logger   *slog.Logger
}

// NewPublisher creates a Publisher for queueURL.
func NewPublisher(client SQSSender, queueURL string, breakerCfg config.BreakerConfig, logger *slog.Logger) *Publisher {
	maxFailures := breakerCfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	openTimeout := breakerCfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[*sqs.SendMessageOutput](gobreaker.Settings{
		Name:        "sqs-webhook-queue",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// Cancelled callers say nothing about the queue's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Publisher{
		client:   client,
		queueURL: queueURL,
		breaker:  cb,
		logger:   logger,
	}
}

// Enqueue publishes msg and returns the SQS message id. The trace id is
// taken from ctx, or generated when absent.
func (p *Publisher) Enqueue(ctx context.Context, msg types.QueuedMessage) (string, error) {
	body, err := msg.Encode()
	if err != nil {
		return "", fmt.Errorf("queue: failed to encode webhook message: %w", err)
	}
	if len(body) > MaxMessageBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(body))
	}

	traceID := types.GetTraceID(ctx)
	if traceID == "" {
		traceID = uuid.New().String()
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			types.AttrTraceID: {
				DataType:    aws.String("String"),
				StringValue: aws.String(traceID),
			},
			types.AttrSource: {
				DataType:    aws.String("String"),
				StringValue: aws.String(SourceWebhook),
			},
		},
	}

	out, err := p.breaker.Execute(func() (*sqs.SendMessageOutput, error) {
		return p.client.SendMessage(ctx, input)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	if err != nil {
		return "", fmt.Errorf("queue: failed to send webhook message to %s: %w", p.queueURL, err)
	}

	messageID := aws.ToString(out.MessageId)
	p.logger.InfoContext(ctx, "webhook message sent",
		"queue_url", p.queueURL,
		"message_id", messageID,
		"trace_id", traceID,
		"bytes", len(body),
	)
	return messageID, nil
}

// BreakerState reports the breaker state, for health output.
func (p *Publisher) BreakerState() gobreaker.State {
	return p.breaker.State()
}
