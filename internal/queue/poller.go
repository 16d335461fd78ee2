package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"golang.org/x/sync/errgroup"

	"payhook/internal/config"
)

// BatchHandler consumes an SQS event and reports per-item failures, the
// same contract Lambda uses. consumer.Handler implements it.
type BatchHandler interface {
	Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error)
}

// Poller drives a BatchHandler from a long-running process. Each worker
// long-polls for a single message, hands it over as a one-record event and
// deletes it only when the handler did not report it as failed. Failed
// messages reappear after the visibility timeout, so SQS keeps counting
// receives and the redrive policy still moves them to the DLQ.
type Poller struct {
	client   SQSReceiver
	queueURL string
	handler  BatchHandler
	cfg      config.PollerConfig
	region   string
	logger   *slog.Logger

	errorBackoff time.Duration
}

// NewPoller creates a Poller for queueURL.
func NewPoller(client SQSReceiver, queueURL, region string, handler BatchHandler, cfg config.PollerConfig, logger *slog.Logger) *Poller {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Poller{
		client:       client,
		queueURL:     queueURL,
		handler:      handler,
		cfg:          cfg,
		region:       region,
		logger:       logger,
		errorBackoff: 2 * time.Second,
	}
}

// Run starts the workers and blocks until ctx is cancelled. Messages already
// received when ctx is cancelled are still processed to completion.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller starting",
		"queue_url", p.queueURL,
		"workers", p.cfg.Workers,
		"wait_time", p.cfg.WaitTime.String(),
	)

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		worker := i
		g.Go(func() error {
			return p.work(gCtx, worker)
		})
	}
	err := g.Wait()
	p.logger.Info("poller stopped")
	return err
}

func (p *Poller) work(ctx context.Context, worker int) error {
	for ctx.Err() == nil {
		if _, err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("poll failed",
				"worker", worker,
				"error", err.Error(),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.errorBackoff):
			}
		}
	}
	return nil
}

// PollOnce receives at most one message, processes it and returns how many
// messages were received.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	out, err := p.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(p.queueURL),
		MaxNumberOfMessages:         1,
		WaitTimeSeconds:             int32(p.cfg.WaitTime / time.Second),
		VisibilityTimeout:           int32(p.cfg.VisibilityTimeout / time.Second),
		MessageAttributeNames:       []string{"All"},
		MessageSystemAttributeNames: []sqsTypes.MessageSystemAttributeName{sqsTypes.MessageSystemAttributeNameAll},
	})
	if err != nil {
		return 0, fmt.Errorf("queue: failed to receive from %s: %w", p.queueURL, err)
	}

	// Once received, a message runs to completion even during shutdown.
	procCtx := context.WithoutCancel(ctx)

	var errs []error
	for _, msg := range out.Messages {
		if err := p.process(procCtx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return len(out.Messages), errors.Join(errs...)
}

func (p *Poller) process(ctx context.Context, msg sqsTypes.Message) error {
	record := ToEventMessage(msg, p.region)
	resp, err := p.handler.Handle(ctx, events.SQSEvent{Records: []events.SQSMessage{record}})
	if err != nil {
		p.logger.ErrorContext(ctx, "handler failed; message left for redelivery",
			"message_id", record.MessageId,
			"error", err.Error(),
		)
		return nil
	}
	for _, failure := range resp.BatchItemFailures {
		if failure.ItemIdentifier == record.MessageId {
			p.logger.WarnContext(ctx, "message reported as failed; left for redelivery",
				"message_id", record.MessageId,
			)
			return nil
		}
	}

	_, err = p.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.queueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		return fmt.Errorf("queue: failed to delete message %s: %w", record.MessageId, err)
	}
	return nil
}

// ToEventMessage converts a received SQS message into the shape Lambda
// delivers, so one handler serves both runtimes.
func ToEventMessage(msg sqsTypes.Message, region string) events.SQSMessage {
	record := events.SQSMessage{
		MessageId:              aws.ToString(msg.MessageId),
		ReceiptHandle:          aws.ToString(msg.ReceiptHandle),
		Body:                   aws.ToString(msg.Body),
		Md5OfBody:              aws.ToString(msg.MD5OfBody),
		Md5OfMessageAttributes: aws.ToString(msg.MD5OfMessageAttributes),
		Attributes:             make(map[string]string, len(msg.Attributes)),
		MessageAttributes:      make(map[string]events.SQSMessageAttribute, len(msg.MessageAttributes)),
		EventSource:            "aws:sqs",
		AWSRegion:              region,
	}
	for k, v := range msg.Attributes {
		record.Attributes[k] = v
	}
	for k, v := range msg.MessageAttributes {
		record.MessageAttributes[k] = events.SQSMessageAttribute{
			DataType:         aws.ToString(v.DataType),
			StringValue:      v.StringValue,
			BinaryValue:      v.BinaryValue,
			StringListValues: v.StringListValues,
			BinaryListValues: v.BinaryListValues,
		}
	}
	return record
}
