package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"payhook/internal/types"
)

// SourceConsumer is the source attribute on messages published by the consumer.
const SourceConsumer = "consumer"

// TransactionSink forwards canonical transactions to an output queue, one
// message per transaction. Consumers of that queue deduplicate on the
// transaction_id attribute.
type TransactionSink struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewTransactionSink creates a TransactionSink for queueURL.
func NewTransactionSink(client SQSSender, queueURL string, logger *slog.Logger) *TransactionSink {
	return &TransactionSink{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// Deliver sends every transaction in order and stops at the first failure.
// A partial delivery is redriven in full; duplicates are expected downstream.
func (s *TransactionSink) Deliver(ctx context.Context, txs []types.Transaction) error {
	for _, tx := range txs {
		body, err := json.Marshal(tx)
		if err != nil {
			return fmt.Errorf("queue: failed to marshal transaction %s: %w", tx.ID, err)
		}

		attrs := map[string]sqsTypes.MessageAttributeValue{
			types.AttrTransactionID: {
				DataType:    aws.String("String"),
				StringValue: aws.String(tx.ID),
			},
			types.AttrSource: {
				DataType:    aws.String("String"),
				StringValue: aws.String(SourceConsumer),
			},
		}
		if traceID := types.GetTraceID(ctx); traceID != "" {
			attrs[types.AttrTraceID] = sqsTypes.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(traceID),
			}
		}

		_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:          aws.String(s.queueURL),
			MessageBody:       aws.String(string(body)),
			MessageAttributes: attrs,
		})
		if err != nil {
			return fmt.Errorf("queue: failed to send transaction %s to %s: %w", tx.ID, s.queueURL, err)
		}
	}

	if len(txs) > 0 {
		s.logger.InfoContext(ctx, "transactions forwarded",
			"queue_url", s.queueURL,
			"count", len(txs),
		)
	}
	return nil
}
