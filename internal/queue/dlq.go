package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/klauspost/compress/zstd"

	"payhook/internal/types"
)

// DeadLetter is one message read from the dead-letter queue.
type DeadLetter struct {
	MessageID    string            `json:"message_id"`
	ReceiveCount int               `json:"receive_count"`
	SentAt       time.Time         `json:"sent_at"`
	TraceID      string            `json:"trace_id,omitempty"`
	Decodes      bool              `json:"decodes"`
	DecodeError  string            `json:"decode_error,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Body         string            `json:"body"`

	receiptHandle string
}

// peekVisibility hides peeked messages while a read is in progress so later
// receives page past them. They are released when the read ends.
const peekVisibility = 30

// ReadOptions bounds a DLQ read.
type ReadOptions struct {
	Max int
	// Drain hides each message for VisibilityTimeout so it can be deleted
	// once handled. Without it messages are peeked and made visible again
	// before ReadDeadLetters returns.
	Drain             bool
	VisibilityTimeout time.Duration
}

// ReadDeadLetters receives up to opts.Max messages from the DLQ.
func ReadDeadLetters(ctx context.Context, client DeadLetterReader, dlqURL string, opts ReadOptions) ([]DeadLetter, error) {
	if opts.Max <= 0 {
		opts.Max = 10
	}
	visibility := int32(peekVisibility)
	if opts.Drain {
		visibility = int32(opts.VisibilityTimeout / time.Second)
		if visibility <= 0 {
			visibility = 300
		}
	}

	seen := make(map[string]bool)
	var out []DeadLetter
	var readErr error
	for len(out) < opts.Max {
		batch := opts.Max - len(out)
		if batch > 10 {
			batch = 10
		}
		resp, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:                    aws.String(dlqURL),
			MaxNumberOfMessages:         int32(batch),
			VisibilityTimeout:           visibility,
			WaitTimeSeconds:             1,
			MessageAttributeNames:       []string{"All"},
			MessageSystemAttributeNames: []sqsTypes.MessageSystemAttributeName{sqsTypes.MessageSystemAttributeNameAll},
		})
		if err != nil {
			readErr = fmt.Errorf("queue: failed to receive from %s: %w", dlqURL, err)
			break
		}

		added := 0
		for _, msg := range resp.Messages {
			id := aws.ToString(msg.MessageId)
			// A message can come back if its visibility lapses mid-read.
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, newDeadLetter(msg))
			added++
		}
		if added == 0 {
			break
		}
	}

	if !opts.Drain {
		readErr = errors.Join(readErr, releaseDeadLetters(ctx, client, dlqURL, out))
	}
	return out, readErr
}

// releaseDeadLetters makes peeked messages visible again. A zero timeout on
// ReceiveMessage is dropped on the wire, so the reset is explicit.
func releaseDeadLetters(ctx context.Context, client SQSVisibility, dlqURL string, letters []DeadLetter) error {
	var errs []error
	for _, dl := range letters {
		if dl.receiptHandle == "" {
			continue
		}
		_, err := client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
			QueueUrl:          aws.String(dlqURL),
			ReceiptHandle:     aws.String(dl.receiptHandle),
			VisibilityTimeout: 0,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("queue: failed to release dead letter %s: %w", dl.MessageID, err))
		}
	}
	return errors.Join(errs...)
}

func newDeadLetter(msg sqsTypes.Message) DeadLetter {
	dl := DeadLetter{
		MessageID:     aws.ToString(msg.MessageId),
		Attributes:    msg.Attributes,
		Body:          aws.ToString(msg.Body),
		receiptHandle: aws.ToString(msg.ReceiptHandle),
	}
	if n, err := strconv.Atoi(msg.Attributes[string(sqsTypes.MessageSystemAttributeNameApproximateReceiveCount)]); err == nil {
		dl.ReceiveCount = n
	}
	if ms, err := strconv.ParseInt(msg.Attributes[string(sqsTypes.MessageSystemAttributeNameSentTimestamp)], 10, 64); err == nil {
		dl.SentAt = time.UnixMilli(ms).UTC()
	}
	if attr, ok := msg.MessageAttributes[types.AttrTraceID]; ok {
		dl.TraceID = aws.ToString(attr.StringValue)
	}
	if _, err := types.DecodeQueuedMessage([]byte(dl.Body)); err != nil {
		dl.DecodeError = err.Error()
	} else {
		dl.Decodes = true
	}
	return dl
}

// DeleteDeadLetters removes drained messages from the DLQ.
func DeleteDeadLetters(ctx context.Context, client SQSReceiver, dlqURL string, letters []DeadLetter) error {
	for _, dl := range letters {
		if dl.receiptHandle == "" {
			continue
		}
		_, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(dlqURL),
			ReceiptHandle: aws.String(dl.receiptHandle),
		})
		if err != nil {
			return fmt.Errorf("queue: failed to delete dead letter %s: %w", dl.MessageID, err)
		}
	}
	return nil
}

// ExportDeadLetters writes letters to w as zstd-compressed JSON lines.
func ExportDeadLetters(w io.Writer, letters []DeadLetter) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("queue: failed to create zstd encoder: %w", err)
	}

	jsonEnc := json.NewEncoder(enc)
	for _, dl := range letters {
		if err := jsonEnc.Encode(dl); err != nil {
			_ = enc.Close()
			return fmt.Errorf("queue: failed to write dead letter %s: %w", dl.MessageID, err)
		}
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("queue: failed to flush export: %w", err)
	}
	return nil
}

// ReadExport decodes an archive written by ExportDeadLetters.
func ReadExport(r io.Reader) ([]DeadLetter, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("queue: failed to open export: %w", err)
	}
	defer dec.Close()

	var out []DeadLetter
	jsonDec := json.NewDecoder(dec)
	for {
		var dl DeadLetter
		if err := jsonDec.Decode(&dl); err == io.EOF {
			return out, nil
		} else if err != nil {
			return out, fmt.Errorf("queue: failed to decode export: %w", err)
		}
		out = append(out, dl)
	}
}

// StartRedrive asks SQS to move messages from the DLQ back to destURL, or to
// their original source queue when destURL is empty. maxPerSecond of 0
// leaves the rate to SQS.
func StartRedrive(ctx context.Context, client SQSAdmin, dlqURL, destURL string, maxPerSecond int32) (string, error) {
	srcARN, err := QueueARN(ctx, client, dlqURL)
	if err != nil {
		return "", err
	}
	input := &sqs.StartMessageMoveTaskInput{SourceArn: aws.String(srcARN)}
	if destURL != "" {
		destARN, err := QueueARN(ctx, client, destURL)
		if err != nil {
			return "", err
		}
		input.DestinationArn = aws.String(destARN)
	}
	if maxPerSecond > 0 {
		input.MaxNumberOfMessagesPerSecond = aws.Int32(maxPerSecond)
	}

	out, err := client.StartMessageMoveTask(ctx, input)
	if err != nil {
		return "", fmt.Errorf("queue: failed to start message move task from %s: %w", dlqURL, err)
	}
	return aws.ToString(out.TaskHandle), nil
}
