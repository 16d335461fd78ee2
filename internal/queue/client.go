// Package queue is the SQS side of the pipeline: the breaker-guarded
// webhook publisher, the transaction sink, the local poller and the
// redrive/dead-letter tooling used by queuectl.
package queue

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// MaxMessageBytes is the largest message body SQS accepts.
const MaxMessageBytes = 262144

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSReceiver is what the poller and DLQ tools need to consume a queue.
type SQSReceiver interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSVisibility changes how long a received message stays hidden.
type SQSVisibility interface {
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// DeadLetterReader is what the DLQ tools need to read and release messages.
type DeadLetterReader interface {
	SQSReceiver
	SQSVisibility
}

// SQSAttributes reads queue attributes.
type SQSAttributes interface {
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// SQSAdmin covers queue provisioning and dead-letter operations.
type SQSAdmin interface {
	DeadLetterReader
	SQSAttributes
	CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	SetQueueAttributes(ctx context.Context, params *sqs.SetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.SetQueueAttributesOutput, error)
	StartMessageMoveTask(ctx context.Context, params *sqs.StartMessageMoveTaskInput, optFns ...func(*sqs.Options)) (*sqs.StartMessageMoveTaskOutput, error)
}

var (
	_ SQSSender = (*sqs.Client)(nil)
	_ SQSAdmin  = (*sqs.Client)(nil)
)
