package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"payhook/internal/config"
)

type handlerFunc func(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error)

func (f handlerFunc) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	return f(ctx, event)
}

var testPollerConfig = config.PollerConfig{
	Workers:           1,
	WaitTime:          20 * time.Second,
	VisibilityTimeout: 30 * time.Second,
}

func receivedMessage() sqsTypes.Message {
	return sqsTypes.Message{
		MessageId:     aws.String("msg-1"),
		ReceiptHandle: aws.String("rh-1"),
		Body:          aws.String(`{"headers":{},"body":{}}`),
		Attributes: map[string]string{
			"ApproximateReceiveCount": "2",
			"SentTimestamp":           "1750334400000",
		},
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"trace_id": {DataType: aws.String("String"), StringValue: aws.String("trace-1")},
		},
	}
}

func expectReceive(client *mockSQS, msgs ...sqsTypes.Message) {
	client.On("ReceiveMessage", mock.Anything, mock.MatchedBy(func(in *sqs.ReceiveMessageInput) bool {
		return in.MaxNumberOfMessages == 1 && in.WaitTimeSeconds == 20 && in.VisibilityTimeout == 30
	})).Return(&sqs.ReceiveMessageOutput{Messages: msgs}, nil).Once()
}

func TestPoller_DeletesProcessedMessage(t *testing.T) {
	client := &mockSQS{}
	expectReceive(client, receivedMessage())
	client.On("DeleteMessage", mock.Anything, mock.MatchedBy(func(in *sqs.DeleteMessageInput) bool {
		return aws.ToString(in.ReceiptHandle) == "rh-1"
	})).Return(&sqs.DeleteMessageOutput{}, nil).Once()

	var seen events.SQSEvent
	h := handlerFunc(func(_ context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
		seen = event
		return events.SQSEventResponse{}, nil
	})

	n, err := NewPoller(client, testQueueURL, "us-east-1", h, testPollerConfig, discardLogger()).PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	client.AssertExpectations(t)

	require.Len(t, seen.Records, 1)
	rec := seen.Records[0]
	assert.Equal(t, "msg-1", rec.MessageId)
	assert.Equal(t, "2", rec.Attributes["ApproximateReceiveCount"])
	assert.Equal(t, "trace-1", aws.ToString(rec.MessageAttributes["trace_id"].StringValue))
	assert.Equal(t, "us-east-1", rec.AWSRegion)
}

func TestPoller_LeavesFailedMessage(t *testing.T) {
	tests := []struct {
		name    string
		handler handlerFunc
	}{
		{
			name: "reported failure",
			handler: func(_ context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
				return events.SQSEventResponse{BatchItemFailures: []events.SQSBatchItemFailure{
					{ItemIdentifier: event.Records[0].MessageId},
				}}, nil
			},
		},
		{
			name: "handler error",
			handler: func(context.Context, events.SQSEvent) (events.SQSEventResponse, error) {
				return events.SQSEventResponse{}, errors.New("boom")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockSQS{}
			expectReceive(client, receivedMessage())

			n, err := NewPoller(client, testQueueURL, "us-east-1", tt.handler, testPollerConfig, discardLogger()).PollOnce(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			client.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything)
		})
	}
}

func TestPoller_ProcessesAfterCancel(t *testing.T) {
	client := &mockSQS{}
	expectReceive(client, receivedMessage())
	client.On("DeleteMessage", mock.Anything, mock.Anything).Return(&sqs.DeleteMessageOutput{}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	h := handlerFunc(func(hctx context.Context, _ events.SQSEvent) (events.SQSEventResponse, error) {
		cancel()
		assert.NoError(t, hctx.Err())
		return events.SQSEventResponse{}, nil
	})

	_, err := NewPoller(client, testQueueURL, "us-east-1", h, testPollerConfig, discardLogger()).PollOnce(ctx)
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestPoller_ReceiveError(t *testing.T) {
	client := &mockSQS{}
	client.On("ReceiveMessage", mock.Anything, mock.Anything).Return(nil, errors.New("denied"))

	h := handlerFunc(func(context.Context, events.SQSEvent) (events.SQSEventResponse, error) {
		t.Fatal("handler must not run")
		return events.SQSEventResponse{}, nil
	})
	n, err := NewPoller(client, testQueueURL, "us-east-1", h, testPollerConfig, discardLogger()).PollOnce(context.Background())
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	client := &mockSQS{}
	ctx, cancel := context.WithCancel(context.Background())
	client.On("ReceiveMessage", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled)

	h := handlerFunc(func(context.Context, events.SQSEvent) (events.SQSEventResponse, error) {
		return events.SQSEventResponse{}, nil
	})
	cfg := testPollerConfig
	cfg.Workers = 3

	done := make(chan error, 1)
	go func() {
		done <- NewPoller(client, testQueueURL, "us-east-1", h, cfg, discardLogger()).Run(ctx)
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop")
	}
}
