package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"payhook/internal/config"
	"payhook/internal/types"
)

func testMessage(t *testing.T, body string) types.QueuedMessage {
	t.Helper()
	msg, err := types.NewQueuedMessage(types.InboundWebhookEnvelope{
		Headers: map[string]string{"verification-signature": "c2ln"},
		RawBody: body,
	})
	require.NoError(t, err)
	return msg
}

func newTestPublisher(client SQSSender, maxFailures uint32) *Publisher {
	return NewPublisher(client, testQueueURL, config.BreakerConfig{
		MaxFailures: maxFailures,
		OpenTimeout: time.Minute,
	}, discardLogger())
}

func TestPublisher_Enqueue(t *testing.T) {
	client := &mockSQS{}
	var input *sqs.SendMessageInput
	client.On("SendMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { input = args.Get(1).(*sqs.SendMessageInput) }).
		Return(&sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil).
		Once()

	body := "{\"DirectCreditDetails\": [ {\"Amount\": 10.50} ]}"
	ctx := types.WithTraceID(context.Background(), "trace-abc")

	id, err := newTestPublisher(client, 5).Enqueue(ctx, testMessage(t, body))
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)

	client.AssertExpectations(t)
	assert.Equal(t, testQueueURL, aws.ToString(input.QueueUrl))
	assert.Equal(t, "trace-abc", aws.ToString(input.MessageAttributes[types.AttrTraceID].StringValue))
	assert.Equal(t, SourceWebhook, aws.ToString(input.MessageAttributes[types.AttrSource].StringValue))

	sent := aws.ToString(input.MessageBody)
	assert.True(t, strings.Contains(sent, body), "body must be embedded byte-for-byte: %s", sent)

	decoded, err := types.DecodeQueuedMessage([]byte(sent))
	require.NoError(t, err)
	assert.Equal(t, body, string(decoded.Body))
	assert.Equal(t, body, decoded.RawBody)
	assert.Equal(t, "c2ln", decoded.Headers["verification-signature"])
}

func TestPublisher_GeneratesTraceID(t *testing.T) {
	client := &mockSQS{}
	var input *sqs.SendMessageInput
	client.On("SendMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { input = args.Get(1).(*sqs.SendMessageInput) }).
		Return(&sqs.SendMessageOutput{MessageId: aws.String("msg-2")}, nil)

	_, err := newTestPublisher(client, 5).Enqueue(context.Background(), testMessage(t, `{}`))
	require.NoError(t, err)
	assert.NotEmpty(t, aws.ToString(input.MessageAttributes[types.AttrTraceID].StringValue))
}

func TestPublisher_SendFailure(t *testing.T) {
	client := &mockSQS{}
	sendErr := errors.New("throttled")
	client.On("SendMessage", mock.Anything, mock.Anything).Return(nil, sendErr)

	_, err := newTestPublisher(client, 5).Enqueue(context.Background(), testMessage(t, `{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, sendErr)
	assert.NotErrorIs(t, err, ErrQueueUnavailable)
}

func TestPublisher_BreakerOpens(t *testing.T) {
	client := &mockSQS{}
	client.On("SendMessage", mock.Anything, mock.Anything).Return(nil, errors.New("down"))

	p := newTestPublisher(client, 2)
	msg := testMessage(t, `{}`)

	for i := 0; i < 2; i++ {
		_, err := p.Enqueue(context.Background(), msg)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, p.BreakerState())

	_, err := p.Enqueue(context.Background(), msg)
	assert.ErrorIs(t, err, ErrQueueUnavailable)
	client.AssertNumberOfCalls(t, "SendMessage", 2)
}

func TestPublisher_TooLarge(t *testing.T) {
	client := &mockSQS{}
	big, err := json.Marshal(strings.Repeat("x", MaxMessageBytes))
	require.NoError(t, err)

	_, err = newTestPublisher(client, 5).Enqueue(context.Background(), testMessage(t, string(big)))
	assert.ErrorIs(t, err, ErrMessageTooLarge)
	client.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}
