package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testQueueARN = "arn:aws:sqs:us-east-1:123456789012:webhook-queue"
	testDLQARN   = "arn:aws:sqs:us-east-1:123456789012:webhook-dlq-main"
)

func expectARN(client *mockSQS, url, arn string) {
	client.On("GetQueueAttributes", mock.Anything, mock.MatchedBy(func(in *sqs.GetQueueAttributesInput) bool {
		return aws.ToString(in.QueueUrl) == url
	})).Return(&sqs.GetQueueAttributesOutput{
		Attributes: map[string]string{"QueueArn": arn},
	}, nil)
}

func TestRedrivePolicy_Attribute(t *testing.T) {
	attr, err := RedrivePolicy{DeadLetterTargetARN: testDLQARN, MaxReceiveCount: 3}.Attribute()
	require.NoError(t, err)
	assert.JSONEq(t, `{"deadLetterTargetArn":"`+testDLQARN+`","maxReceiveCount":3}`, attr)

	_, err = RedrivePolicy{MaxReceiveCount: 3}.Attribute()
	assert.Error(t, err)
	_, err = RedrivePolicy{DeadLetterTargetARN: testDLQARN}.Attribute()
	assert.Error(t, err)
}

func TestProvision_Defaults(t *testing.T) {
	client := &mockSQS{}
	client.On("CreateQueue", mock.Anything, mock.MatchedBy(func(in *sqs.CreateQueueInput) bool {
		return aws.ToString(in.QueueName) == DefaultDeadLetterName &&
			in.Attributes["MessageRetentionPeriod"] == "1209600"
	})).Return(&sqs.CreateQueueOutput{QueueUrl: aws.String(testDLQURL)}, nil).Once()
	client.On("CreateQueue", mock.Anything, mock.MatchedBy(func(in *sqs.CreateQueueInput) bool {
		return aws.ToString(in.QueueName) == DefaultQueueName
	})).Return(&sqs.CreateQueueOutput{QueueUrl: aws.String(testQueueURL)}, nil).Once()
	expectARN(client, testDLQURL, testDLQARN)
	expectARN(client, testQueueURL, testQueueARN)

	var policyAttr string
	client.On("SetQueueAttributes", mock.Anything, mock.MatchedBy(func(in *sqs.SetQueueAttributesInput) bool {
		return aws.ToString(in.QueueUrl) == testQueueURL
	})).Run(func(args mock.Arguments) {
		in := args.Get(1).(*sqs.SetQueueAttributesInput)
		policyAttr = in.Attributes[string(sqsTypes.QueueAttributeNameRedrivePolicy)]
	}).Return(&sqs.SetQueueAttributesOutput{}, nil).Once()

	got, err := Provision(context.Background(), client, ProvisionSpec{})
	require.NoError(t, err)
	client.AssertExpectations(t)

	assert.Equal(t, testQueueURL, got.QueueURL)
	assert.Equal(t, testDLQARN, got.DeadLetterARN)
	assert.Equal(t, 3, got.Policy.MaxReceiveCount)

	var policy RedrivePolicy
	require.NoError(t, json.Unmarshal([]byte(policyAttr), &policy))
	assert.Equal(t, RedrivePolicy{DeadLetterTargetARN: testDLQARN, MaxReceiveCount: 3}, policy)
}

func TestStartRedrive(t *testing.T) {
	client := &mockSQS{}
	expectARN(client, testDLQURL, testDLQARN)
	expectARN(client, testQueueURL, testQueueARN)
	client.On("StartMessageMoveTask", mock.Anything, mock.MatchedBy(func(in *sqs.StartMessageMoveTaskInput) bool {
		return aws.ToString(in.SourceArn) == testDLQARN &&
			aws.ToString(in.DestinationArn) == testQueueARN &&
			aws.ToInt32(in.MaxNumberOfMessagesPerSecond) == 5
	})).Return(&sqs.StartMessageMoveTaskOutput{TaskHandle: aws.String("task-1")}, nil).Once()

	handle, err := StartRedrive(context.Background(), client, testDLQURL, testQueueURL, 5)
	require.NoError(t, err)
	assert.Equal(t, "task-1", handle)
	client.AssertExpectations(t)
}

func TestReadDeadLetters_PeekDeduplicates(t *testing.T) {
	good := receivedMessage()
	bad := sqsTypes.Message{
		MessageId:     aws.String("msg-2"),
		ReceiptHandle: aws.String("rh-2"),
		Body:          aws.String("not json"),
		Attributes:    map[string]string{"ApproximateReceiveCount": "4"},
	}

	client := &mockSQS{}
	client.On("ReceiveMessage", mock.Anything, mock.MatchedBy(func(in *sqs.ReceiveMessageInput) bool {
		return in.VisibilityTimeout == peekVisibility
	})).Return(&sqs.ReceiveMessageOutput{Messages: []sqsTypes.Message{good, bad}}, nil)
	client.On("ChangeMessageVisibility", mock.Anything, mock.Anything).
		Return(&sqs.ChangeMessageVisibilityOutput{}, nil)

	letters, err := ReadDeadLetters(context.Background(), client, testDLQURL, ReadOptions{Max: 5})
	require.NoError(t, err)
	require.Len(t, letters, 2)
	client.AssertNumberOfCalls(t, "ReceiveMessage", 2)
	client.AssertNumberOfCalls(t, "ChangeMessageVisibility", 2)

	assert.Equal(t, "msg-1", letters[0].MessageID)
	assert.True(t, letters[0].Decodes)
	assert.Equal(t, "trace-1", letters[0].TraceID)
	assert.Equal(t, 2, letters[0].ReceiveCount)
	assert.Equal(t, int64(1750334400000), letters[0].SentAt.UnixMilli())

	assert.False(t, letters[1].Decodes)
	assert.NotEmpty(t, letters[1].DecodeError)
	assert.Equal(t, 4, letters[1].ReceiveCount)
}

func TestReadDeadLetters_PeekReleasesMessages(t *testing.T) {
	client := &mockSQS{}
	client.On("ReceiveMessage", mock.Anything, mock.Anything).
		Return(&sqs.ReceiveMessageOutput{Messages: []sqsTypes.Message{receivedMessage()}}, nil).Once()
	client.On("ReceiveMessage", mock.Anything, mock.Anything).
		Return(&sqs.ReceiveMessageOutput{}, nil)

	var released []*sqs.ChangeMessageVisibilityInput
	client.On("ChangeMessageVisibility", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			released = append(released, args.Get(1).(*sqs.ChangeMessageVisibilityInput))
		}).
		Return(&sqs.ChangeMessageVisibilityOutput{}, nil)

	letters, err := ReadDeadLetters(context.Background(), client, testDLQURL, ReadOptions{Max: 5})
	require.NoError(t, err)
	require.Len(t, letters, 1)

	require.Len(t, released, 1)
	assert.Equal(t, testDLQURL, aws.ToString(released[0].QueueUrl))
	assert.Equal(t, "rh-1", aws.ToString(released[0].ReceiptHandle))
	assert.Equal(t, int32(0), released[0].VisibilityTimeout)
}

func TestReadDeadLetters_ReleaseFailure(t *testing.T) {
	client := &mockSQS{}
	client.On("ReceiveMessage", mock.Anything, mock.Anything).
		Return(&sqs.ReceiveMessageOutput{Messages: []sqsTypes.Message{receivedMessage()}}, nil).Once()
	client.On("ReceiveMessage", mock.Anything, mock.Anything).
		Return(&sqs.ReceiveMessageOutput{}, nil)
	client.On("ChangeMessageVisibility", mock.Anything, mock.Anything).
		Return(nil, errors.New("ReceiptHandleIsInvalid"))

	letters, err := ReadDeadLetters(context.Background(), client, testDLQURL, ReadOptions{Max: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "release dead letter msg-1")
	assert.Len(t, letters, 1)
}

func TestReadDeadLetters_DrainKeepsMessagesHidden(t *testing.T) {
	client := &mockSQS{}
	client.On("ReceiveMessage", mock.Anything, mock.MatchedBy(func(in *sqs.ReceiveMessageInput) bool {
		return in.VisibilityTimeout == 120
	})).Return(&sqs.ReceiveMessageOutput{Messages: []sqsTypes.Message{receivedMessage()}}, nil).Once()
	client.On("ReceiveMessage", mock.Anything, mock.Anything).
		Return(&sqs.ReceiveMessageOutput{}, nil)

	letters, err := ReadDeadLetters(context.Background(), client, testDLQURL,
		ReadOptions{Max: 5, Drain: true, VisibilityTimeout: 2 * time.Minute})
	require.NoError(t, err)
	require.Len(t, letters, 1)
	client.AssertNotCalled(t, "ChangeMessageVisibility", mock.Anything, mock.Anything)
}

func TestExportDeadLetters(t *testing.T) {
	letters := []DeadLetter{
		{MessageID: "msg-1", ReceiveCount: 3, Decodes: true, Body: `{"headers":{},"body":{}}`},
		{MessageID: "msg-2", ReceiveCount: 4, DecodeError: "bad", Body: "x"},
	}

	var buf bytes.Buffer
	require.NoError(t, ExportDeadLetters(&buf, letters))
	assert.Equal(t, []byte{0x28, 0xb5, 0x2f, 0xfd}, buf.Bytes()[:4], "zstd frame magic")

	got, err := ReadExport(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, letters[0].Body, got[0].Body)
	assert.Equal(t, "bad", got[1].DecodeError)
}

func TestDeleteDeadLetters(t *testing.T) {
	client := &mockSQS{}
	client.On("DeleteMessage", mock.Anything, mock.MatchedBy(func(in *sqs.DeleteMessageInput) bool {
		return aws.ToString(in.ReceiptHandle) == "rh-1"
	})).Return(&sqs.DeleteMessageOutput{}, nil).Once()

	letters := []DeadLetter{newDeadLetter(receivedMessage()), {MessageID: "no-handle"}}
	require.NoError(t, DeleteDeadLetters(context.Background(), client, testDLQURL, letters))
	client.AssertExpectations(t)
}

func TestProbe(t *testing.T) {
	client := &mockSQS{}
	expectARN(client, testQueueURL, testQueueARN)

	p := NewProbe("webhook-queue", client, testQueueURL)
	assert.Equal(t, "webhook-queue", p.Name())
	assert.NoError(t, p.Check(context.Background()))
}
