package queue

import (
	"context"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/mock"
)

type mockSQS struct {
	mock.Mock
}

func (m *mockSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sqs.SendMessageOutput)
	return out, args.Error(1)
}

func (m *mockSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sqs.ReceiveMessageOutput)
	return out, args.Error(1)
}

func (m *mockSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sqs.DeleteMessageOutput)
	return out, args.Error(1)
}

func (m *mockSQS) ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, _ ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sqs.ChangeMessageVisibilityOutput)
	return out, args.Error(1)
}

func (m *mockSQS) GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sqs.GetQueueAttributesOutput)
	return out, args.Error(1)
}

func (m *mockSQS) CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, _ ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sqs.CreateQueueOutput)
	return out, args.Error(1)
}

func (m *mockSQS) SetQueueAttributes(ctx context.Context, params *sqs.SetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.SetQueueAttributesOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sqs.SetQueueAttributesOutput)
	return out, args.Error(1)
}

func (m *mockSQS) StartMessageMoveTask(ctx context.Context, params *sqs.StartMessageMoveTaskInput, _ ...func(*sqs.Options)) (*sqs.StartMessageMoveTaskOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sqs.StartMessageMoveTaskOutput)
	return out, args.Error(1)
}

var _ SQSAdmin = (*mockSQS)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const (
	testQueueURL = "https://sqs.us-east-1.amazonaws.com/123456789012/webhook-queue"
	testDLQURL   = "https://sqs.us-east-1.amazonaws.com/123456789012/webhook-dlq-main"
	testTxURL    = "https://sqs.us-east-1.amazonaws.com/123456789012/transactions"
)
