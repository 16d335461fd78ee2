package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Defaults for the webhook queue pair.
const (
	DefaultQueueName          = "webhook-queue"
	DefaultDeadLetterName     = "webhook-dlq-main"
	DefaultMaxReceiveCount    = 3
	DefaultDLQRetentionPeriod = 1209600 // 14 days, the SQS maximum
)

// RedrivePolicy is the SQS RedrivePolicy attribute of the source queue.
type RedrivePolicy struct {
	DeadLetterTargetARN string `json:"deadLetterTargetArn"`
	MaxReceiveCount     int    `json:"maxReceiveCount"`
}

// Validate checks the policy against SQS limits.
func (p RedrivePolicy) Validate() error {
	if p.DeadLetterTargetARN == "" {
		return errors.New("queue: redrive policy needs a dead-letter target ARN")
	}
	if p.MaxReceiveCount < 1 || p.MaxReceiveCount > 1000 {
		return fmt.Errorf("queue: maxReceiveCount %d out of range 1..1000", p.MaxReceiveCount)
	}
	return nil
}

// Attribute renders the policy as the JSON string SQS expects.
func (p RedrivePolicy) Attribute() (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("queue: failed to marshal redrive policy: %w", err)
	}
	return string(b), nil
}

// ProvisionSpec names the queue pair and its redrive contract.
type ProvisionSpec struct {
	QueueName          string
	DeadLetterName     string
	MaxReceiveCount    int
	DLQRetentionPeriod int
	VisibilityTimeout  int
}

// Provisioned describes the queues after Provision.
type Provisioned struct {
	QueueURL      string
	QueueARN      string
	DeadLetterURL string
	DeadLetterARN string
	Policy        RedrivePolicy
}

// Provision creates (or adopts, since CreateQueue is idempotent for equal
// attributes) the dead-letter queue and the source queue, then attaches the
// redrive policy to the source queue.
func Provision(ctx context.Context, client SQSAdmin, spec ProvisionSpec) (*Provisioned, error) {
	if spec.QueueName == "" {
		spec.QueueName = DefaultQueueName
	}
	if spec.DeadLetterName == "" {
		spec.DeadLetterName = DefaultDeadLetterName
	}
	if spec.MaxReceiveCount == 0 {
		spec.MaxReceiveCount = DefaultMaxReceiveCount
	}
	if spec.DLQRetentionPeriod == 0 {
		spec.DLQRetentionPeriod = DefaultDLQRetentionPeriod
	}

	dlq, err := client.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(spec.DeadLetterName),
		Attributes: map[string]string{
			string(sqsTypes.QueueAttributeNameMessageRetentionPeriod): strconv.Itoa(spec.DLQRetentionPeriod),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("queue: failed to create dead-letter queue %s: %w", spec.DeadLetterName, err)
	}
	dlqURL := aws.ToString(dlq.QueueUrl)
	dlqARN, err := QueueARN(ctx, client, dlqURL)
	if err != nil {
		return nil, err
	}

	policy := RedrivePolicy{DeadLetterTargetARN: dlqARN, MaxReceiveCount: spec.MaxReceiveCount}
	policyAttr, err := policy.Attribute()
	if err != nil {
		return nil, err
	}

	srcAttrs := map[string]string{}
	if spec.VisibilityTimeout > 0 {
		srcAttrs[string(sqsTypes.QueueAttributeNameVisibilityTimeout)] = strconv.Itoa(spec.VisibilityTimeout)
	}
	src, err := client.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName:  aws.String(spec.QueueName),
		Attributes: srcAttrs,
	})
	if err != nil {
		return nil, fmt.Errorf("queue: failed to create queue %s: %w", spec.QueueName, err)
	}
	srcURL := aws.ToString(src.QueueUrl)

	// Set separately so re-running against an existing queue updates the policy.
	_, err = client.SetQueueAttributes(ctx, &sqs.SetQueueAttributesInput{
		QueueUrl: aws.String(srcURL),
		Attributes: map[string]string{
			string(sqsTypes.QueueAttributeNameRedrivePolicy): policyAttr,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("queue: failed to set redrive policy on %s: %w", srcURL, err)
	}

	srcARN, err := QueueARN(ctx, client, srcURL)
	if err != nil {
		return nil, err
	}

	return &Provisioned{
		QueueURL:      srcURL,
		QueueARN:      srcARN,
		DeadLetterURL: dlqURL,
		DeadLetterARN: dlqARN,
		Policy:        policy,
	}, nil
}

// QueueARN looks up a queue's ARN from its URL.
func QueueARN(ctx context.Context, client SQSAttributes, queueURL string) (string, error) {
	out, err := client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(queueURL),
		AttributeNames: []sqsTypes.QueueAttributeName{sqsTypes.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return "", fmt.Errorf("queue: failed to get attributes of %s: %w", queueURL, err)
	}
	arn := out.Attributes[string(sqsTypes.QueueAttributeNameQueueArn)]
	if arn == "" {
		return "", fmt.Errorf("queue: %s has no QueueArn attribute", queueURL)
	}
	return arn, nil
}
