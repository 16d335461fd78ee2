package queue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Probe reports whether a queue is reachable. It implements core.HealthProbe.
type Probe struct {
	name     string
	client   SQSAttributes
	queueURL string
}

// NewProbe creates a Probe named name for queueURL.
func NewProbe(name string, client SQSAttributes, queueURL string) *Probe {
	return &Probe{name: name, client: client, queueURL: queueURL}
}

func (p *Probe) Name() string { return p.name }

func (p *Probe) Check(ctx context.Context) error {
	_, err := p.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(p.queueURL),
		AttributeNames: []sqsTypes.QueueAttributeName{sqsTypes.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return fmt.Errorf("queue: %s unreachable: %w", p.name, err)
	}
	return nil
}
