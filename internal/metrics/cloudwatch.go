package metrics

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"payhook/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics publishes one datum per call to the configured namespace.
//
// Metrics emitted:
//   - WebhookReceived: Dims {Status} -- ingress response status
//   - MessageOutcome: Dims {Outcome} -- consumer dispatch result
//   - TransactionsEmitted: No dims -- records handed to the sink
//   - QueueLag: No dims -- SentTimestamp to processing start
//   - ProcessingDuration: No dims -- consumer time per message
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

var _ PipelineMetrics = (*CloudWatchMetrics)(nil)

// NewCloudWatchMetrics creates a CloudWatchMetrics. An empty namespace
// falls back to types.MetricNamespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

func (m *CloudWatchMetrics) RecordIngress(ctx context.Context, status int) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricWebhookReceived),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{
				Name:  aws.String(types.DimStatus),
				Value: aws.String(statusLabel(status)),
			},
		},
	})
}

func (m *CloudWatchMetrics) RecordOutcome(ctx context.Context, kind types.FailureKind) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricMessageOutcome),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{
				Name:  aws.String(types.DimOutcome),
				Value: aws.String(OutcomeLabel(kind)),
			},
		},
	})
}

func (m *CloudWatchMetrics) RecordTransactions(ctx context.Context, n int) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricTransactionsEmitted),
		Value:      aws.Float64(float64(n)),
		Unit:       cwtypes.StandardUnitCount,
	})
}

// RecordQueueLag is recorded in milliseconds for CloudWatch precision.
func (m *CloudWatchMetrics) RecordQueueLag(ctx context.Context, lag time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricQueueLag),
		Value:      aws.Float64(float64(lag.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	})
}

func (m *CloudWatchMetrics) RecordProcessingDuration(ctx context.Context, d time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricProcessingDuration),
		Value:      aws.Float64(float64(d.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	})
}

func (m *CloudWatchMetrics) put(ctx context.Context, datum cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil && m.logger != nil {
		m.logger.Error("failed to record metric",
			"error", err.Error(),
			"metric", aws.ToString(datum.MetricName),
		)
	}
}
