package consumer

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"payhook/internal/logging"
	"payhook/internal/metrics"
	"payhook/internal/types"
)

// Handler adapts the Processor to the SQS event contract. Each record is
// processed independently; retryable outcomes are reported as batch item
// failures so only those messages return to the queue. The event source
// mapping must have ReportBatchItemFailures enabled.
type Handler struct {
	processor *Processor
	metrics   metrics.PipelineMetrics
	logger    types.Logger
	now       func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(processor *Processor, m metrics.PipelineMetrics, logger types.Logger) *Handler {
	if m == nil {
		m = metrics.Noop{}
	}
	if logger == nil {
		logger = logging.Discard{}
	}
	return &Handler{
		processor: processor,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Handle processes an SQS event. The returned error is always nil: failures
// are expressed per item so one bad record cannot fail its batch-mates.
func (h *Handler) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range event.Records {
		if out := h.handleRecord(ctx, record); out.Retry() {
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

func (h *Handler) handleRecord(ctx context.Context, record events.SQSMessage) Outcome {
	start := h.now()

	traceID := ""
	if attr, ok := record.MessageAttributes[types.AttrTraceID]; ok && attr.StringValue != nil {
		traceID = *attr.StringValue
	}

	logger := h.logger.With(
		"request_id", record.MessageId,
		"trace_id", traceID,
		"receive_count", record.Attributes["ApproximateReceiveCount"],
	)
	ctx = types.WithRequestID(ctx, record.MessageId)
	ctx = types.WithTraceID(ctx, traceID)
	ctx = types.WithLogger(ctx, logger)

	if sent, ok := record.Attributes["SentTimestamp"]; ok {
		if sentAt, err := parseMillisTimestamp(sent); err == nil {
			h.metrics.RecordQueueLag(ctx, start.Sub(sentAt))
		}
	}

	out := h.processor.Process(ctx, record.MessageId, record.Body)

	elapsed := h.now().Sub(start)
	h.metrics.RecordProcessingDuration(ctx, elapsed)
	logger.Info("message handled",
		"outcome", metrics.OutcomeLabel(out.Kind()),
		"status", out.Response.StatusCode,
		"execution_ms", elapsed.Milliseconds(),
	)
	return out
}

// parseMillisTimestamp parses an SQS SentTimestamp (epoch milliseconds).
func parseMillisTimestamp(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
