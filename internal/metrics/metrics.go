// Package metrics records pipeline telemetry. CloudWatch is used under
// Lambda; Prometheus backs the long-running servers.
package metrics

import (
	"context"
	"strconv"
	"time"

	"payhook/internal/types"
)

// OutcomeSuccess is the outcome label for messages that produced transactions.
const OutcomeSuccess = "Success"

// PipelineMetrics is implemented by every metrics backend. Recording never
// fails the caller; backend errors are logged.
type PipelineMetrics interface {
	RecordIngress(ctx context.Context, status int)
	RecordOutcome(ctx context.Context, kind types.FailureKind)
	RecordTransactions(ctx context.Context, n int)
	RecordQueueLag(ctx context.Context, lag time.Duration)
	RecordProcessingDuration(ctx context.Context, d time.Duration)
}

// OutcomeLabel maps a failure kind to its metric dimension value.
func OutcomeLabel(kind types.FailureKind) string {
	if kind == types.KindNone {
		return OutcomeSuccess
	}
	return string(kind)
}

func statusLabel(status int) string {
	return strconv.Itoa(status)
}

// Noop discards everything.
type Noop struct{}

func (Noop) RecordIngress(context.Context, int)                      {}
func (Noop) RecordOutcome(context.Context, types.FailureKind)        {}
func (Noop) RecordTransactions(context.Context, int)                 {}
func (Noop) RecordQueueLag(context.Context, time.Duration)           {}
func (Noop) RecordProcessingDuration(context.Context, time.Duration) {}

var _ PipelineMetrics = Noop{}
