package consumer

import (
	"context"
	"errors"

	"payhook/internal/logging"
	"payhook/internal/types"
)

// Sink receives the transactions produced from one message. Deliver may be
// called again with the same records after a redelivery; deduplication by
// transaction id is the sink's concern.
type Sink interface {
	Deliver(ctx context.Context, txs []types.Transaction) error
}

// LogSink writes each transaction to the log.
type LogSink struct {
	logger types.Logger
}

// NewLogSink creates a LogSink. A nil logger discards.
func NewLogSink(logger types.Logger) *LogSink {
	if logger == nil {
		logger = logging.Discard{}
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Deliver(ctx context.Context, txs []types.Transaction) error {
	logger := s.logger
	if l := types.LoggerFromContext(ctx); l != nil {
		logger = l
	}
	if logger == nil {
		logger = logging.Discard{}
	}
	for _, tx := range txs {
		logger.Info("transaction emitted",
			"transaction_id", tx.ID,
			"external_id", tx.ExternalID,
			"amount", tx.Amount.String(),
			"to", tx.To,
			"reference", tx.Reference,
			"created_at", tx.CreatedAt,
		)
	}
	return nil
}

// MultiSink delivers to every sink in order and joins their errors. Later
// sinks still run when an earlier one fails.
type MultiSink []Sink

func (m MultiSink) Deliver(ctx context.Context, txs []types.Transaction) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(ctx, txs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Sink = (*LogSink)(nil)
	_ Sink = MultiSink(nil)
)
