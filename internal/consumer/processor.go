// Package consumer turns queued webhook messages into transactions.
//
// Each message moves through Parse, Authenticate, Transform and Deliver.
// The resulting Outcome is dispatched explicitly: MalformedRequest,
// Unauthorized and ValidationFailure are terminal (logged and acknowledged),
// TransientInfrastructureFailure is handed back to SQS for redrive.
package consumer

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"payhook/internal/core"
	"payhook/internal/logging"
	"payhook/internal/metrics"
	"payhook/internal/types"
)

// Consumer-side messages. The success message is what the provider's
// integration guide shows for a processed notification.
const (
	MsgMissingSignature = "Missing verification signature"
	MsgInvalidSignature = "Invalid signature"
	MsgProcessed        = "Trigger/event received at webhook & processed successfully!"
	MsgCorruptMessage   = "Queued message could not be decoded"
)

// SignatureVerifier is satisfied by *signature.Verifier.
type SignatureVerifier interface {
	Verify(payload []byte, signature string) bool
}

// PayloadTransformer is satisfied by *transform.Transformer.
type PayloadTransformer interface {
	Transform(ctx context.Context, body any) types.Result[[]types.Transaction]
}

// Outcome is the terminal state of one message.
type Outcome struct {
	MessageID    string
	Transactions []types.Transaction
	Err          *types.AppError
	// Response is the envelope a synchronous caller would have received.
	Response core.Result
}

// Kind is KindNone on success.
func (o Outcome) Kind() types.FailureKind {
	if o.Err == nil {
		return types.KindNone
	}
	return o.Err.Kind()
}

// Retry reports whether the message should go back to SQS for redrive.
func (o Outcome) Retry() bool {
	return o.Kind().Retryable()
}

// ProcessorConfig holds the Processor's collaborators.
type ProcessorConfig struct {
	Verifier        SignatureVerifier
	Transformer     PayloadTransformer
	Sink            Sink
	Metrics         metrics.PipelineMetrics
	Logger          types.Logger
	SignatureHeader string
}

// Processor runs the per-message state machine. It holds no per-message
// state and is safe for concurrent use.
type Processor struct {
	verifier    SignatureVerifier
	transformer PayloadTransformer
	sink        Sink
	metrics     metrics.PipelineMetrics
	logger      types.Logger
	header      string
}

// NewProcessor creates a Processor. Nil Sink, Metrics and Logger default to
// no-ops; an empty header means types.SignatureHeader.
func NewProcessor(cfg ProcessorConfig) *Processor {
	p := &Processor{
		verifier:    cfg.Verifier,
		transformer: cfg.Transformer,
		sink:        cfg.Sink,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		header:      cfg.SignatureHeader,
	}
	if p.sink == nil {
		p.sink = MultiSink(nil)
	}
	if p.metrics == nil {
		p.metrics = metrics.Noop{}
	}
	if p.logger == nil {
		p.logger = logging.Discard{}
	}
	if p.header == "" {
		p.header = types.SignatureHeader
	}
	return p
}

// Process runs one queued message to its outcome, then logs and records it.
// It never panics.
func (p *Processor) Process(ctx context.Context, messageID, body string) Outcome {
	out := p.safeRun(ctx, body)
	out.MessageID = messageID
	if out.Err == nil {
		out.Response = core.Success(MsgProcessed, out.Transactions)
	} else if out.Retry() {
		out.Response = core.ServerError(core.MsgProcessingFailed)
	} else {
		out.Response = core.FromError(out.Err)
	}
	p.dispatch(ctx, out)
	return out
}

func (p *Processor) safeRun(ctx context.Context, body string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Err: types.NewAppError(types.ErrCodeInternalUnexpected, core.MsgProcessingFailed,
				fmt.Errorf("panic: %v", r)).WithDetails(map[string]any{"stack": string(debug.Stack())})}
		}
	}()
	return p.run(ctx, body)
}

func (p *Processor) run(ctx context.Context, body string) Outcome {
	// Parse
	msg, err := types.DecodeQueuedMessage([]byte(body))
	if err != nil {
		return failed(types.ErrCodeInternalCorruptData, MsgCorruptMessage, err)
	}

	// Authenticate
	sig, ok := msg.Header(p.header)
	if !ok || strings.TrimSpace(sig) == "" {
		return failed(types.ErrCodeMissingSignature, MsgMissingSignature, nil)
	}
	payload := msg.SignedPayload()
	if !p.verifier.Verify(payload, sig) {
		return failed(types.ErrCodeInvalidSignature, MsgInvalidSignature, nil)
	}

	// Transform
	res := p.transformer.Transform(ctx, payload)
	if !res.OK() {
		return Outcome{Err: res.Err}
	}

	// Deliver
	if err := p.sink.Deliver(ctx, res.Value); err != nil {
		return failed(types.ErrCodeUpstreamSink, core.MsgProcessingFailed, err)
	}
	return Outcome{Transactions: res.Value}
}

func failed(code types.ErrorCode, msg string, err error) Outcome {
	return Outcome{Err: types.NewAppError(code, msg, err)}
}

// dispatch maps each kind to its handling. Keep this exhaustive.
func (p *Processor) dispatch(ctx context.Context, out Outcome) {
	logger := p.logger
	if l := types.LoggerFromContext(ctx); l != nil {
		logger = l
	}
	logger = logger.With("message_id", out.MessageID)

	kind := out.Kind()
	p.metrics.RecordOutcome(ctx, kind)

	switch kind {
	case types.KindNone:
		p.metrics.RecordTransactions(ctx, len(out.Transactions))
		logger.Info(MsgProcessed, "transaction_count", len(out.Transactions))

	case types.KindMalformedRequest, types.KindUnauthorized, types.KindValidationFailure:
		logger.Warn("message rejected; acknowledging without retry",
			"outcome", string(kind),
			"code", string(out.Err.Code),
			"reason", out.Err.Message,
			"status", out.Response.StatusCode,
		)

	case types.KindTransientInfraFailure:
		args := []any{
			"outcome", string(kind),
			"code", string(out.Err.Code),
			"error", out.Err.Error(),
		}
		if stack, ok := out.Err.Details["stack"]; ok {
			args = append(args, "stack", stack)
		}
		logger.Error("message processing failed; returning to queue for redrive", args...)

	default:
		logger.Error("unclassified outcome", "outcome", string(kind))
	}
}
