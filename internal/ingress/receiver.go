// Package ingress accepts provider webhooks and queues them for the
// consumer. Only the presence of a signature is checked here; the
// cryptographic check happens after dequeue so a flood of forged calls
// cannot hold up queue admission.
package ingress

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"payhook/internal/core"
	"payhook/internal/logging"
	"payhook/internal/metrics"
	"payhook/internal/queue"
	"payhook/internal/types"
)

// Response messages.
const (
	MsgMissingSignatureHeader = "Missing verification-signature header"
	MsgEmptyBody              = "Request body cannot be empty"
	MsgInvalidJSON            = "Invalid JSON body"
	MsgBodyTooLarge           = "Request body too large"
	MsgQueued                 = "Webhook received and queued successfully"
)

// Enqueuer hands a message to the durable queue and returns its id.
// *queue.Publisher implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg types.QueuedMessage) (string, error)
}

// ReceiverConfig holds the Receiver's collaborators.
type ReceiverConfig struct {
	Enqueuer        Enqueuer
	Metrics         metrics.PipelineMetrics
	Logger          types.Logger
	SignatureHeader string
	MaxBodyBytes    int64
}

// Receiver validates inbound calls and enqueues exactly one message per
// accepted call. The 200 it returns means "accepted for processing".
type Receiver struct {
	enqueuer     Enqueuer
	metrics      metrics.PipelineMetrics
	logger       types.Logger
	header       string
	maxBodyBytes int64
}

// NewReceiver creates a Receiver.
func NewReceiver(cfg ReceiverConfig) *Receiver {
	r := &Receiver{
		enqueuer:     cfg.Enqueuer,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		header:       cfg.SignatureHeader,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
	if r.metrics == nil {
		r.metrics = metrics.Noop{}
	}
	if r.logger == nil {
		r.logger = logging.Discard{}
	}
	if r.header == "" {
		r.header = types.SignatureHeader
	}
	if r.maxBodyBytes <= 0 {
		r.maxBodyBytes = queue.MaxMessageBytes
	}
	return r
}

// Receive validates and enqueues one webhook call. Cheap rejections come
// first so malformed calls never cost an enqueue.
func (r *Receiver) Receive(ctx context.Context, headers map[string]string, rawBody string) core.Result {
	res := r.receive(ctx, headers, rawBody)
	r.metrics.RecordIngress(ctx, res.StatusCode)
	return res
}

func (r *Receiver) receive(ctx context.Context, headers map[string]string, rawBody string) core.Result {
	logger := r.loggerFor(ctx)

	if !r.hasSignature(headers) {
		logger.Warn("webhook rejected", "reason", MsgMissingSignatureHeader)
		return core.BadRequest(MsgMissingSignatureHeader)
	}
	if strings.TrimSpace(rawBody) == "" {
		logger.Warn("webhook rejected", "reason", MsgEmptyBody)
		return core.BadRequest(MsgEmptyBody)
	}

	msg, err := types.NewQueuedMessage(types.InboundWebhookEnvelope{Headers: headers, RawBody: rawBody})
	if err != nil {
		logger.Warn("webhook rejected", "reason", MsgInvalidJSON, "error", err.Error())
		return core.BadRequest(MsgInvalidJSON)
	}

	traceID := uuid.New().String()
	ctx = types.WithTraceID(ctx, traceID)
	logger = logger.With("trace_id", traceID)

	messageID, err := r.enqueuer.Enqueue(ctx, msg)
	if err != nil {
		if errors.Is(err, queue.ErrMessageTooLarge) {
			logger.Warn("webhook rejected", "reason", MsgBodyTooLarge, "error", err.Error())
			return core.FromError(types.NewAppError(types.ErrCodeBodyTooLarge, MsgBodyTooLarge, err))
		}
		logger.Error("failed to enqueue webhook", "error", err.Error())
		return core.FromError(types.NewAppError(types.ErrCodeUpstreamQueue, core.MsgInternalServerError, err))
	}

	logger.Info("webhook queued", "message_id", messageID, "bytes", len(msg.Body))
	return core.Success(MsgQueued, nil)
}

func (r *Receiver) hasSignature(headers map[string]string) bool {
	sig, ok := types.LookupHeader(headers, r.header)
	return ok && strings.TrimSpace(sig) != ""
}

// loggerFor prefers the request-scoped logger installed by the HTTP chassis.
func (r *Receiver) loggerFor(ctx context.Context) types.Logger {
	if l := types.LoggerFromContext(ctx); l != nil {
		return l
	}
	return r.logger.With("request_id", types.GetRequestID(ctx))
}
