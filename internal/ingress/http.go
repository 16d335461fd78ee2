package ingress

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"

	"payhook/internal/core"
	"payhook/internal/types"
)

// WebhookPath is where the provider posts notifications.
const WebhookPath = "/webhook"

// RegisterRoutes mounts POST /webhook. It has the core.RouteRegistrar shape.
func (r *Receiver) RegisterRoutes(router chi.Router) {
	router.Post(WebhookPath, r.HandleWebhook)
}

// HandleWebhook serves the webhook over net/http. Unsigned calls are refused
// before the body is read.
func (r *Receiver) HandleWebhook(w http.ResponseWriter, req *http.Request) {
	headers := flattenHeaders(req.Header)
	if !r.hasSignature(headers) {
		r.reject(req.Context(), types.ErrCodeMissingSignature, MsgMissingSignatureHeader, nil).Write(w, req)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, r.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			r.reject(req.Context(), types.ErrCodeBodyTooLarge, MsgBodyTooLarge, err).Write(w, req)
			return
		}
		r.reject(req.Context(), types.ErrCodeInvalidJSON, MsgInvalidJSON, err).Write(w, req)
		return
	}

	r.Receive(req.Context(), headers, string(body)).Write(w, req)
}

// HandleAPIGateway serves the webhook as an API Gateway proxy Lambda.
func (r *Receiver) HandleAPIGateway(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if req.RequestContext.RequestID != "" {
		ctx = types.WithRequestID(ctx, req.RequestContext.RequestID)
	}

	headers := make(map[string]string, len(req.Headers)+len(req.MultiValueHeaders))
	for k, vs := range req.MultiValueHeaders {
		headers[strings.ToLower(k)] = strings.Join(vs, ", ")
	}
	for k, v := range req.Headers {
		headers[strings.ToLower(k)] = v
	}
	if !r.hasSignature(headers) {
		return r.reject(ctx, types.ErrCodeMissingSignature, MsgMissingSignatureHeader, nil).APIGateway(), nil
	}

	body := req.Body
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return r.reject(ctx, types.ErrCodeInvalidJSON, MsgInvalidJSON, err).APIGateway(), nil
		}
		body = string(decoded)
	}
	if int64(len(body)) > r.maxBodyBytes {
		return r.reject(ctx, types.ErrCodeBodyTooLarge, MsgBodyTooLarge, nil).APIGateway(), nil
	}

	return r.Receive(ctx, headers, body).APIGateway(), nil
}

// reject renders a failure caught before Receive runs.
func (r *Receiver) reject(ctx context.Context, code types.ErrorCode, msg string, err error) core.Result {
	args := []any{"reason", msg}
	if err != nil {
		args = append(args, "error", err.Error())
	}
	r.loggerFor(ctx).Warn("webhook rejected", args...)

	res := core.FromError(types.NewAppError(code, msg, err))
	r.metrics.RecordIngress(ctx, res.StatusCode)
	return res
}

// flattenHeaders lower-cases names the way API Gateway delivers them and
// joins repeated values.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		out[strings.ToLower(k)] = strings.Join(vs, ", ")
	}
	return out
}
