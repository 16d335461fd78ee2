// Package transform turns a provider direct-credit notification into
// canonical transaction records.
//
// Transform runs three stages, each short-circuiting:
//
//	Parse    body (string, bytes or decoded map) -> map[string]any
//	Validate DirectCreditDetails present, non-empty, every item complete
//	Map      each item -> types.Transaction, checked against its own tags
//
// Parse and Validate failures are returned as classified errors. A Map
// failure is logged and yields an empty slice: the payload validated, but
// nothing could be emitted from it.
package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"

	"payhook/internal/logging"
	"payhook/internal/types"
)

// Rejection messages returned to the caller inside the AppError.
const (
	MsgInvalidJSON        = "Invalid JSON body"
	MsgMissingDetails     = "Missing or invalid DirectCreditDetails array"
	MsgMissingItemFields  = "Missing required fields in DirectCreditDetails item"
	MsgMissingAccountInfo = "Missing required fields in DirectCreditDetails item: AccountNumber or AccountName"
)

// DetailsField is the line-item array in the provider payload.
const DetailsField = "DirectCreditDetails"

// Transformer is safe for concurrent use.
type Transformer struct {
	clock    types.Clock
	logger   types.Logger
	validate *validator.Validate
}

// New returns a Transformer. A nil clock means RealClock.
func New(clock types.Clock, logger types.Logger) *Transformer {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Transformer{
		clock:    clock,
		logger:   logger,
		validate: validator.New(),
	}
}

// Transform parses, validates and maps body. On success the value is never
// nil; it is empty when mapping failed.
func (t *Transformer) Transform(ctx context.Context, body any) types.Result[[]types.Transaction] {
	logger := t.loggerFor(ctx)

	payload, appErr := parsePayload(body)
	if appErr != nil {
		return types.Fail[[]types.Transaction](appErr)
	}

	items, appErr := validatePayload(payload)
	if appErr != nil {
		return types.Fail[[]types.Transaction](appErr)
	}

	now := t.clock.Now().UTC()
	out := make([]types.Transaction, 0, len(items))
	for i, item := range items {
		tx, err := t.mapItem(item, now)
		if err != nil {
			logger.Error("failed to transform direct credit item; emitting no transactions",
				"item_index", i,
				"item_count", len(items),
				"error", err.Error(),
			)
			return types.Ok([]types.Transaction{})
		}
		out = append(out, tx)
	}
	return types.Ok(out)
}

func (t *Transformer) loggerFor(ctx context.Context) types.Logger {
	if l := types.LoggerFromContext(ctx); l != nil {
		return l
	}
	if t.logger != nil {
		return t.logger
	}
	return logging.Discard{}
}

// parsePayload accepts raw JSON as string or bytes, a decoded map, or any
// other value that marshals to JSON. A JSON string holding JSON is unwrapped
// once.
func parsePayload(body any) (map[string]any, *types.AppError) {
	var decoded any
	switch b := body.(type) {
	case map[string]any:
		return b, nil
	case nil:
		return nil, types.NewAppError(types.ErrCodeInvalidJSON, MsgInvalidJSON, errors.New("body is nil"))
	case string:
		v, err := decodeJSON([]byte(b))
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInvalidJSON, MsgInvalidJSON, err)
		}
		decoded = v
	case []byte:
		v, err := decodeJSON(b)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInvalidJSON, MsgInvalidJSON, err)
		}
		decoded = v
	case json.RawMessage:
		v, err := decodeJSON(b)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInvalidJSON, MsgInvalidJSON, err)
		}
		decoded = v
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInvalidJSON, MsgInvalidJSON, err)
		}
		v, err := decodeJSON(raw)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInvalidJSON, MsgInvalidJSON, err)
		}
		decoded = v
	}

	if s, ok := decoded.(string); ok {
		v, err := decodeJSON([]byte(s))
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInvalidJSON, MsgInvalidJSON, err)
		}
		decoded = v
	}

	payload, ok := decoded.(map[string]any)
	if !ok {
		return nil, types.NewAppError(types.ErrCodeValidationPayload, MsgMissingDetails,
			fmt.Errorf("payload is %T, not an object", decoded))
	}
	return payload, nil
}

// decodeJSON decodes a single JSON document, keeping numbers as json.Number.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON document")
	}
	return v, nil
}

// validatePayload enforces the all-or-nothing batch rules and returns the
// line items.
func validatePayload(payload map[string]any) ([]map[string]any, *types.AppError) {
	raw, ok := payload[DetailsField].([]any)
	if !ok || len(raw) == 0 {
		return nil, types.NewAppError(types.ErrCodeValidationPayload, MsgMissingDetails, nil)
	}

	items := make([]map[string]any, 0, len(raw))
	for i, entry := range raw {
		item, _ := entry.(map[string]any)
		if !truthy(item["TransactionId"]) || !truthy(item["Amount"]) ||
			!truthy(item["DateTime"]) || !truthy(item["LodgementRef"]) {
			return nil, types.NewAppError(types.ErrCodeValidationPayload, MsgMissingItemFields, nil).
				WithDetails(map[string]any{"item_index": i})
		}
		if !truthy(item["AccountNumber"]) || !truthy(item["AccountName"]) {
			return nil, types.NewAppError(types.ErrCodeValidationPayload, MsgMissingAccountInfo, nil).
				WithDetails(map[string]any{"item_index": i})
		}
		items = append(items, item)
	}
	return items, nil
}
