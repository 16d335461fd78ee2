package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SignatureHeader is the header the provider signs its webhook bodies under.
const SignatureHeader = "verification-signature"

// SQS message attribute keys set by the ingress.
const (
	AttrTraceID       = "trace_id"
	AttrSource        = "source"
	AttrTransactionID = "transaction_id"
)

// ErrEmptyBody is returned when a message is built or decoded without a body.
var ErrEmptyBody = errors.New("message body is empty")

// InboundWebhookEnvelope is the per-call view of an inbound webhook. It lives
// only long enough to be turned into a QueuedMessage.
type InboundWebhookEnvelope struct {
	Headers map[string]string
	RawBody string
}

// QueuedMessage is the SQS payload carried between ingress and consumer.
//
// Wire format: {"headers": {...}, "body": <JSON>, "rawBody": "<string>"}.
// Body is the provider's JSON document, trimmed and embedded as-is so the
// queue and DLQ stay readable. RawBody is the untouched request body, kept
// as a JSON string so surrounding whitespace and encoding survive; the
// signature is checked against it. Use Encode rather than json.Marshal: the
// encoder compacts embedded raw values.
type QueuedMessage struct {
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body"`
	RawBody string            `json:"rawBody,omitempty"`
}

// NewQueuedMessage builds a QueuedMessage from an inbound envelope. The body
// must be a valid JSON document.
func NewQueuedMessage(env InboundWebhookEnvelope) (QueuedMessage, error) {
	body := bytes.TrimSpace([]byte(env.RawBody))
	if len(body) == 0 {
		return QueuedMessage{}, ErrEmptyBody
	}
	if !json.Valid(body) {
		return QueuedMessage{}, fmt.Errorf("message body is not valid JSON")
	}
	headers := make(map[string]string, len(env.Headers))
	for k, v := range env.Headers {
		headers[k] = v
	}
	return QueuedMessage{Headers: headers, Body: body, RawBody: env.RawBody}, nil
}

// Encode renders the wire form, embedding Body byte-for-byte.
func (m QueuedMessage) Encode() ([]byte, error) {
	if len(m.Body) == 0 {
		return nil, ErrEmptyBody
	}
	headers := m.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	hb, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("encode headers: %w", err)
	}
	var rb []byte
	if m.RawBody != "" {
		if rb, err = json.Marshal(m.RawBody); err != nil {
			return nil, fmt.Errorf("encode raw body: %w", err)
		}
	}

	var buf bytes.Buffer
	buf.Grow(len(hb) + len(m.Body) + len(rb) + 34)
	buf.WriteString(`{"headers":`)
	buf.Write(hb)
	buf.WriteString(`,"body":`)
	buf.Write(m.Body)
	if rb != nil {
		buf.WriteString(`,"rawBody":`)
		buf.Write(rb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeQueuedMessage parses the wire form. Body bytes are kept verbatim.
func DecodeQueuedMessage(data []byte) (QueuedMessage, error) {
	var m QueuedMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return QueuedMessage{}, fmt.Errorf("decode queued message: %w", err)
	}
	if len(m.Body) == 0 || bytes.Equal(m.Body, []byte("null")) {
		return QueuedMessage{}, ErrEmptyBody
	}
	return m, nil
}

// Header returns the value of the named header, matched case-insensitively.
func (m QueuedMessage) Header(name string) (string, bool) {
	return LookupHeader(m.Headers, name)
}

// SignedPayload returns the bytes the provider signed. Messages queued
// without a rawBody fall back to the embedded body, verbatim.
func (m QueuedMessage) SignedPayload() []byte {
	if m.RawBody != "" {
		return []byte(m.RawBody)
	}
	return m.Body
}

// LookupHeader finds a header by name regardless of case. API Gateway and
// net/http disagree on canonical casing.
func LookupHeader(headers map[string]string, name string) (string, bool) {
	if v, ok := headers[name]; ok {
		return v, true
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
