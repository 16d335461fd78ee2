package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuedMessage_EncodePreservesBodyBytes(t *testing.T) {
	// Key order, spacing and HTML characters must survive; json.Marshal
	// would compact and escape them.
	raw := `{"b": 1, "a": "<x & y>"}`
	msg, err := NewQueuedMessage(InboundWebhookEnvelope{
		Headers: map[string]string{"verification-signature": "sig"},
		RawBody: raw,
	})
	require.NoError(t, err)

	data, err := msg.Encode()
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
	assert.Contains(t, string(data), raw)

	decoded, err := DecodeQueuedMessage(data)
	require.NoError(t, err)
	assert.Equal(t, raw, string(decoded.Body))
	assert.Equal(t, raw, string(decoded.SignedPayload()))
}

func TestQueuedMessage_KeepsSurroundingWhitespace(t *testing.T) {
	raw := "  {\"DirectCreditDetails\":[]}\r\n"
	msg, err := NewQueuedMessage(InboundWebhookEnvelope{RawBody: raw})
	require.NoError(t, err)

	data, err := msg.Encode()
	require.NoError(t, err)
	decoded, err := DecodeQueuedMessage(data)
	require.NoError(t, err)

	assert.Equal(t, `{"DirectCreditDetails":[]}`, string(decoded.Body))
	assert.Equal(t, raw, decoded.RawBody)
	assert.Equal(t, raw, string(decoded.SignedPayload()))
}

func TestQueuedMessage_WireShape(t *testing.T) {
	msg, err := NewQueuedMessage(InboundWebhookEnvelope{
		Headers: map[string]string{"verification-signature": "sig", "content-type": "application/json"},
		RawBody: `{"DirectCreditDetails":[]}`,
	})
	require.NoError(t, err)

	data, err := msg.Encode()
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Len(t, generic, 3)
	assert.IsType(t, map[string]any{}, generic["headers"])
	assert.IsType(t, map[string]any{}, generic["body"])
	assert.Equal(t, `{"DirectCreditDetails":[]}`, generic["rawBody"])
}

func TestNewQueuedMessage_Rejects(t *testing.T) {
	_, err := NewQueuedMessage(InboundWebhookEnvelope{RawBody: "   "})
	assert.ErrorIs(t, err, ErrEmptyBody)

	_, err = NewQueuedMessage(InboundWebhookEnvelope{RawBody: "{not json"})
	assert.Error(t, err)
}

func TestDecodeQueuedMessage_Errors(t *testing.T) {
	_, err := DecodeQueuedMessage([]byte("not json"))
	assert.Error(t, err)

	_, err = DecodeQueuedMessage([]byte(`{"headers":{}}`))
	assert.ErrorIs(t, err, ErrEmptyBody)

	_, err = DecodeQueuedMessage([]byte(`{"headers":{},"body":null}`))
	assert.ErrorIs(t, err, ErrEmptyBody)
}

func TestQueuedMessage_StringBodyIsNotUnwrapped(t *testing.T) {
	data := `{"headers":{},"body":"{\"DirectCreditDetails\":[]}"}`
	msg, err := DecodeQueuedMessage([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, `"{\"DirectCreditDetails\":[]}"`, string(msg.SignedPayload()))
}

func TestQueuedMessage_LegacyMessageSignsBody(t *testing.T) {
	msg, err := DecodeQueuedMessage([]byte(`{"headers":{},"body":{"a": 1}}`))
	require.NoError(t, err)

	assert.Empty(t, msg.RawBody)
	assert.Equal(t, `{"a": 1}`, string(msg.SignedPayload()))
}

func TestLookupHeader_CaseInsensitive(t *testing.T) {
	headers := map[string]string{"Verification-Signature": "abc"}

	v, ok := LookupHeader(headers, SignatureHeader)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	_, ok = LookupHeader(headers, "x-missing")
	assert.False(t, ok)

	msg := QueuedMessage{Headers: map[string]string{"VERIFICATION-SIGNATURE": "def"}}
	v, ok = msg.Header(SignatureHeader)
	assert.True(t, ok)
	assert.Equal(t, "def", v)
}
