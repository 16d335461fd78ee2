package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEA"

func TestSecretString_Redaction(t *testing.T) {
	s := SecretString(testSecret)

	assert.Equal(t, RedactedPlaceholder, s.String())
	assert.NotContains(t, fmt.Sprintf("%s %v %+v", s, s, s), testSecret)

	data, err := json.Marshal(struct {
		Key SecretString `json:"key"`
	}{Key: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"***REDACTED***"}`, string(data))
}

func TestSecretString_SlogAttribute(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger.Info("config loaded", "public_key", SecretString(testSecret))

	assert.NotContains(t, buf.String(), testSecret)
	assert.Contains(t, buf.String(), RedactedPlaceholder)
}

func TestSecretString_Unmask(t *testing.T) {
	assert.Equal(t, testSecret, SecretString(testSecret).Unmask())
	assert.True(t, SecretString("").IsEmpty())
	assert.False(t, SecretString(testSecret).IsEmpty())
}
