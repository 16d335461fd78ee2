package types

import "log/slog"

// RedactedPlaceholder replaces secret values in logs and JSON.
const RedactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds key material or credentials. Formatting, JSON encoding
// and slog attributes all render a placeholder; call Unmask for the raw value.
type SecretString string

func (s SecretString) String() string {
	return RedactedPlaceholder
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// LogValue implements slog.LogValuer.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(RedactedPlaceholder)
}

// IsEmpty reports whether no secret was configured.
func (s SecretString) IsEmpty() bool {
	return s == ""
}

// Unmask returns the raw plaintext value of the secret.
func (s SecretString) Unmask() string {
	return string(s)
}
