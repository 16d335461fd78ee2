package transform

import (
	"encoding/json"
	"fmt"
	"maps"
	"math/big"
	"strconv"
	"strings"
	"time"

	"payhook/internal/types"
)

// metadataFields are copied verbatim into Transaction.Metadata when present.
var metadataFields = []string{
	"Bsb",
	"AccountName",
	"TransactionCode",
	"RemitterName",
	"NameOfUserSupplyingFile",
	"NumberOfUserSupplyingFile",
	"DescriptionOfEntriesOnFile",
	"Indicator",
	"WithholdingTaxAmount",
	"SourceBsb",
}

// Zone-less layouts are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *Transformer) mapItem(item map[string]any, now time.Time) (types.Transaction, error) {
	id, err := scalarString(item["TransactionId"])
	if err != nil {
		return types.Transaction{}, fmt.Errorf("TransactionId: %w", err)
	}
	amount, err := amountNumber(item["Amount"])
	if err != nil {
		return types.Transaction{}, fmt.Errorf("Amount: %w", err)
	}
	createdAt, err := parseTimestamp(item["DateTime"])
	if err != nil {
		return types.Transaction{}, fmt.Errorf("DateTime: %w", err)
	}
	externalID, err := scalarString(item["BatchId"])
	if err != nil {
		return types.Transaction{}, fmt.Errorf("BatchId: %w", err)
	}
	from, err := scalarString(item["SourceAccountNumber"])
	if err != nil {
		return types.Transaction{}, fmt.Errorf("SourceAccountNumber: %w", err)
	}
	to, err := scalarString(item["AccountNumber"])
	if err != nil {
		return types.Transaction{}, fmt.Errorf("AccountNumber: %w", err)
	}
	reference, err := scalarString(item["LodgementRef"])
	if err != nil {
		return types.Transaction{}, fmt.Errorf("LodgementRef: %w", err)
	}

	metadata := make(map[string]any, len(metadataFields))
	for _, key := range metadataFields {
		if v, ok := item[key]; ok {
			metadata[key] = v
		}
	}

	tx := types.Transaction{
		ID:         id,
		Amount:     amount,
		CreatedAt:  createdAt,
		UpdatedAt:  now,
		ExternalID: externalID,
		From:       from,
		To:         to,
		Reference:  reference,
		Status:     types.TransactionStatusCompleted,
		Type:       types.TransactionTypeInboundDirectCredit,
		Metadata:   metadata,
		Info:       types.TransactionInfo{RawDetail: maps.Clone(item)},
	}
	if err := t.validate.Struct(tx); err != nil {
		return types.Transaction{}, fmt.Errorf("invalid transaction: %w", err)
	}
	return tx, nil
}

// truthy reports whether v would pass a JavaScript-style "!v" check: nil,
// empty string, zero and false are all missing.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	case float64:
		return x != 0
	case float32:
		return x != 0
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x) != "0"
	default:
		return true
	}
}

// scalarString stringifies a JSON scalar. Absent values are empty. Numbers
// are written without an exponent so account numbers survive intact.
func scalarString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case json.Number:
		return plainNumber(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x), nil
	default:
		return "", fmt.Errorf("expected a scalar, got %T", v)
	}
}

func plainNumber(n json.Number) (string, error) {
	s := n.String()
	if !strings.ContainsAny(s, "eE") {
		return s, nil
	}
	f, _, err := big.ParseFloat(s, 10, 256, big.ToNearestEven)
	if err != nil {
		return "", fmt.Errorf("invalid number %q: %w", s, err)
	}
	return f.Text('f', -1), nil
}

// amountNumber keeps the amount's exact decimal text.
func amountNumber(v any) (json.Number, error) {
	switch x := v.(type) {
	case json.Number:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		if !isNumberLiteral(s) {
			return "", fmt.Errorf("%q is not a number", x)
		}
		return json.Number(s), nil
	case bool, nil, map[string]any, []any:
		return "", fmt.Errorf("expected a number, got %T", v)
	default:
		s, err := scalarString(x)
		if err != nil {
			return "", err
		}
		return json.Number(s), nil
	}
}

func isNumberLiteral(s string) bool {
	if s == "" || (s[0] != '-' && (s[0] < '0' || s[0] > '9')) {
		return false
	}
	var n json.Number
	return json.Unmarshal([]byte(s), &n) == nil
}

// parseTimestamp accepts RFC 3339, zone-less ISO forms (UTC), or epoch
// milliseconds.
func parseTimestamp(v any) (time.Time, error) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", x)
	case json.Number:
		ms, err := x.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid epoch milliseconds %q: %w", x, err)
		}
		return time.UnixMilli(ms).UTC(), nil
	case float64:
		return time.UnixMilli(int64(x)).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("expected a timestamp, got %T", v)
	}
}
