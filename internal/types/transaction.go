package types

import (
	"encoding/json"
	"time"
)

// TransactionStatus is the lifecycle state of a canonical transaction.
type TransactionStatus string

const TransactionStatusCompleted TransactionStatus = "Completed"

// TransactionType identifies what produced a canonical transaction.
type TransactionType string

const TransactionTypeInboundDirectCredit TransactionType = "InboundDirectCredit"

// Transaction is the canonical record emitted for each provider line item.
// It is built once by the transformer and handed by value to the sink.
type Transaction struct {
	ID         string            `json:"id" validate:"required"`
	Amount     json.Number       `json:"amount" validate:"required"`
	CreatedAt  time.Time         `json:"createdAt" validate:"required"`
	UpdatedAt  time.Time         `json:"updatedAt" validate:"required"`
	ExternalID string            `json:"externalId,omitempty"`
	From       string            `json:"from,omitempty"`
	To         string            `json:"to" validate:"required"`
	Reference  string            `json:"reference" validate:"required"`
	Status     TransactionStatus `json:"status" validate:"required,oneof=Completed"`
	Type       TransactionType   `json:"type" validate:"required,oneof=InboundDirectCredit"`
	Metadata   map[string]any    `json:"metadata"`
	Info       TransactionInfo   `json:"info"`
}

// TransactionInfo retains the untransformed source for audit.
type TransactionInfo struct {
	RawDetail map[string]any `json:"rawDetail"`
}
