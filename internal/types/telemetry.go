package types

// Telemetry metric names. All metrics backends MUST use these constants.
const (
	// Metric Names
	MetricWebhookReceived     = "WebhookReceived"
	MetricMessageOutcome      = "MessageOutcome"
	MetricTransactionsEmitted = "TransactionsEmitted"
	MetricQueueLag            = "QueueLag"
	MetricProcessingDuration  = "ProcessingDuration"

	// Dimension Keys
	DimStatus  = "Status"
	DimOutcome = "Outcome"

	// Metric Namespace
	MetricNamespace = "Payhook"
)
