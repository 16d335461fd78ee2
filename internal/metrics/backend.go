package metrics

import (
	"fmt"

	"payhook/internal/config"
	"payhook/internal/types"
)

// Backend names accepted by METRICS_BACKEND.
const (
	BackendCloudWatch = "cloudwatch"
	BackendPrometheus = "prometheus"
	BackendNone       = "none"
)

// Backend is the selected recorder. Prometheus is non-nil only for the
// prometheus backend so callers can mount its handler and request collector.
type Backend struct {
	Pipeline   PipelineMetrics
	Prometheus *PrometheusMetrics
}

// NewBackend builds the recorder named by cfg.Backend. cw is only used for
// the cloudwatch backend.
func NewBackend(cfg config.MetricsConfig, cw CloudWatchClient, logger types.Logger) (Backend, error) {
	switch cfg.Backend {
	case BackendCloudWatch:
		if cw == nil {
			return Backend{}, fmt.Errorf("metrics: cloudwatch backend requires a client")
		}
		return Backend{Pipeline: NewCloudWatchMetrics(cw, cfg.Namespace, logger)}, nil
	case BackendPrometheus:
		p := NewPrometheusMetrics(cfg.Namespace)
		return Backend{Pipeline: p, Prometheus: p}, nil
	case BackendNone, "":
		return Backend{Pipeline: Noop{}}, nil
	default:
		return Backend{}, fmt.Errorf("metrics: unknown backend %q", cfg.Backend)
	}
}
