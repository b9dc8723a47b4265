package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

const namespace = "kas"

// breakerGauge exports the current circuit state per operation:
// 0 closed, 1 half-open, 2 open.
type breakerGauge struct {
	service string
	state   *prometheus.GaugeVec
}

func newBreakerGauge(service string) *breakerGauge {
	return &breakerGauge{
		service: service,
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "resilience",
				Name:      "breaker_state",
				Help:      "Circuit breaker state by operation (0 closed, 1 half-open, 2 open).",
			},
			[]string{"service", "operation"},
		),
	}
}

func (g *breakerGauge) observe(operation string, _ gobreaker.State, to gobreaker.State) {
	var v float64
	switch to {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	g.state.WithLabelValues(g.service, operation).Set(v)
}

func ingestStatus(result domain.IngestResult) string {
	switch {
	case result.Error != "":
		return "error"
	case !result.Indexed:
		return "empty"
	default:
		return "indexed"
	}
}

func recordIngest(runs, docs *prometheus.CounterVec, service string, result domain.IngestResult) {
	kind := string(result.Kind)
	if kind == "" {
		kind = "unknown"
	}
	runs.WithLabelValues(service, kind, ingestStatus(result)).Inc()
	if result.Documents > 0 {
		docs.WithLabelValues(service, kind, "indexed").Add(float64(result.Documents))
	}
	if result.Skipped > 0 {
		docs.WithLabelValues(service, kind, "skipped").Add(float64(result.Skipped))
	}
}
