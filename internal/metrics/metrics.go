// Package metrics собирает счётчики протокола вскрытия и определения победителя.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics - набор счётчиков сервиса.
type Metrics struct {
	registry *prometheus.Registry

	SecretsIssued   *prometheus.CounterVec
	Verifications   *prometheus.CounterVec
	Unseals         prometheus.Counter
	Transitions     *prometheus.CounterVec
	Promotions      *prometheus.CounterVec
	AuditFailures   prometheus.Counter
	OperationErrors *prometheus.CounterVec
}

// New регистрирует счётчики в отдельном реестре.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SecretsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procurement",
			Name:      "secrets_issued_total",
			Help:      "One-time PINs issued, by role.",
		}, []string{"role"}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procurement",
			Name:      "pin_verifications_total",
			Help:      "PIN verification attempts, by result kind.",
		}, []string{"result"}),
		Unseals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "procurement",
			Name:      "unseals_total",
			Help:      "Requisitions unsealed after reaching quorum.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procurement",
			Name:      "lifecycle_transitions_total",
			Help:      "Requisition status transitions, by target status.",
		}, []string{"to"}),
		Promotions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procurement",
			Name:      "standby_promotions_total",
			Help:      "Standby promotion outcomes.",
		}, []string{"outcome"}),
		AuditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "procurement",
			Name:      "audit_append_failures_total",
			Help:      "Audit entries that could not be written.",
		}),
		OperationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procurement",
			Name:      "operation_errors_total",
			Help:      "Failed operations, by operation and error kind.",
		}, []string{"operation", "kind"}),
	}
	m.registry.MustRegister(
		m.SecretsIssued,
		m.Verifications,
		m.Unseals,
		m.Transitions,
		m.Promotions,
		m.AuditFailures,
		m.OperationErrors,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
