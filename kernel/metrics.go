package kernel

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/forgebound/kernel/integration"
	"github.com/forgebound/kernel/lane"
)

// Metrics holds the kernel's Prometheus collectors. The kernel only
// registers them against the supplied registerer; opening a /metrics
// listener is the embedding HTTP façade's job, not the kernel's.
type Metrics struct {
	LaneOccupancy   *prometheus.GaugeVec
	AuditChainLen   prometheus.Gauge
	BusHistorySize  prometheus.Gauge
	IntegrationHealth *prometheus.GaugeVec
	RetryAttempts   *prometheus.CounterVec
}

// NewMetrics builds and registers the kernel's collectors against reg.
// Collectors already registered there under the same names (from an
// earlier Boot in the same process) are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LaneOccupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "kernel",
			Name:      "lane_occupancy",
			Help:      "Active command-lane permits in use.",
		}, []string{"lane"}),
		AuditChainLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kernel",
			Name:      "audit_chain_length",
			Help:      "Number of entries in the in-memory audit chain.",
		}),
		BusHistorySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kernel",
			Name:      "event_bus_history_size",
			Help:      "Number of events retained in the bus ring buffer.",
		}),
		IntegrationHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "kernel",
			Name:      "integration_health",
			Help:      "Integration health status (1 = current status, 0 = other), labeled by service and status.",
		}, []string{"service", "status"}),
		RetryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kernel",
			Name:      "retry_attempts_total",
			Help:      "Count of retry attempts by operation kind.",
		}, []string{"kind"}),
	}
	register := func(c prometheus.Collector) prometheus.Collector {
		var are prometheus.AlreadyRegisteredError
		if err := reg.Register(c); errors.As(err, &are) {
			return are.ExistingCollector
		} else if err != nil {
			panic(err)
		}
		return c
	}
	m.LaneOccupancy = register(m.LaneOccupancy).(*prometheus.GaugeVec)
	m.AuditChainLen = register(m.AuditChainLen).(prometheus.Gauge)
	m.BusHistorySize = register(m.BusHistorySize).(prometheus.Gauge)
	m.IntegrationHealth = register(m.IntegrationHealth).(*prometheus.GaugeVec)
	m.RetryAttempts = register(m.RetryAttempts).(*prometheus.CounterVec)
	return m
}

// ObserveLanes snapshots lane occupancy into the gauge vec.
func (m *Metrics) ObserveLanes(occ []lane.Occupancy) {
	for _, o := range occ {
		m.LaneOccupancy.WithLabelValues(o.Lane.String()).Set(float64(o.Active))
	}
}

// ObserveHealth snapshots one integration's status into the gauge vec,
// zeroing its other possible statuses so only the current one reads 1.
func (m *Metrics) ObserveHealth(service string, status integration.Status) {
	for _, s := range []integration.Status{integration.StatusUnknown, integration.StatusHealthy, integration.StatusDegraded, integration.StatusDisconnected} {
		v := 0.0
		if s == status {
			v = 1.0
		}
		m.IntegrationHealth.WithLabelValues(service, s.String()).Set(v)
	}
}
