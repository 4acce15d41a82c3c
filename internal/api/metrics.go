package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry           *prometheus.Registry
	verificationsTotal *prometheus.CounterVec
	issuancesTotal     *prometheus.CounterVec
	balanceReadsTotal  *prometheus.CounterVec
}

func newMetricsRegistry() *metricsRegistry {
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hypha_migration_verifications_total",
		Help: "Total number of migration verification requests",
	}, []string{"method", "outcome"})

	issuances := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hypha_migration_issuances_total",
		Help: "Total number of issuance attempts",
	}, []string{"outcome"})

	balances := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hypha_migration_balance_reads_total",
		Help: "Total number of balance read requests",
	}, []string{"outcome"})

	r := prometheus.NewRegistry()
	r.MustRegister(verifications, issuances, balances)

	return &metricsRegistry{
		registry:           r,
		verificationsTotal: verifications,
		issuancesTotal:     issuances,
		balanceReadsTotal:  balances,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) incVerification(method, outcome string) {
	m.verificationsTotal.WithLabelValues(method, outcome).Inc()
}

func (m *metricsRegistry) incIssuance(outcome string) {
	m.issuancesTotal.WithLabelValues(outcome).Inc()
}

func (m *metricsRegistry) incBalanceRead(outcome string) {
	m.balanceReadsTotal.WithLabelValues(outcome).Inc()
}
