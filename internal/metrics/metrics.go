// Package metrics defines the Prometheus collectors exported by the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "ledgergateway"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing,
// which keeps packages usable in tests without a registry.
type Metrics struct {
	Registry *prometheus.Registry

	authFailures     *prometheus.CounterVec
	disclosureFields *prometheus.CounterVec
	provisions       *prometheus.CounterVec
	ledgerCalls      *prometheus.CounterVec
	uploads          *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Requests rejected by the bearer token gate, by reason.",
		}, []string{"reason"}),
		disclosureFields: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disclosure_fields_total",
			Help:      "Protected fields seen by the disclosure filter, by outcome.",
		}, []string{"outcome"}),
		provisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_provisions_total",
			Help:      "Wallet provisioning attempts, by outcome.",
		}, []string{"outcome"}),
		ledgerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_calls_total",
			Help:      "Calls forwarded to the ledger client, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_extractions_total",
			Help:      "Resource metadata extractions on the upload path, by outcome.",
		}, []string{"outcome"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.authFailures,
		m.disclosureFields,
		m.provisions,
		m.ledgerCalls,
		m.uploads,
	)

	return m
}

func (m *Metrics) AuthFailure(reason string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) DisclosureField(outcome string) {
	if m == nil {
		return
	}
	m.disclosureFields.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Provision(outcome string) {
	if m == nil {
		return
	}
	m.provisions.WithLabelValues(outcome).Inc()
}

// LedgerCall records one forwarded operation; err decides the outcome label
func (m *Metrics) LedgerCall(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.ledgerCalls.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) Extraction(outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
}
