package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	DIDMutations            *prometheus.CounterVec
	DIDMutationConflicts    prometheus.Counter
	DIDSyncOutcomes         *prometheus.CounterVec
	CredentialsIssued       prometheus.Counter
	CredentialVerifications *prometheus.CounterVec
	OwnershipMigrations     prometheus.Counter
	HTTPLatency             *prometheus.HistogramVec
}

// New creates and registers all metrics on reg. Tests pass a fresh
// prometheus.NewRegistry(); main passes prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DIDMutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "neuramark_did_mutations_total",
			Help: "DID document mutations by action and outcome",
		}, []string{"action", "outcome"}),
		DIDMutationConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "neuramark_did_mutation_conflicts_total",
			Help: "Version conflicts that forced a DID mutation retry",
		}),
		DIDSyncOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "neuramark_did_sync_outcomes_total",
			Help: "Secondary DID updates after proof registration, by outcome",
		}, []string{"outcome"}),
		CredentialsIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "neuramark_credentials_issued_total",
			Help: "Verifiable credentials signed by the platform",
		}),
		CredentialVerifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "neuramark_credential_verifications_total",
			Help: "Credential verifications by result",
		}, []string{"result"}),
		OwnershipMigrations: f.NewCounter(prometheus.CounterOpts{
			Name: "neuramark_ownership_migrations_total",
			Help: "Proofs migrated from wallet ownership to account ownership",
		}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "neuramark_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) IncrementMutation(action, outcome string) {
	m.DIDMutations.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) IncrementMutationConflict() {
	m.DIDMutationConflicts.Inc()
}

func (m *Metrics) IncrementSyncOutcome(outcome string) {
	m.DIDSyncOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementCredentialsIssued() {
	m.CredentialsIssued.Inc()
}

func (m *Metrics) IncrementVerification(result string) {
	m.CredentialVerifications.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementOwnershipMigrations() {
	m.OwnershipMigrations.Inc()
}

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	m.HTTPLatency.WithLabelValues(method, route, status).Observe(seconds)
}
