// Package metrics registers the gateway's Prometheus instruments. Labels stay
// low cardinality: status and department only, never usernames.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	LoginAttempts      *prometheus.CounterVec
	LDAPAuth           *prometheus.CounterVec
	TOTPVerification   *prometheus.CounterVec
	UnauthorizedAccess prometheus.Counter
	InvalidCredentials prometheus.Counter
	SuccessfulAuth     *prometheus.CounterVec
	Logouts            prometheus.Counter

	LDAPResponseTime   prometheus.Histogram
	TOTPValidationTime prometheus.Histogram

	ActiveSessions *prometheus.GaugeVec
	PendingTOTP    prometheus.Gauge
}

// New creates and registers all gateway metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on a caller-supplied registerer so tests can
// use a fresh registry per case.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_login_attempts_total",
			Help: "Total number of login attempts",
		}, []string{"status", "department"}),
		LDAPAuth: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_ldap_auth_total",
			Help: "Total LDAP authentication attempts",
		}, []string{"status"}),
		TOTPVerification: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_totp_verification_total",
			Help: "Total TOTP verification attempts",
		}, []string{"status"}),
		UnauthorizedAccess: factory.NewCounter(prometheus.CounterOpts{
			Name: "portal_unauthorized_access_total",
			Help: "Authenticated principals denied for the wrong department",
		}),
		InvalidCredentials: factory.NewCounter(prometheus.CounterOpts{
			Name: "portal_invalid_credentials_total",
			Help: "Failed login attempts with invalid credentials",
		}),
		SuccessfulAuth: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_successful_auth_total",
			Help: "Successful complete two-factor authentications",
		}, []string{"department"}),
		Logouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "portal_logout_total",
			Help: "User logout events",
		}),
		LDAPResponseTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_ldap_response_seconds",
			Help:    "LDAP authentication round-trip time in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		TOTPValidationTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_totp_validation_seconds",
			Help:    "TOTP validation time in seconds",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01},
		}),
		ActiveSessions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "portal_active_sessions",
			Help: "Number of active user sessions",
		}, []string{"department"}),
		PendingTOTP: factory.NewGauge(prometheus.GaugeOpts{
			Name: "portal_pending_totp_verifications",
			Help: "Number of principals waiting on the second factor",
		}),
	}
}

// ObserveLDAP records one directory round trip.
func (m *Metrics) ObserveLDAP(success bool, elapsed time.Duration) {
	status := "success"
	if !success {
		status = "failed"
	}
	m.LDAPAuth.WithLabelValues(status).Inc()
	m.LDAPResponseTime.Observe(elapsed.Seconds())
}

// ObserveTOTP records one second-factor check.
func (m *Metrics) ObserveTOTP(success bool, elapsed time.Duration) {
	status := "success"
	if !success {
		status = "failed"
	}
	m.TOTPVerification.WithLabelValues(status).Inc()
	m.TOTPValidationTime.Observe(elapsed.Seconds())
}
