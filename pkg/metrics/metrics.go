package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records login attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "craftfolio_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// CodesIssued counts one-time passcodes issued per purpose.
	CodesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "craftfolio_otp_issued_total",
			Help: "Total number of one-time passcodes issued",
		},
		[]string{"purpose"},
	)

	// CodeVerifications counts passcode verification outcomes per purpose.
	CodeVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "craftfolio_otp_verifications_total",
			Help: "Total number of one-time passcode verification attempts",
		},
		[]string{"purpose", "result"},
	)

	// CodesPurged tracks ledger rows removed by the background sweep.
	CodesPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "craftfolio_otp_purged_total",
			Help: "Total number of stale one-time passcode rows purged",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "craftfolio_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
