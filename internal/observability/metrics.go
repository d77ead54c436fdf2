package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "epos",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "epos",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	printJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "epos",
			Subsystem: "print",
			Name:      "jobs_total",
			Help:      "Print jobs by outcome.",
		},
		[]string{"outcome"},
	)
	printPayloadBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "epos",
			Subsystem: "print",
			Name:      "payload_bytes",
			Help:      "Encoded command stream size per job in bytes.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10),
		},
	)
	printSendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "epos",
			Subsystem: "print",
			Name:      "send_duration_seconds",
			Help:      "Time spent delivering a job to the printer.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Job outcome labels.
const (
	OutcomePrinted  = "printed"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, printJobs, printPayloadBytes, printSendDuration)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RecordJob counts one job outcome. Payload size and send duration are
// only observed for jobs that reached the device layer.
func RecordJob(outcome string, payloadBytes int, sendDuration time.Duration) {
	RegisterMetrics()
	printJobs.WithLabelValues(outcome).Inc()
	if payloadBytes > 0 {
		printPayloadBytes.Observe(float64(payloadBytes))
	}
	if sendDuration > 0 {
		printSendDuration.Observe(sendDuration.Seconds())
	}
}
