package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mpvpresence",
			Subsystem: "ipc",
			Name:      "connect_attempts_total",
			Help:      "Presence host dial attempts by result.",
		},
		[]string{"result"},
	)
	handshakes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mpvpresence",
			Subsystem: "ipc",
			Name:      "handshakes_total",
			Help:      "Presence host handshakes by result.",
		},
		[]string{"result"},
	)
	publishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mpvpresence",
			Subsystem: "ipc",
			Name:      "publishes_total",
			Help:      "SET_ACTIVITY requests by result.",
		},
		[]string{"result"},
	)
	pollTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mpvpresence",
			Subsystem: "poll",
			Name:      "ticks_total",
			Help:      "Status poll cycles by outcome.",
		},
		[]string{"outcome"},
	)
	presenceEnabled = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mpvpresence",
			Subsystem: "presence",
			Name:      "enabled",
			Help:      "1 while activities are being published, 0 once presence is disabled.",
		},
	)
	lastPublish = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mpvpresence",
			Subsystem: "presence",
			Name:      "last_publish_timestamp_seconds",
			Help:      "Unix time of the last successful activity publish.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mpvpresence",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total status server HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mpvpresence",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Status server HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(connectAttempts, handshakes, publishes, pollTicks, presenceEnabled, lastPublish, httpRequests, httpDuration)
	})
}

func RecordConnectAttempt(result string) {
	RegisterMetrics()
	connectAttempts.WithLabelValues(result).Inc()
}

func RecordHandshake(result string) {
	RegisterMetrics()
	handshakes.WithLabelValues(result).Inc()
}

func RecordPublish(result string) {
	RegisterMetrics()
	publishes.WithLabelValues(result).Inc()
}

func RecordPollTick(outcome string) {
	RegisterMetrics()
	pollTicks.WithLabelValues(outcome).Inc()
}

func SetPresenceEnabled(enabled bool) {
	RegisterMetrics()
	if enabled {
		presenceEnabled.Set(1)
		return
	}
	presenceEnabled.Set(0)
}

func RecordPublishTime(at time.Time) {
	RegisterMetrics()
	lastPublish.Set(float64(at.Unix()))
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
