package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "litka"

// Mute reasons used as the "reason" label.
const (
	muteReasonSpam  = "spam"
	muteReasonAdmin = "admin"
)

// Metrics tracks server runtime statistics.
// Counters are atomics read by both Snapshot and the Prometheus collectors.
type Metrics struct {
	startTime time.Time
	online    func() int

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime WebSocket connections accepted
	ActiveConnections atomic.Int64 // current open WebSocket connections
	FailedAuths       atomic.Int64 // failed authentication attempts
	SuccessfulAuths   atomic.Int64 // successful authentication attempts
	TotalDisconnects  atomic.Int64 // total client disconnects

	// Chat counters
	ChatMessagesSent    atomic.Int64 // public messages relayed
	PrivateMessagesSent atomic.Int64 // private messages delivered
	RejectedMuted       atomic.Int64 // messages refused because the sender was muted
	RateLimited         atomic.Int64 // messages refused by the per-connection limiter
	MalformedEvents     atomic.Int64 // frames dropped at decode
	DroppedDeliveries   atomic.Int64 // sends refused by a closed or full connection

	// Moderation counters
	SpamMutes  atomic.Int64
	AdminMutes atomic.Int64

	registry     *prometheus.Registry
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance. online reports the current session count.
func NewMetrics(online func() int) *Metrics {
	if online == nil {
		online = func() int { return 0 }
	}
	m := &Metrics{
		startTime: time.Now(),
		online:    online,
		registry:  prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}

	counter := func(name, help string, v *atomic.Int64, labels prometheus.Labels) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(v.Load()) })
	}
	gauge := func(name, help string, fn func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, fn)
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		gauge("uptime_seconds", "Server uptime in seconds.",
			func() float64 { return time.Since(m.startTime).Seconds() }),
		gauge("connections_active", "Current open WebSocket connections.",
			func() float64 { return float64(m.ActiveConnections.Load()) }),
		gauge("sessions_online", "Current authenticated sessions.",
			func() float64 { return float64(m.online()) }),
		counter("connections_total", "Lifetime WebSocket connections accepted.", &m.TotalConnections, nil),
		counter("disconnects_total", "Total client disconnects.", &m.TotalDisconnects, nil),
		counter("auth_success_total", "Successful authentication attempts.", &m.SuccessfulAuths, nil),
		counter("auth_failed_total", "Failed authentication attempts.", &m.FailedAuths, nil),
		counter("chat_messages_total", "Public chat messages relayed.", &m.ChatMessagesSent, nil),
		counter("private_messages_total", "Private messages delivered.", &m.PrivateMessagesSent, nil),
		counter("rejected_muted_total", "Messages refused while the sender was muted.", &m.RejectedMuted, nil),
		counter("rate_limited_total", "Messages refused by the per-connection rate limit.", &m.RateLimited, nil),
		counter("malformed_events_total", "Inbound frames dropped as malformed.", &m.MalformedEvents, nil),
		counter("dropped_deliveries_total", "Outbound events refused by closed or full connections.", &m.DroppedDeliveries, nil),
		counter("mutes_total", "Mutes applied.", &m.SpamMutes, prometheus.Labels{"reason": muteReasonSpam}),
		counter("mutes_total", "Mutes applied.", &m.AdminMutes, prometheus.Labels{"reason": muteReasonAdmin}),
	)
	return m
}

// Registry exposes the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// GinMiddleware records request counts and latency per route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := prometheus.Labels{
			"method": c.Request.Method,
			"path":   path,
			"status": strconv.Itoa(c.Writer.Status()),
		}
		m.httpRequests.With(labels).Inc()
		m.httpDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) recordMute(reason string) {
	if reason == muteReasonSpam {
		m.SpamMutes.Add(1)
		return
	}
	m.AdminMutes.Add(1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	Online            int   `json:"online"`
	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	SuccessfulAuths   int64 `json:"successful_auths"`
	FailedAuths       int64 `json:"failed_auths"`
	TotalDisconnects  int64 `json:"total_disconnects"`

	ChatMessagesSent    int64 `json:"chat_messages_sent"`
	PrivateMessagesSent int64 `json:"private_messages_sent"`
	RejectedMuted       int64 `json:"rejected_muted"`
	RateLimited         int64 `json:"rate_limited"`
	MalformedEvents     int64 `json:"malformed_events"`
	DroppedDeliveries   int64 `json:"dropped_deliveries"`

	SpamMutes  int64 `json:"spam_mutes"`
	AdminMutes int64 `json:"admin_mutes"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:              uptime.Truncate(time.Second).String(),
		UptimeSeconds:       int64(uptime.Seconds()),
		Online:              m.online(),
		ActiveConnections:   m.ActiveConnections.Load(),
		TotalConnections:    m.TotalConnections.Load(),
		SuccessfulAuths:     m.SuccessfulAuths.Load(),
		FailedAuths:         m.FailedAuths.Load(),
		TotalDisconnects:    m.TotalDisconnects.Load(),
		ChatMessagesSent:    m.ChatMessagesSent.Load(),
		PrivateMessagesSent: m.PrivateMessagesSent.Load(),
		RejectedMuted:       m.RejectedMuted.Load(),
		RateLimited:         m.RateLimited.Load(),
		MalformedEvents:     m.MalformedEvents.Load(),
		DroppedDeliveries:   m.DroppedDeliveries.Load(),
		SpamMutes:           m.SpamMutes.Load(),
		AdminMutes:          m.AdminMutes.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"online", s.Online,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"chat_msgs", s.ChatMessagesSent,
		"private_msgs", s.PrivateMessagesSent,
		"mutes", s.SpamMutes+s.AdminMutes,
		"dropped", s.DroppedDeliveries,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}
