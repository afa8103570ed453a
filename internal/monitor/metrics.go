package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the monitor's Prometheus collectors.
type Metrics struct {
	checksTotal        *prometheus.CounterVec
	checkDuration      prometheus.Histogram
	transitionsTotal   *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	heartbeatsTotal    *prometheus.CounterVec
	overdueTargets     prometheus.Gauge
	scheduledJobs      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered, which keeps repeated construction in tests safe.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_checks_total",
			Help: "Poll checks executed, by resulting status.",
		}, []string{"status"}),
		checkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_check_duration_seconds",
			Help:    "Poll check response time in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_transitions_total",
			Help: "Detected status transitions, by target kind and transition.",
		}, []string{"kind", "transition"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_notifications_total",
			Help: "Notification attempts, by channel kind and result.",
		}, []string{"channel", "result"}),
		heartbeatsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_heartbeats_total",
			Help: "Heartbeats received, by result.",
		}, []string{"result"}),
		overdueTargets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_overdue_targets",
			Help: "Push targets currently tracked as overdue.",
		}),
		scheduledJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_scheduled_poll_jobs",
			Help: "Poll targets with a running schedule.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.checksTotal, m.checkDuration, m.transitionsTotal,
			m.notificationsTotal, m.heartbeatsTotal, m.overdueTargets, m.scheduledJobs,
		)
	}
	return m
}

func (m *Metrics) observeCheck(r CheckResult) {
	m.checksTotal.WithLabelValues(string(r.Status)).Inc()
	m.checkDuration.Observe(r.ResponseTime().Seconds())
}

func (m *Metrics) observeTransition(kind TargetKind, tr Transition) {
	m.transitionsTotal.WithLabelValues(string(kind), string(tr)).Inc()
}

func (m *Metrics) observeNotification(channel string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.notificationsTotal.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) observeHeartbeat(result string) {
	m.heartbeatsTotal.WithLabelValues(result).Inc()
}
