package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the session Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	logins        *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	logouts       *prometheus.CounterVec
	profileWrites *prometheus.CounterVec
	storageErrors *prometheus.CounterVec
	authenticated prometheus.Gauge
}

// NewMetrics registers the session collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskdash",
			Subsystem: "session",
			Name:      "logins_total",
			Help:      "Login attempts by result",
		}, []string{"result"}),

		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskdash",
			Subsystem: "session",
			Name:      "refresh_attempts_total",
			Help:      "Token refresh calls by result",
		}, []string{"result"}),

		logouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskdash",
			Subsystem: "session",
			Name:      "logouts_total",
			Help:      "Session clears by reason",
		}, []string{"reason"}),

		profileWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskdash",
			Subsystem: "session",
			Name:      "profile_updates_total",
			Help:      "Profile update attempts by result",
		}, []string{"result"}),

		storageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskdash",
			Subsystem: "session",
			Name:      "storage_errors_total",
			Help:      "Swallowed storage failures by operation",
		}, []string{"op"}),

		authenticated: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskdash",
			Subsystem: "session",
			Name:      "authenticated",
			Help:      "1 while a session is held",
		}),
	}
}

func (m *Metrics) login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) refresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) logout(reason string) {
	if m == nil {
		return
	}
	m.logouts.WithLabelValues(reason).Inc()
}

func (m *Metrics) profile(result string) {
	if m == nil {
		return
	}
	m.profileWrites.WithLabelValues(result).Inc()
}

func (m *Metrics) storageError(op string) {
	if m == nil {
		return
	}
	m.storageErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) setAuthenticated(on bool) {
	if m == nil {
		return
	}
	if on {
		m.authenticated.Set(1)
		return
	}
	m.authenticated.Set(0)
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsAuthError(err, ErrRejected):
		return "rejected"
	case IsAuthError(err, ErrMalformedResponse):
		return "malformed"
	case IsAuthError(err, ErrTransport):
		return "transport"
	default:
		return "invalid"
	}
}
