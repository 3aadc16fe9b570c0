package metrics

import "github.com/prometheus/client_golang/prometheus"

// SessionMetrics counts session state transitions.
type SessionMetrics struct {
	transitions *prometheus.CounterVec
	logins      *prometheus.CounterVec
}

func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	if reg == nil {
		return &SessionMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_transitions_total",
		Help: "Session state transitions by target state.",
	}, []string{"state"})
	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_logins_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(transitions, logins)
	return &SessionMetrics{transitions: transitions, logins: logins}
}

func (m *SessionMetrics) IncTransition(state string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(state)).Inc()
}

func (m *SessionMetrics) IncLogin(outcome string) {
	if m == nil || m.logins == nil {
		return
	}
	m.logins.WithLabelValues(normalizeLabel(outcome)).Inc()
}
