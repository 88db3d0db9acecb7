package session

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	operations    *prometheus.CounterVec
	authenticated prometheus.Gauge
}

func newMetrics(subsystem string) *metrics {
	m := &metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contentai",
			Subsystem: subsystem,
			Name:      "operations",
			Help:      "Number of session operations, by outcome.",
		}, []string{"op", "outcome"}),
		authenticated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "contentai",
			Subsystem: subsystem,
			Name:      "authenticated",
			Help:      "1 if the session is authenticated, else 0.",
		}),
	}
	prometheus.MustRegister(m.operations, m.authenticated)
	return m
}

func (m *metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}

func (m *metrics) setAuthenticated(v bool) {
	if m == nil {
		return
	}
	if v {
		m.authenticated.Set(1)
	} else {
		m.authenticated.Set(0)
	}
}

func (m *metrics) unregister() {
	if m == nil {
		return
	}
	prometheus.Unregister(m.operations)
	prometheus.Unregister(m.authenticated)
}
