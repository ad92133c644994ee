package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the application collectors. Each server owns its own registry
// so several instances (tests) never collide on registration.
type Metrics struct {
	Registry *prometheus.Registry

	// AuthEvents counts register/login/logout attempts by outcome.
	AuthEvents *prometheus.CounterVec
	// PostMutations counts blog post writes by operation.
	PostMutations *prometheus.CounterVec
	// RedisErrors counts Redis errors by command name.
	RedisErrors *prometheus.CounterVec
}

// NewMetrics creates a fresh registry with runtime collectors and the app counters.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		AuthEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blogapi_auth_events_total",
			Help: "Total authentication events by type and outcome",
		}, []string{"event", "outcome"}),
		PostMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blogapi_post_mutations_total",
			Help: "Total blog post mutations by operation",
		}, []string{"operation"}),
		RedisErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blogapi_redis_errors_total",
			Help: "Total number of Redis errors by operation type",
		}, []string{"operation"}),
	}
}

// RecordAuth increments the auth counter. Safe on a nil receiver.
func (m *Metrics) RecordAuth(event, outcome string) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(event, outcome).Inc()
}

// RecordPostMutation increments the post mutation counter. Safe on a nil receiver.
func (m *Metrics) RecordPostMutation(operation string) {
	if m == nil {
		return
	}
	m.PostMutations.WithLabelValues(operation).Inc()
}

// RecordRedisError increments the Redis error counter. Safe on a nil receiver.
func (m *Metrics) RecordRedisError(operation string) {
	if m == nil {
		return
	}
	m.RedisErrors.WithLabelValues(operation).Inc()
}
