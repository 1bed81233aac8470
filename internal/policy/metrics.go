package policy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hikeclub_authorization_decisions_total",
		Help: "Authorization decisions by role, action, kind and result",
	},
	[]string{"role", "action", "kind", "result"},
)

func recordDecision(role, action, kind string, allowed bool) {
	result := "deny"
	if allowed {
		result = "allow"
	}
	decisionsTotal.WithLabelValues(role, action, kind, result).Inc()
}
