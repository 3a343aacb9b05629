package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// The collectors exist from package init so callers never see nil metrics;
// Register exposes them on a registry.
var (
	SessionsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "helpline_sessions_created_total",
		Help: "Total number of sessions created.",
	}, []string{"entry_point", "demo"})
	PodAssignmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "helpline_pod_assignments_total",
		Help: "Total number of round-robin pod selections.",
	}, []string{"region", "entry_point", "demo"})
	ReroutesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "helpline_reroutes_total",
		Help: "Total number of session reroutes, by whether a new thread was opened.",
	}, []string{"new_thread"})
	RegionFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "helpline_region_fallbacks_total",
		Help: "Total number of sessions forced to the overflow region after failed region prompts.",
	})
	DuplicateEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "helpline_duplicate_events_total",
		Help: "Total number of suppressed duplicate events.",
	})
	WelcomeBackTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "helpline_welcome_back_total",
		Help: "Total number of welcome-back notices sent.",
	})
	SendFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "helpline_send_failures_total",
		Help: "Total number of failed sends to users.",
	})
	AuditDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "helpline_audit_dropped_total",
		Help: "Total number of audit events dropped because the queue was full.",
	})
)

// Register registers the helpline metrics on reg.
// It should be called once at application startup.
func Register(reg prometheus.Registerer) {
	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}
	for _, c := range []prometheus.Collector{
		SessionsCreatedTotal,
		PodAssignmentsTotal,
		ReroutesTotal,
		RegionFallbacksTotal,
		DuplicateEventsTotal,
		WelcomeBackTotal,
		SendFailuresTotal,
		AuditDroppedTotal,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}
	log.Info().Msg("Custom Prometheus metrics registered.")
}
