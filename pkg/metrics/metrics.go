package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RuleEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_evaluations_total",
			Help: "Total number of rule evaluations by outcome (count)",
		},
		[]string{"result", "dry_run"},
	)

	RuleEvaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rule_evaluation_duration_ms",
			Help:    "Duration of a single rule evaluation including its actions in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"result"},
	)

	EventsEvaluatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_evaluated_total",
			Help: "Total number of events evaluated against the active rule set (count)",
		},
		[]string{"source"},
	)

	ActiveRules = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_rules",
			Help: "Number of active rules seen by the last evaluation (count)",
		},
	)

	ActionExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "action_executions_total",
			Help: "Total number of action executions by type and status (count)",
		},
		[]string{"type", "status"},
	)

	ActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "action_duration_ms",
			Help:    "Duration of action execution in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"type"},
	)

	AnchorOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anchor_outcomes_total",
			Help: "Total number of anchoring outcomes by source and status (count)",
		},
		[]string{"source", "status"},
	)

	BatchBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anchor_batch_builds_total",
			Help: "Total number of anchor batch builds by resulting status (count)",
		},
		[]string{"status"},
	)

	BatchBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "anchor_batch_build_duration_ms",
			Help:    "Duration of building and anchoring a batch in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
	)

	BatchLeafCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "anchor_batch_leaves",
			Help:    "Number of audit log leaves per anchored batch (count)",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	ProofRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proof_requests_total",
			Help: "Total number of inclusion proof requests by resolution path (count)",
		},
		[]string{"path"},
	)

	ProofCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proof_cache_lookups_total",
			Help: "Total number of proof cache lookups by tier and result (count)",
		},
		[]string{"tier", "result"},
	)

	PluginEmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plugin_emissions_total",
			Help: "Total number of plugin event emissions by status (count)",
		},
		[]string{"plugin_id", "status"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "target"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"topic"},
	)
)

var registerOnce sync.Once

// Register registers every collector with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RuleEvaluationsTotal,
			RuleEvaluationDuration,
			EventsEvaluatedTotal,
			ActiveRules,
			ActionExecutionsTotal,
			ActionDuration,
			AnchorOutcomesTotal,
			BatchBuildsTotal,
			BatchBuildDuration,
			BatchLeafCount,
			ProofRequestsTotal,
			ProofCacheLookupsTotal,
			PluginEmissionsTotal,
			RetryAttemptsTotal,
			DLQMessagesTotal,
			CircuitBreakerState,
			CircuitBreakerRequests,
			CircuitBreakerFailures,
			KafkaMessagesReadTotal,
			KafkaMessagesWrittenTotal,
		)
	})
}

func ObserveRuleEvaluation(result string, dryRun bool, duration time.Duration) {
	dry := "false"
	if dryRun {
		dry = "true"
	}
	RuleEvaluationsTotal.WithLabelValues(result, dry).Inc()
	RuleEvaluationDuration.WithLabelValues(result).Observe(float64(duration.Milliseconds()))
}

func IncEventsEvaluated(source string) {
	EventsEvaluatedTotal.WithLabelValues(source).Inc()
}

func SetActiveRules(count int) {
	ActiveRules.Set(float64(count))
}

func ObserveAction(actionType, status string, duration time.Duration) {
	ActionExecutionsTotal.WithLabelValues(actionType, status).Inc()
	ActionDuration.WithLabelValues(actionType).Observe(float64(duration.Milliseconds()))
}

func IncAnchorOutcome(source, status string) {
	AnchorOutcomesTotal.WithLabelValues(source, status).Inc()
}

func ObserveBatchBuild(status string, leaves int, duration time.Duration) {
	BatchBuildsTotal.WithLabelValues(status).Inc()
	BatchLeafCount.Observe(float64(leaves))
	BatchBuildDuration.Observe(float64(duration.Milliseconds()))
}

func IncProofRequest(path string) {
	ProofRequestsTotal.WithLabelValues(path).Inc()
}

func IncProofCacheLookup(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	ProofCacheLookupsTotal.WithLabelValues(tier, result).Inc()
}

func IncPluginEmission(pluginID, status string) {
	PluginEmissionsTotal.WithLabelValues(pluginID, status).Inc()
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(topic).Inc()
}
