package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	clipforge = "clipforge"

	// Job metrics
	jobSubmissionsTotal  = "job_submissions_total"
	jobTransitionsTotal  = "job_transitions_total"
	jobStageDuration     = "job_stage_duration_seconds"
	jobRunsInFlight      = "job_runs_in_flight"
	clipMutationsTotal   = "clip_mutations_total"
	uploadsTotal         = "uploads_total"
	eventsPublishedTotal = "events_published_total"
	eventsDroppedTotal   = "events_dropped_total"

	// Labels
	sourceKindLabel = "source_kind"
	stateLabel      = "state"
	stageLabel      = "stage"
	resultLabel     = "result"
	operationLabel  = "operation"
	kindLabel       = "kind"
)

/**
* Metrics definition
**/
var jobSubmissionsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: clipforge,
		Name:      jobSubmissionsTotal,
		Help:      "number of submitted jobs",
	},
	[]string{sourceKindLabel},
)

var jobTransitionsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: clipforge,
		Name:      jobTransitionsTotal,
		Help:      "number of job state transitions by target state",
	},
	[]string{stateLabel},
)

var jobStageDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: clipforge,
		Name:      jobStageDuration,
		Help:      "time spent in each pipeline stage",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	},
	[]string{stageLabel, resultLabel},
)

var jobRunsInFlightMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: clipforge,
		Name:      jobRunsInFlight,
		Help:      "number of pipeline runs currently executing",
	},
)

var clipMutationsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: clipforge,
		Name:      clipMutationsTotal,
		Help:      "number of clip renames and deletions",
	},
	[]string{operationLabel, resultLabel},
)

var uploadsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: clipforge,
		Name:      uploadsTotal,
		Help:      "number of video uploads",
	},
	[]string{resultLabel},
)

var eventsPublishedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: clipforge,
		Name:      eventsPublishedTotal,
		Help:      "number of lifecycle events published",
	},
	[]string{kindLabel, resultLabel},
)

var eventsDroppedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: clipforge,
		Name:      eventsDroppedTotal,
		Help:      "number of lifecycle events dropped because the queue was full",
	},
	[]string{kindLabel},
)

func IncreaseJobSubmissionsTotalMetric(sourceKind string) {
	jobSubmissionsTotalMetric.With(prometheus.Labels{sourceKindLabel: sourceKind}).Inc()
}

func IncreaseJobTransitionsTotalMetric(state string) {
	jobTransitionsTotalMetric.With(prometheus.Labels{stateLabel: state}).Inc()
}

func ObserveStageDuration(stage string, ok bool, d time.Duration) {
	jobStageDurationMetric.With(prometheus.Labels{
		stageLabel:  stage,
		resultLabel: result(ok),
	}).Observe(d.Seconds())
}

func IncreaseRunsInFlight() {
	jobRunsInFlightMetric.Inc()
}

func DecreaseRunsInFlight() {
	jobRunsInFlightMetric.Dec()
}

func IncreaseClipMutationsTotalMetric(operation string, ok bool) {
	clipMutationsTotalMetric.With(prometheus.Labels{
		operationLabel: operation,
		resultLabel:    result(ok),
	}).Inc()
}

func IncreaseUploadsTotalMetric(ok bool) {
	uploadsTotalMetric.With(prometheus.Labels{resultLabel: result(ok)}).Inc()
}

func IncreaseEventsPublishedTotalMetric(kind string, ok bool) {
	eventsPublishedTotalMetric.With(prometheus.Labels{
		kindLabel:   kind,
		resultLabel: result(ok),
	}).Inc()
}

func IncreaseEventsDroppedTotalMetric(kind string) {
	eventsDroppedTotalMetric.With(prometheus.Labels{kindLabel: kind}).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(jobSubmissionsTotalMetric)
	prometheus.MustRegister(jobTransitionsTotalMetric)
	prometheus.MustRegister(jobStageDurationMetric)
	prometheus.MustRegister(jobRunsInFlightMetric)
	prometheus.MustRegister(clipMutationsTotalMetric)
	prometheus.MustRegister(uploadsTotalMetric)
	prometheus.MustRegister(eventsPublishedTotalMetric)
	prometheus.MustRegister(eventsDroppedTotalMetric)
}
