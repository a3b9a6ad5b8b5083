package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "resizer"

	LabelOutcome = "outcome"
	LabelStage   = "stage"
	LabelResult  = "result"

	StageFetch  = "fetch"
	StageResize = "resize"
	StageWrite  = "write"

	OutcomeRedirected        = "redirected"
	OutcomeMalformedFilename = "malformed_filename"
	OutcomeOriginalNotFound  = "original_not_found"
	OutcomeFetchFailed       = "fetch_failed"
	OutcomeResizeFailed      = "resize_failed"
	OutcomeWriteFailed       = "write_failed"
	OutcomeTimeout           = "timeout"
	OutcomeFailed            = "failed"

	ResultGenerated = "generated"
	ResultSkipped   = "skipped"
	ResultIgnored   = "ignored"
	ResultFailed    = "failed"
)

type Metrics struct {
	Requests      *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	BytesWritten  prometheus.Counter
	WorkerEvents  *prometheus.CounterVec
}

// NewMetrics registers the resizer collectors with reg. Pass
// prometheus.DefaultRegisterer in binaries and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "requests_total",
		Help:      "number of resize pipeline runs by outcome",
	},
		[]string{LabelOutcome},
	)
	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "stage_duration_seconds",
		Help:      "time spent in each pipeline stage",
		Buckets:   prometheus.DefBuckets,
	},
		[]string{LabelStage},
	)
	bytesWritten := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "bytes_written_total",
		Help:      "bytes of resized images written to the destination store",
	})
	workerEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "worker_events_total",
		Help:      "pre-generation variants handled by the worker, by result",
	},
		[]string{LabelResult},
	)

	reg.MustRegister(requests, stageDuration, bytesWritten, workerEvents)

	return &Metrics{
		Requests:      requests,
		StageDuration: stageDuration,
		BytesWritten:  bytesWritten,
		WorkerEvents:  workerEvents,
	}
}

func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) CountOutcome(outcome string) {
	m.Requests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CountWorkerEvent(result string) {
	m.WorkerEvents.WithLabelValues(result).Inc()
}
