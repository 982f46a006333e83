package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/observe-l/seclink/fec"
)

const (
	stageEncrypt = "encrypt"
	stageEncode  = "encode"
	stageCorrupt = "corrupt"
	stageDecode  = "decode"
	stageDecrypt = "decrypt"
)

const (
	resultOK             = "ok"
	resultNonConvergence = "nonconvergence"
	resultAuthFailure    = "auth_failure"
	resultMismatch       = "mismatch"
	resultError          = "error"
)

// Metrics collects per-stage timings and decoder outcomes. A nil *Metrics records nothing.
type Metrics struct {
	stage      *prometheus.HistogramVec
	iterations prometheus.Histogram
	decodes    *prometheus.CounterVec
	runs       *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		stage: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "seclink_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"stage"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "seclink_decode_iterations",
			Help:    "Bits flipped by the decoder per codeword.",
			Buckets: prometheus.LinearBuckets(0, 1, 21),
		}),
		decodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seclink_decode_total",
			Help: "Decoded codewords by status.",
		}, []string{"status"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seclink_runs_total",
			Help: "Round trips by result.",
		}, []string{"result"}),
	}
	for _, c := range []prometheus.Collector{m.stage, m.iterations, m.decodes, m.runs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stage.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) observeDecode(res fec.Result, d time.Duration) {
	if m == nil {
		return
	}
	m.observeStage(stageDecode, d)
	m.iterations.Observe(float64(res.Iterations))
	m.decodes.WithLabelValues(res.Status.String()).Inc()
}

func (m *Metrics) observeRun(result string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
}
