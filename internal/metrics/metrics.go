package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records the outcome of swap runs. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Runs          *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	AmountOut     prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dexbuy",
				Name:      "runs_total",
				Help:      "Swap runs by outcome (ok or the failing error kind).",
			},
			[]string{"outcome"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dexbuy",
				Name:      "stage_duration_seconds",
				Help:      "Time spent reaching each swap stage.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 180},
			},
			[]string{"stage"},
		),
		AmountOut: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "dexbuy",
				Name:      "amount_out_tokens",
				Help:      "Output tokens received by the last confirmed swap, in display units.",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Runs, m.StageDuration, m.AmountOut)
	}
	return m
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetAmountOut(v float64) {
	if m == nil {
		return
	}
	m.AmountOut.Set(v)
}

// WriteTextfile dumps g in the node-exporter textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
