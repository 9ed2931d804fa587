package sync

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the sync engine's prometheus collectors.
type Metrics struct {
	Passes   prometheus.Counter
	Rows     *prometheus.CounterVec
	Duration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hhsync",
			Subsystem: "sync",
			Name:      "passes_total",
			Help:      "Number of completed sync passes.",
		}),
		Rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hhsync",
			Subsystem: "sync",
			Name:      "rows_total",
			Help:      "Rows processed by sync, by table and outcome.",
		}, []string{"table", "outcome"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hhsync",
			Subsystem: "sync",
			Name:      "pass_duration_seconds",
			Help:      "Wall time of a sync pass.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Passes, m.Rows, m.Duration)
	}
	return m
}

func (m *Metrics) observeRow(r RowResult) {
	if m == nil {
		return
	}
	m.Rows.WithLabelValues(r.Table, string(r.Outcome)).Inc()
}

func (m *Metrics) observePass(p *PassSummary) {
	if m == nil {
		return
	}
	m.Passes.Inc()
	m.Duration.Observe(p.Duration.Seconds())
}
