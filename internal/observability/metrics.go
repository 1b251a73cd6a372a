package observability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
)

// Metrics holds the pipeline's prometheus collectors on a private registry.
// A nil *Metrics is a valid no-op.
type Metrics struct {
	reg              *prometheus.Registry
	rowsDropped      *prometheus.CounterVec
	rowsImputed      *prometheus.CounterVec
	sequencesWritten prometheus.Counter
	shardsWritten    prometheus.Counter
	stageDuration    *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		rowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_rows_dropped_total",
			Help: "Rows dropped by a pipeline stage, by reason.",
		}, []string{"stage", "reason"}),
		rowsImputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_rows_imputed_total",
			Help: "Rows repaired by imputation, by reason.",
		}, []string{"stage", "reason"}),
		sequencesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forecast_sequences_written_total",
			Help: "Sequences persisted to shards.",
		}),
		shardsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forecast_shards_written_total",
			Help: "Per-machine shards persisted.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forecast_stage_duration_seconds",
			Help:    "Wall time per pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"stage"}),
	}
	m.reg.MustRegister(m.rowsDropped, m.rowsImputed, m.sequencesWritten, m.shardsWritten, m.stageDuration)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) RowsDropped(stage, reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsDropped.WithLabelValues(stage, reason).Add(float64(n))
}

func (m *Metrics) RowsImputed(stage, reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsImputed.WithLabelValues(stage, reason).Add(float64(n))
}

func (m *Metrics) ShardWritten(sequences int) {
	if m == nil {
		return
	}
	m.shardsWritten.Inc()
	m.sequencesWritten.Add(float64(sequences))
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Push sends the registry to a Pushgateway. Empty url is a no-op.
func (m *Metrics) Push(ctx context.Context, log *logger.Logger, url, job, runID string) error {
	url = strings.TrimSpace(url)
	if m == nil || url == "" {
		return nil
	}
	p := push.New(url, job).Gatherer(m.reg)
	if runID != "" {
		p = p.Grouping("run_id", runID)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	if log != nil {
		log.Debug("Pushed metrics", "job", job, "pushgateway", url)
	}
	return nil
}
