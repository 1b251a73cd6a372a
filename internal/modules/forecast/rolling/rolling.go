// Package rolling computes causal time-windowed statistics per machine.
package rolling

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/yungbote/machine-maintenance-backend/internal/domain"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
)

type Spec struct {
	Metrics []string
	Windows []time.Duration
}

// ComboError is the isolated failure of one metric x window combination.
type ComboError struct {
	Metric string
	Window time.Duration
	Err    error
}

func (e *ComboError) Error() string {
	return fmt.Sprintf("rolling %s over %s: %v", e.Metric, FormatWindow(e.Window), e.Err)
}

func (e *ComboError) Unwrap() error { return e.Err }

type Result struct {
	Columns []string
	// Absent lists requested metrics the sensor source does not carry.
	Absent []string
	Failed []*ComboError
}

// FormatWindow renders a window for column names: 1h, 30m, 45s.
func FormatWindow(d time.Duration) string {
	switch {
	case d > 0 && d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d > 0 && d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	case d > 0 && d%time.Second == 0:
		return fmt.Sprintf("%ds", d/time.Second)
	default:
		return d.String()
	}
}

func MeanColumn(metric string, w time.Duration) string {
	return metric + "_rolling_mean_" + FormatWindow(w)
}

func MaxColumn(metric string, w time.Duration) string {
	return metric + "_rolling_max_" + FormatWindow(w)
}

// Apply appends mean and max columns for every present metric and window.
// A failing combination is recorded in Result.Failed and its columns are
// left out; only context cancellation aborts the call.
func Apply(ctx context.Context, tbl *domain.FeatureTable, spec Spec, workers int, baseLog *logger.Logger) (*Result, error) {
	log := baseLog.With("stage", "rolling")
	res := &Result{}
	for _, metric := range spec.Metrics {
		col := tbl.Index(metric)
		if col < 0 {
			res.Absent = append(res.Absent, metric)
			log.Info("Rolling metric absent from sensor source, skipping", "metric", metric)
			continue
		}
		for _, w := range spec.Windows {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			means, maxes, err := computeCombo(ctx, tbl, col, w, workers)
			if err == nil {
				err = appendPair(tbl, metric, w, means, maxes)
			}
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				ce := &ComboError{Metric: metric, Window: w, Err: err}
				res.Failed = append(res.Failed, ce)
				log.Warn("Rolling combination failed, continuing", "metric", metric, "window", FormatWindow(w), "error", err)
				continue
			}
			res.Columns = append(res.Columns, MeanColumn(metric, w), MaxColumn(metric, w))
		}
	}
	log.Info("Computed rolling features", "columns", len(res.Columns), "absent", len(res.Absent), "failed", len(res.Failed))
	return res, nil
}

func appendPair(tbl *domain.FeatureTable, metric string, w time.Duration, means, maxes [][]float64) error {
	meanName, maxName := MeanColumn(metric, w), MaxColumn(metric, w)
	if tbl.Index(meanName) >= 0 || tbl.Index(maxName) >= 0 {
		return fmt.Errorf("output column already exists")
	}
	if err := tbl.AppendColumn(meanName, means); err != nil {
		return err
	}
	return tbl.AppendColumn(maxName, maxes)
}

func computeCombo(ctx context.Context, tbl *domain.FeatureTable, col int, w time.Duration, workers int) (means, maxes [][]float64, err error) {
	if w <= 0 {
		return nil, nil, fmt.Errorf("window must be positive")
	}
	means = make([][]float64, len(tbl.Partitions))
	maxes = make([][]float64, len(tbl.Partitions))
	err = domain.ForEachPartition(ctx, workers, tbl.Partitions, func(_ context.Context, i int, p *domain.Partition) (perr error) {
		defer func() {
			if r := recover(); r != nil {
				perr = fmt.Errorf("machine %s: %v", p.MachineID, r)
			}
		}()
		if col >= len(p.Columns) || len(p.Columns[col]) != p.Len() {
			return fmt.Errorf("machine %s: malformed column", p.MachineID)
		}
		means[i], maxes[i] = Window(p.Timestamps, p.Columns[col], w)
		return nil
	})
	return means, maxes, err
}

// Window computes mean and max over (t-w, t] ending at each row. Rows are
// assumed sorted by time; null values are ignored and a row with no
// observation in its window gets null.
func Window(ts []time.Time, vals []float64, w time.Duration) (means, maxes []float64) {
	n := len(vals)
	means = make([]float64, n)
	maxes = make([]float64, n)
	var (
		sum   float64
		count int
		left  int
		// indices of non-null values in the window with decreasing values
		dq []int
	)
	for r := 0; r < n; r++ {
		if v := vals[r]; !math.IsNaN(v) {
			sum += v
			count++
			for len(dq) > 0 && vals[dq[len(dq)-1]] <= v {
				dq = dq[:len(dq)-1]
			}
			dq = append(dq, r)
		}
		start := ts[r].Add(-w)
		for left <= r && !ts[left].After(start) {
			if v := vals[left]; !math.IsNaN(v) {
				sum -= v
				count--
			}
			left++
		}
		for len(dq) > 0 && dq[0] < left {
			dq = dq[1:]
		}
		if count == 0 {
			means[r], maxes[r] = domain.Null, domain.Null
			sum = 0
			continue
		}
		means[r] = sum / float64(count)
		maxes[r] = vals[dq[0]]
	}
	return means, maxes
}
