// Package label derives the forward-looking maintenance target and cleans
// the joined table before windowing.
package label

import (
	"context"
	"time"

	"github.com/yungbote/machine-maintenance-backend/internal/domain"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/join"
)

// Needed reports whether sorted events contain one in (t, t+tolerance].
func Needed(t time.Time, events []time.Time, tolerance time.Duration) bool {
	next, ok := join.FirstAfter(events, t)
	return ok && !next.After(t.Add(tolerance))
}

// Apply sets Labels on every partition from that machine's own events.
func Apply(ctx context.Context, tbl *domain.FeatureTable, events map[string][]time.Time, tolerance time.Duration, workers int) error {
	return domain.ForEachPartition(ctx, workers, tbl.Partitions, func(_ context.Context, _ int, p *domain.Partition) error {
		ev := events[p.MachineID]
		labels := make([]int8, p.Len())
		for r, ts := range p.Timestamps {
			if Needed(ts, ev, tolerance) {
				labels[r] = 1
			}
		}
		p.Labels = labels
		return nil
	})
}

type Distribution struct {
	Rows     int `json:"rows"`
	Negative int `json:"negative"`
	Positive int `json:"positive"`
}

func (d Distribution) PositiveFraction() float64 {
	if d.Rows == 0 {
		return 0
	}
	return float64(d.Positive) / float64(d.Rows)
}

func Distribute(tbl *domain.FeatureTable) Distribution {
	neg, pos := tbl.LabelCounts()
	return Distribution{Rows: neg + pos, Negative: neg, Positive: pos}
}
