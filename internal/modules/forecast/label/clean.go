package label

import (
	"context"
	"sync/atomic"

	"github.com/yungbote/machine-maintenance-backend/internal/domain"
)

type CleanStats struct {
	Filled  int
	Dropped int
}

// Clean forward-fills nulls per machine and column, then drops rows that
// still hold a null. limit caps consecutive fills; 0 fills without a cap.
func Clean(ctx context.Context, tbl *domain.FeatureTable, limit, workers int) (CleanStats, error) {
	var filled, dropped int64
	err := domain.ForEachPartition(ctx, workers, tbl.Partitions, func(_ context.Context, _ int, p *domain.Partition) error {
		f, d := cleanPartition(p, limit)
		atomic.AddInt64(&filled, int64(f))
		atomic.AddInt64(&dropped, int64(d))
		return nil
	})
	if err != nil {
		return CleanStats{}, err
	}
	tbl.Compact()
	return CleanStats{Filled: int(filled), Dropped: int(dropped)}, nil
}

func cleanPartition(p *domain.Partition, limit int) (filled, dropped int) {
	n := p.Len()
	for _, col := range p.Columns {
		filled += ForwardFill(col, limit)
	}
	keep := make([]bool, n)
	for r := 0; r < n; r++ {
		keep[r] = true
		for _, col := range p.Columns {
			if domain.IsNull(col[r]) {
				keep[r] = false
				dropped++
				break
			}
		}
	}
	if dropped > 0 {
		p.Keep(keep)
	}
	return filled, dropped
}

// ForwardFill replaces nulls with the last prior value in place and returns
// the number of filled cells. Leading nulls stay null.
func ForwardFill(col []float64, limit int) int {
	filled := 0
	last := domain.Null
	run := 0
	for i, v := range col {
		if !domain.IsNull(v) {
			last = v
			run = 0
			continue
		}
		if domain.IsNull(last) {
			continue
		}
		run++
		if limit > 0 && run > limit {
			continue
		}
		col[i] = last
		filled++
	}
	return filled
}
