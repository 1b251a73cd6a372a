package domain

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// FeatureRow is a read-only view of one (machine_id, timestamp) row.
type FeatureRow struct {
	MachineID string
	Timestamp time.Time
	Features  []float64
	Label     int8
}

// Partition holds one machine's rows in column-major layout. Columns[c][r]
// is the value of FeatureTable.Columns[c] at row r.
type Partition struct {
	MachineID  string
	Timestamps []time.Time
	Columns    [][]float64
	Labels     []int8
	// Segments holds the first row of every contiguous run once rows have
	// been dropped from the middle. Nil means the rows form one run.
	Segments []int
}

func (p *Partition) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Timestamps)
}

func (p *Partition) Row(i int) FeatureRow {
	features := make([]float64, len(p.Columns))
	for c := range p.Columns {
		features[c] = p.Columns[c][i]
	}
	var label int8
	if i < len(p.Labels) {
		label = p.Labels[i]
	}
	return FeatureRow{
		MachineID: p.MachineID,
		Timestamp: p.Timestamps[i],
		Features:  features,
		Label:     label,
	}
}

// Release drops the partition's row storage.
func (p *Partition) Release() {
	if p == nil {
		return
	}
	p.Timestamps = nil
	p.Columns = nil
	p.Labels = nil
	p.Segments = nil
}

// Keep retains only the rows whose index is marked true, preserving order.
// A kept row that follows a dropped one starts a new segment.
func (p *Partition) Keep(keep []bool) {
	n := 0
	var segments []int
	nextSeg := 0
	for r, ok := range keep {
		boundary := false
		for nextSeg < len(p.Segments) && p.Segments[nextSeg] <= r {
			boundary = boundary || p.Segments[nextSeg] == r
			nextSeg++
		}
		if !ok {
			continue
		}
		if n == 0 || boundary || !keep[r-1] {
			segments = append(segments, n)
		}
		p.Timestamps[n] = p.Timestamps[r]
		for c := range p.Columns {
			p.Columns[c][n] = p.Columns[c][r]
		}
		if len(p.Labels) > 0 {
			p.Labels[n] = p.Labels[r]
		}
		n++
	}
	p.Timestamps = p.Timestamps[:n]
	for c := range p.Columns {
		p.Columns[c] = p.Columns[c][:n]
	}
	if len(p.Labels) > 0 {
		p.Labels = p.Labels[:n]
	}
	if len(segments) > 1 {
		p.Segments = segments
	} else {
		p.Segments = nil
	}
}

// Runs returns the [start, end) bounds of every contiguous run of rows.
func (p *Partition) Runs() [][2]int {
	n := p.Len()
	if n == 0 {
		return nil
	}
	if len(p.Segments) == 0 {
		return [][2]int{{0, n}}
	}
	out := make([][2]int, 0, len(p.Segments))
	for i, start := range p.Segments {
		end := n
		if i+1 < len(p.Segments) {
			end = p.Segments[i+1]
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

// FeatureTable is the joined per-row feature set, partitioned by machine and
// ordered by (machine_id, timestamp).
type FeatureTable struct {
	Columns    []string
	Partitions []*Partition
}

func NewFeatureTable(columns []string) *FeatureTable {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &FeatureTable{Columns: cols}
}

func (t *FeatureTable) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

func (t *FeatureTable) Rows() int {
	n := 0
	for _, p := range t.Partitions {
		n += p.Len()
	}
	return n
}

func (t *FeatureTable) Partition(machineID string) *Partition {
	for _, p := range t.Partitions {
		if p != nil && p.MachineID == machineID {
			return p
		}
	}
	return nil
}

// AppendColumn adds a column; values must hold one slice per partition with
// that partition's row count.
func (t *FeatureTable) AppendColumn(name string, values [][]float64) error {
	if t.Index(name) >= 0 {
		return fmt.Errorf("column %q already exists", name)
	}
	if len(values) != len(t.Partitions) {
		return fmt.Errorf("column %q: %d partitions given, table has %d", name, len(values), len(t.Partitions))
	}
	for i, p := range t.Partitions {
		if len(values[i]) != p.Len() {
			return fmt.Errorf("column %q: machine %s has %d values for %d rows", name, p.MachineID, len(values[i]), p.Len())
		}
	}
	t.Columns = append(t.Columns, name)
	for i, p := range t.Partitions {
		p.Columns = append(p.Columns, values[i])
	}
	return nil
}

// Compact removes empty partitions.
func (t *FeatureTable) Compact() {
	out := t.Partitions[:0]
	for _, p := range t.Partitions {
		if p.Len() > 0 {
			out = append(out, p)
		}
	}
	t.Partitions = out
}

// LabelCounts returns the number of rows labelled 0 and 1.
func (t *FeatureTable) LabelCounts() (negative, positive int) {
	for _, p := range t.Partitions {
		for _, l := range p.Labels {
			if l == 1 {
				positive++
			} else {
				negative++
			}
		}
	}
	return negative, positive
}

// ForEachPartition runs fn for every partition with at most workers running
// at once. Each call owns its partition exclusively.
func ForEachPartition(ctx context.Context, workers int, parts []*Partition, fn func(ctx context.Context, i int, p *Partition) error) error {
	if workers < 1 {
		workers = 1
	}
	if workers == 1 {
		for i, p := range parts {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i, p); err != nil {
				return err
			}
		}
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range parts {
		i, p := i, p
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return fn(gctx, i, p)
		})
	}
	return g.Wait()
}
