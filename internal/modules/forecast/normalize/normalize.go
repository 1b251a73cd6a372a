// Package normalize fits and applies a per-feature zero-mean/unit-variance
// scaler over the whole corpus.
package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/yungbote/machine-maintenance-backend/internal/domain"
)

const ArtifactVersion = 1

// Scaler holds population statistics per column. Consumers must present
// features in Columns order.
type Scaler struct {
	SchemaVersion int       `json:"schema_version"`
	Columns       []string  `json:"columns"`
	Mean          []float64 `json:"mean"`
	Var           []float64 `json:"var"`
	Scale         []float64 `json:"scale"`
	NSamples      int64     `json:"n_samples"`
}

// moments is a running count/mean/M2 accumulator per column.
type moments struct {
	n    int64
	mean []float64
	m2   []float64
}

func newMoments(cols int) *moments {
	return &moments{mean: make([]float64, cols), m2: make([]float64, cols)}
}

func (m *moments) add(p *domain.Partition) {
	for r := 0; r < p.Len(); r++ {
		m.n++
		for c, col := range p.Columns {
			x := col[r]
			d := x - m.mean[c]
			m.mean[c] += d / float64(m.n)
			m.m2[c] += d * (x - m.mean[c])
		}
	}
}

func (m *moments) merge(o *moments) {
	if o.n == 0 {
		return
	}
	if m.n == 0 {
		m.n = o.n
		copy(m.mean, o.mean)
		copy(m.m2, o.m2)
		return
	}
	n := m.n + o.n
	for c := range m.mean {
		d := o.mean[c] - m.mean[c]
		m.mean[c] += d * float64(o.n) / float64(n)
		m.m2[c] += o.m2[c] + d*d*float64(m.n)*float64(o.n)/float64(n)
	}
	m.n = n
}

// Fit computes statistics over every row of every partition. Per-machine
// accumulators are merged in partition order, so the result does not depend
// on the worker count.
func Fit(ctx context.Context, tbl *domain.FeatureTable, workers int) (*Scaler, error) {
	cols := len(tbl.Columns)
	parts := make([]*moments, len(tbl.Partitions))
	err := domain.ForEachPartition(ctx, workers, tbl.Partitions, func(_ context.Context, i int, p *domain.Partition) error {
		if len(p.Columns) != cols {
			return fmt.Errorf("machine %s: %d columns, table has %d", p.MachineID, len(p.Columns), cols)
		}
		m := newMoments(cols)
		m.add(p)
		parts[i] = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	total := newMoments(cols)
	for _, m := range parts {
		total.merge(m)
	}
	if total.n == 0 {
		return nil, fmt.Errorf("normalize: no rows to fit")
	}
	s := &Scaler{
		SchemaVersion: ArtifactVersion,
		Columns:       append([]string{}, tbl.Columns...),
		Mean:          total.mean,
		Var:           make([]float64, cols),
		Scale:         make([]float64, cols),
		NSamples:      total.n,
	}
	for c := range s.Var {
		v := total.m2[c] / float64(total.n)
		if v < 0 {
			v = 0
		}
		s.Var[c] = v
		s.Scale[c] = math.Sqrt(v)
		if s.Scale[c] == 0 {
			s.Scale[c] = 1
		}
	}
	return s, nil
}

func (s *Scaler) Width() int { return len(s.Columns) }

// Transform writes the scaled row into dst (allocated when nil).
func (s *Scaler) Transform(dst, row []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(row))
	}
	for c, x := range row {
		dst[c] = (x - s.Mean[c]) / s.Scale[c]
	}
	return dst
}

func (s *Scaler) Inverse(dst, row []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(row))
	}
	for c, z := range row {
		dst[c] = z*s.Scale[c] + s.Mean[c]
	}
	return dst
}

func (s *Scaler) Marshal() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func Unmarshal(raw []byte) (*Scaler, error) {
	var s Scaler
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}
	if s.SchemaVersion != ArtifactVersion {
		return nil, fmt.Errorf("scaler schema_version %d, want %d", s.SchemaVersion, ArtifactVersion)
	}
	n := len(s.Columns)
	if len(s.Mean) != n || len(s.Var) != n || len(s.Scale) != n {
		return nil, fmt.Errorf("scaler arrays do not match %d columns", n)
	}
	for c, sc := range s.Scale {
		if sc == 0 || math.IsNaN(sc) {
			return nil, fmt.Errorf("scaler column %s has invalid scale %v", s.Columns[c], sc)
		}
	}
	return &s, nil
}
