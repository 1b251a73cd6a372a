// Package sequence turns each machine's cleaned rows into fixed-length
// training windows and persists them as one shard per machine.
package sequence

import (
	"fmt"

	"github.com/yungbote/machine-maintenance-backend/internal/domain"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/normalize"
)

// Count is the number of windows a run of n contiguous rows yields.
func Count(n, timeSteps int) int {
	if n <= timeSteps {
		return 0
	}
	return n - timeSteps
}

// WindowStarts returns the first row of every window that fits, with its
// label row, inside a single run of the partition. Windows never bridge
// rows dropped during cleaning.
func WindowStarts(p *domain.Partition, timeSteps int) []int {
	var out []int
	for _, run := range p.Runs() {
		for j := 0; j < Count(run[1]-run[0], timeSteps); j++ {
			out = append(out, run[0]+j)
		}
	}
	return out
}

// Windowize normalizes a partition and slices it into every window of
// timeSteps consecutive rows. Window [j, j+T) carries the label of row j+T.
func Windowize(p *domain.Partition, scaler *normalize.Scaler, timeSteps int) (*domain.SequenceBatch, error) {
	if timeSteps < 1 {
		return nil, fmt.Errorf("time steps must be >= 1, got %d", timeSteps)
	}
	f := len(p.Columns)
	if scaler.Width() != f {
		return nil, fmt.Errorf("machine %s: %d feature columns, scaler fit on %d", p.MachineID, f, scaler.Width())
	}
	n := p.Len()
	if len(p.Labels) != n {
		return nil, fmt.Errorf("machine %s: %d labels for %d rows", p.MachineID, len(p.Labels), n)
	}
	batch := &domain.SequenceBatch{MachineID: p.MachineID, TimeSteps: timeSteps, NumFeatures: f}
	starts := WindowStarts(p, timeSteps)
	count := len(starts)
	if count == 0 {
		return batch, nil
	}

	scaled := make([]float32, n*f)
	raw := make([]float64, f)
	z := make([]float64, f)
	for r := 0; r < n; r++ {
		for c := 0; c < f; c++ {
			raw[c] = p.Columns[c][r]
		}
		scaler.Transform(z, raw)
		for c := 0; c < f; c++ {
			scaled[r*f+c] = float32(z[c])
		}
	}

	stride := timeSteps * f
	batch.Features = make([]float32, count*stride)
	batch.Labels = make([]int8, count)
	for i, j := range starts {
		copy(batch.Features[i*stride:(i+1)*stride], scaled[j*f:(j+timeSteps)*f])
		batch.Labels[i] = p.Labels[j+timeSteps]
	}
	return batch, nil
}

// Concat joins batches with equal shapes in the given order.
func Concat(batches []*domain.SequenceBatch) (*domain.SequenceBatch, error) {
	out := &domain.SequenceBatch{}
	for _, b := range batches {
		if b.Len() == 0 {
			continue
		}
		if out.TimeSteps == 0 {
			out.TimeSteps, out.NumFeatures = b.TimeSteps, b.NumFeatures
		}
		if b.TimeSteps != out.TimeSteps || b.NumFeatures != out.NumFeatures {
			return nil, fmt.Errorf("machine %s: shape [%d,%d] does not match [%d,%d]", b.MachineID, b.TimeSteps, b.NumFeatures, out.TimeSteps, out.NumFeatures)
		}
		out.Features = append(out.Features, b.Features...)
		out.Labels = append(out.Labels, b.Labels...)
	}
	return out, nil
}
