package domain

// Sequence is T consecutive feature vectors of one machine plus the label of
// the row that follows the window.
type Sequence struct {
	MachineID string
	Features  [][]float32
	Label     int8
}

// SequenceBatch stores a machine's sequences contiguously:
// Features has shape [N, TimeSteps, NumFeatures] in row-major order.
type SequenceBatch struct {
	MachineID   string
	TimeSteps   int
	NumFeatures int
	Features    []float32
	Labels      []int8
}

func (b *SequenceBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Labels)
}

func (b *SequenceBatch) At(i int) Sequence {
	stride := b.TimeSteps * b.NumFeatures
	base := i * stride
	steps := make([][]float32, b.TimeSteps)
	for s := 0; s < b.TimeSteps; s++ {
		off := base + s*b.NumFeatures
		steps[s] = b.Features[off : off+b.NumFeatures : off+b.NumFeatures]
	}
	return Sequence{MachineID: b.MachineID, Features: steps, Label: b.Labels[i]}
}
