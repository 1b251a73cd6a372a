// Package engine declares the boundary to the external sequence classifier.
package engine

import (
	"context"
	"fmt"
)

// Tensor is a dense [Batch, TimeSteps, Features] float32 array in row-major order.
type Tensor struct {
	Batch     int
	TimeSteps int
	Features  int
	Data      []float32
}

func (t Tensor) Validate() error {
	if t.Batch < 1 || t.TimeSteps < 1 || t.Features < 1 {
		return fmt.Errorf("tensor shape [%d,%d,%d] has an empty axis", t.Batch, t.TimeSteps, t.Features)
	}
	if len(t.Data) != t.Batch*t.TimeSteps*t.Features {
		return fmt.Errorf("tensor shape [%d,%d,%d] with %d values", t.Batch, t.TimeSteps, t.Features, len(t.Data))
	}
	return nil
}

// Sample returns the [TimeSteps, Features] slice of sample i.
func (t Tensor) Sample(i int) []float32 {
	stride := t.TimeSteps * t.Features
	return t.Data[i*stride : (i+1)*stride]
}

// Predictor returns one maintenance probability per sample.
type Predictor interface {
	Predict(ctx context.Context, input Tensor) ([]float64, error)
}
