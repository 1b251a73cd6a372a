// Package mock is a deterministic stand-in for the trained classifier.
package mock

import (
	"context"
	"math"

	"github.com/yungbote/machine-maintenance-backend/internal/inference/engine"
)

// Engine scores a sample as the logistic of the mean of feature Column over
// all time steps.
type Engine struct {
	Column int
	Calls  int
}

func New() *Engine {
	return &Engine{}
}

func (e *Engine) Predict(ctx context.Context, input engine.Tensor) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	e.Calls++
	out := make([]float64, input.Batch)
	for i := range out {
		s := input.Sample(i)
		var sum float64
		for step := 0; step < input.TimeSteps; step++ {
			sum += float64(s[step*input.Features+e.Column])
		}
		out[i] = 1 / (1 + math.Exp(-sum/float64(input.TimeSteps)))
	}
	return out, nil
}
