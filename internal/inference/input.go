package inference

import (
	"fmt"

	"github.com/yungbote/machine-maintenance-backend/internal/inference/engine"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/normalize"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/schema"
)

// BuildInput conforms each named row, normalizes it and packs the last
// TimeSteps rows into a [1, T, F] tensor.
func BuildInput(c *schema.Contract, s *normalize.Scaler, names []string, rows [][]float64) (engine.Tensor, error) {
	conformed := make([][]float64, 0, len(rows))
	for i, r := range rows {
		out, _, err := c.Conform(names, r)
		if err != nil {
			return engine.Tensor{}, fmt.Errorf("row %d: %w", i, err)
		}
		conformed = append(conformed, out)
	}
	return Pack(c, s, conformed)
}

// Pack normalizes rows already in contract order into a [1, T, F] tensor
// taken from the last T rows.
func Pack(c *schema.Contract, s *normalize.Scaler, rows [][]float64) (engine.Tensor, error) {
	if err := c.Check(s); err != nil {
		return engine.Tensor{}, err
	}
	t, f := c.TimeSteps, c.Width()
	if len(rows) < t {
		return engine.Tensor{}, fmt.Errorf("need %d rows for one window, got %d", t, len(rows))
	}
	rows = rows[len(rows)-t:]
	out := engine.Tensor{Batch: 1, TimeSteps: t, Features: f, Data: make([]float32, t*f)}
	z := make([]float64, f)
	for step, r := range rows {
		if len(r) != f {
			return engine.Tensor{}, fmt.Errorf("row %d has %d values, contract has %d", step, len(r), f)
		}
		s.Transform(z, r)
		for j, v := range z {
			out.Data[step*f+j] = float32(v)
		}
	}
	return out, nil
}
