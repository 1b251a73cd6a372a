package inference

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/yungbote/machine-maintenance-backend/internal/inference/engine"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/normalize"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/schema"
)

const (
	IssueOverheating = "Overheating Risk"
	IssueWear        = "Mechanical Wear"
	IssuePressure    = "Pressure Fluctuation"
	IssueMoisture    = "Moisture Ingress"
	IssuePreventive  = "Preventive Maintenance"

	UrgencyCritical = "CRITICAL"
	UrgencyWarning  = "WARNING"
)

// Diagnose maps the time-averaged normalized metrics of one [T, F] window to
// likely causes. Metrics absent from the contract are not checked.
func Diagnose(c *schema.Contract, window []float32) []string {
	f := c.Width()
	if f == 0 || len(window) < f {
		return []string{IssuePreventive}
	}
	steps := len(window) / f
	mean := func(col string) (float64, bool) {
		j := -1
		for i, name := range c.Columns {
			if name == col {
				j = i
				break
			}
		}
		if j < 0 {
			return 0, false
		}
		var sum float64
		for s := 0; s < steps; s++ {
			sum += float64(window[s*f+j])
		}
		return sum / float64(steps), true
	}
	var out []string
	if v, ok := mean("temperature"); ok && v > 2.0 {
		out = append(out, IssueOverheating)
	}
	if v, ok := mean("vibration"); ok && v > 1.5 {
		out = append(out, IssueWear)
	}
	if v, ok := mean("pressure"); ok && math.Abs(v) > 2.0 {
		out = append(out, IssuePressure)
	}
	if v, ok := mean("humidity"); ok && v > 1.8 {
		out = append(out, IssueMoisture)
	}
	if len(out) == 0 {
		return []string{IssuePreventive}
	}
	return out
}

// Urgency grades a probability; below the warning threshold it is "".
func Urgency(p float64) string {
	switch {
	case p > 0.75:
		return UrgencyCritical
	case p > 0.5:
		return UrgencyWarning
	default:
		return ""
	}
}

type Prediction struct {
	MachineID      string    `json:"machine_id"`
	PredictionTime time.Time `json:"prediction_time"`
	Probability    float64   `json:"probability"`
	ExpectedIssues []string  `json:"expected_issues"`
	Urgency        string    `json:"urgency"`
}

// Forecaster scores every window of a machine's recent history and keeps
// the ones the classifier flags.
type Forecaster struct {
	Contract  *schema.Contract
	Scaler    *normalize.Scaler
	Predictor engine.Predictor
}

// Scan expects rows in contract order sorted by timestamp. A window ending at
// row j+T-1 is reported at timestamps[j+T].
func (f *Forecaster) Scan(ctx context.Context, machineID string, timestamps []time.Time, rows [][]float64) ([]Prediction, error) {
	if len(timestamps) != len(rows) {
		return nil, fmt.Errorf("%d timestamps for %d rows", len(timestamps), len(rows))
	}
	t := f.Contract.TimeSteps
	var out []Prediction
	for j := 0; j+t < len(rows); j++ {
		input, err := Pack(f.Contract, f.Scaler, rows[j:j+t])
		if err != nil {
			return nil, err
		}
		probs, err := f.Predictor.Predict(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("predict machine %s window %d: %w", machineID, j, err)
		}
		if len(probs) != 1 {
			return nil, fmt.Errorf("predictor returned %d probabilities for one window", len(probs))
		}
		p := probs[0]
		u := Urgency(p)
		if u == "" {
			continue
		}
		out = append(out, Prediction{
			MachineID:      machineID,
			PredictionTime: timestamps[j+t],
			Probability:    p,
			ExpectedIssues: Diagnose(f.Contract, input.Sample(0)),
			Urgency:        u,
		})
	}
	return out, nil
}
