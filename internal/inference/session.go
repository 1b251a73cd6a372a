// Package inference holds the serving-side pieces that consume the trained
// artifacts: a caller-owned simulation session, tensor assembly under the
// feature contract, and diagnosis of flagged windows.
package inference

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/machine-maintenance-backend/internal/inference/engine"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/normalize"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/schema"
)

// Session replays one machine's readings step by step. It is owned by the
// caller and never shared; discard it or call Reset to start over.
type Session struct {
	ID        string
	MachineID string
	Start     time.Time
	Cursor    time.Time
	Step      time.Duration
	Steps     int

	contract *schema.Contract
	window   [][]float64
}

func NewSession(c *schema.Contract, machineID string, start time.Time, step time.Duration) (*Session, error) {
	if step <= 0 {
		return nil, fmt.Errorf("session step must be > 0, got %v", step)
	}
	return &Session{
		ID:        uuid.New().String(),
		MachineID: machineID,
		Start:     start.UTC(),
		Cursor:    start.UTC(),
		Step:      step,
		contract:  c,
	}, nil
}

// Advance moves the cursor one step and returns the new position.
func (s *Session) Advance() time.Time {
	s.Cursor = s.Cursor.Add(s.Step)
	s.Steps++
	return s.Cursor
}

func (s *Session) Reset() {
	s.ID = uuid.New().String()
	s.Cursor = s.Start
	s.Steps = 0
	s.window = nil
}

// Observe conforms a named reading to the contract and appends it to the
// session window, keeping only the latest TimeSteps rows. Unknown names are
// returned.
func (s *Session) Observe(names []string, values []float64) ([]string, error) {
	row, unknown, err := s.contract.Conform(names, values)
	if err != nil {
		return unknown, err
	}
	s.window = append(s.window, row)
	if over := len(s.window) - s.contract.TimeSteps; over > 0 {
		s.window = append(s.window[:0:0], s.window[over:]...)
	}
	return unknown, nil
}

func (s *Session) Ready() bool { return len(s.window) >= s.contract.TimeSteps }

// Window returns the buffered raw rows in contract column order.
func (s *Session) Window() [][]float64 { return s.window }

// Input packs the buffered window into a [1, T, F] tensor.
func (s *Session) Input(scaler *normalize.Scaler) (engine.Tensor, error) {
	return Pack(s.contract, scaler, s.window)
}
