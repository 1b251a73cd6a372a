// Package schema defines the versioned feature contract shared by the
// sequence writer and serving-side consumers.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/normalize"
)

const (
	MissingError = "error"
	MissingMean  = "mean"
)

// Contract pins the ordered feature columns and the rules applied when a
// caller's feature set drifts from it.
type Contract struct {
	Version       int      `json:"version"`
	Columns       []string `json:"columns"`
	TimeSteps     int      `json:"time_steps"`
	MissingPolicy string   `json:"missing_policy"`
	// Fill holds the per-column value used under the mean policy, in raw
	// (unscaled) units.
	Fill []float64 `json:"fill,omitempty"`
}

type ContractError struct {
	Reason  string
	Missing []string
}

func (e *ContractError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("feature contract: %s: %s", e.Reason, strings.Join(e.Missing, ", "))
	}
	return "feature contract: " + e.Reason
}

// New builds a contract whose columns are exactly the scaler's.
func New(version, timeSteps int, policy string, s *normalize.Scaler) (*Contract, error) {
	switch policy {
	case MissingError, MissingMean:
	default:
		return nil, &ContractError{Reason: fmt.Sprintf("unknown missing policy %q", policy)}
	}
	c := &Contract{
		Version:       version,
		Columns:       append([]string{}, s.Columns...),
		TimeSteps:     timeSteps,
		MissingPolicy: policy,
	}
	if policy == MissingMean {
		c.Fill = append([]float64{}, s.Mean...)
	}
	return c, nil
}

func (c *Contract) Width() int { return len(c.Columns) }

// Check verifies that a scaler was fit on this contract's columns.
func (c *Contract) Check(s *normalize.Scaler) error {
	if len(s.Columns) != len(c.Columns) {
		return &ContractError{Reason: fmt.Sprintf("scaler has %d columns, contract has %d", len(s.Columns), len(c.Columns))}
	}
	for i := range c.Columns {
		if s.Columns[i] != c.Columns[i] {
			return &ContractError{Reason: fmt.Sprintf("column %d is %q in scaler, %q in contract", i, s.Columns[i], c.Columns[i])}
		}
	}
	return nil
}

// Conform maps a named feature vector onto contract order. Unknown names are
// dropped and returned; missing names are filled per MissingPolicy.
func (c *Contract) Conform(names []string, values []float64) ([]float64, []string, error) {
	if len(names) != len(values) {
		return nil, nil, &ContractError{Reason: fmt.Sprintf("%d names for %d values", len(names), len(values))}
	}
	pos := make(map[string]int, len(c.Columns))
	for i, col := range c.Columns {
		pos[col] = i
	}
	out := make([]float64, len(c.Columns))
	seen := make([]bool, len(c.Columns))
	var unknown []string
	for i, name := range names {
		j, ok := pos[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		out[j] = values[i]
		seen[j] = true
	}
	var missing []string
	for j, ok := range seen {
		if ok {
			continue
		}
		if c.MissingPolicy != MissingMean || j >= len(c.Fill) {
			missing = append(missing, c.Columns[j])
			continue
		}
		out[j] = c.Fill[j]
	}
	if len(missing) > 0 {
		return nil, unknown, &ContractError{Reason: "missing columns", Missing: missing}
	}
	return out, unknown, nil
}

func (c *Contract) Marshal() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

func Unmarshal(raw []byte) (*Contract, error) {
	var c Contract
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode feature contract: %w", err)
	}
	if c.Version < 1 || c.TimeSteps < 1 || len(c.Columns) == 0 {
		return nil, &ContractError{Reason: "incomplete contract"}
	}
	if c.MissingPolicy == MissingMean && len(c.Fill) != len(c.Columns) {
		return nil, &ContractError{Reason: "mean policy without fill values"}
	}
	return &c, nil
}
