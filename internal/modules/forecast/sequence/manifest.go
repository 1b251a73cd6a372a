package sequence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/yungbote/machine-maintenance-backend/internal/platform/objstore"
)

const ManifestVersion = 1

// Manifest describes one completed run and the artifacts it left behind.
type Manifest struct {
	Version      int                `json:"version"`
	RunID        string             `json:"run_id"`
	CreatedAt    time.Time          `json:"created_at"`
	TimeSteps    int                `json:"time_steps"`
	Columns      []string           `json:"columns"`
	ScalerKey    string             `json:"scaler_key"`
	ContractKey  string             `json:"contract_key"`
	Shards       []ShardInfo        `json:"shards"`
	Skipped      []string           `json:"skipped_machines,omitempty"`
	Sequences    int                `json:"sequences"`
	Positive     int                `json:"positive_rows"`
	Negative     int                `json:"negative_rows"`
	Sample       *SampleSummary     `json:"sample,omitempty"`
	ClassWeights map[string]float64 `json:"class_weights,omitempty"`
}

type SampleSummary struct {
	Seed           int64    `json:"seed"`
	Fraction       float64  `json:"fraction"`
	TestFraction   float64  `json:"test_fraction"`
	Keys           []string `json:"keys"`
	TrainSequences int      `json:"train_sequences"`
	TestSequences  int      `json:"test_sequences"`
}

func ManifestKey(prefix string) string { return objstore.Join(prefix, "manifest.json") }
func ScalerKey(prefix string) string   { return objstore.Join(prefix, "scaler.json") }
func ContractKey(prefix string) string { return objstore.Join(prefix, "feature_contract.json") }

func (m *Manifest) Marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func UnmarshalManifest(raw []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("manifest version %d, want %d", m.Version, ManifestVersion)
	}
	return &m, nil
}

// ShardKeys returns the keys of the shards this run wrote.
func (m *Manifest) ShardKeys() []string {
	out := make([]string, 0, len(m.Shards))
	for _, s := range m.Shards {
		out = append(out, s.Key)
	}
	return out
}
