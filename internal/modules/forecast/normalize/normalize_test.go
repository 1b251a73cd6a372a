package normalize

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/yungbote/machine-maintenance-backend/internal/domain"
)

func fixture() *domain.FeatureTable {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tbl := domain.NewFeatureTable([]string{"temperature", "constant"})
	tbl.Partitions = []*domain.Partition{
		{MachineID: "1", Timestamps: []time.Time{t0, t0.Add(time.Hour)}, Columns: [][]float64{{1, 2}, {5, 5}}},
		{MachineID: "2", Timestamps: []time.Time{t0, t0.Add(time.Hour), t0.Add(2 * time.Hour)}, Columns: [][]float64{{3, 4, 5}, {5, 5, 5}}},
	}
	return tbl
}

func TestFitPopulationStatistics(t *testing.T) {
	for _, workers := range []int{1, 4} {
		s, err := Fit(context.Background(), fixture(), workers)
		if err != nil {
			t.Fatalf("Fit: %v", err)
		}
		if s.NSamples != 5 {
			t.Fatalf("n: want=5 got=%d", s.NSamples)
		}
		if math.Abs(s.Mean[0]-3) > 1e-12 || math.Abs(s.Var[0]-2) > 1e-12 {
			t.Fatalf("temperature: want mean=3 var=2 got mean=%v var=%v", s.Mean[0], s.Var[0])
		}
		if s.Var[1] != 0 || s.Scale[1] != 1 {
			t.Fatalf("constant column: want var=0 scale=1 got var=%v scale=%v", s.Var[1], s.Scale[1])
		}
	}
}

func TestTransformRoundTrip(t *testing.T) {
	s, err := Fit(context.Background(), fixture(), 1)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	row := []float64{4.25, 7}
	z := s.Transform(nil, row)
	back := s.Inverse(nil, z)
	for i := range row {
		if math.Abs(back[i]-row[i]) > 1e-9 {
			t.Fatalf("round trip col %d: want=%v got=%v", i, row[i], back[i])
		}
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	s, err := Fit(context.Background(), fixture(), 1)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	raw, err := s.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Columns[0] != "temperature" || got.Mean[0] != s.Mean[0] || got.Scale[0] != s.Scale[0] {
		t.Fatalf("artifact: got=%+v", got)
	}
	if _, err := Unmarshal([]byte(`{"schema_version":1,"columns":["a"],"mean":[],"var":[],"scale":[]}`)); err == nil {
		t.Fatalf("Unmarshal: expected shape error")
	}
}

func TestFitEmptyTable(t *testing.T) {
	if _, err := Fit(context.Background(), domain.NewFeatureTable([]string{"a"}), 1); err == nil {
		t.Fatalf("Fit: expected error on empty table")
	}
}
