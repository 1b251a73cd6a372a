package domain

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSortMachineIDs(t *testing.T) {
	ids := []string{"10", "b", "2", "a", "1"}
	SortMachineIDs(ids)
	want := []string{"1", "2", "10", "a", "b"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("SortMachineIDs: want=%v got=%v", want, ids)
		}
	}
}

func testPartition(id string, vals ...float64) *Partition {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &Partition{MachineID: id, Columns: [][]float64{make([]float64, len(vals))}}
	for i, v := range vals {
		p.Timestamps = append(p.Timestamps, base.Add(time.Duration(i)*time.Hour))
		p.Columns[0][i] = v
		p.Labels = append(p.Labels, int8(i%2))
	}
	return p
}

func TestPartitionKeepPreservesOrder(t *testing.T) {
	p := testPartition("1", 10, 11, 12, 13)
	p.Keep([]bool{true, false, true, true})
	if p.Len() != 3 {
		t.Fatalf("Len: want=3 got=%d", p.Len())
	}
	if p.Columns[0][0] != 10 || p.Columns[0][1] != 12 || p.Columns[0][2] != 13 {
		t.Fatalf("values: got=%v", p.Columns[0])
	}
	if p.Labels[1] != 0 || p.Labels[2] != 1 {
		t.Fatalf("labels: got=%v", p.Labels)
	}
	if !p.Timestamps[0].Before(p.Timestamps[1]) {
		t.Fatalf("timestamps out of order: %v", p.Timestamps)
	}
}

func TestAppendColumnValidatesShape(t *testing.T) {
	tbl := NewFeatureTable([]string{"temperature"})
	tbl.Partitions = []*Partition{testPartition("1", 1, 2), testPartition("2", 3)}

	if err := tbl.AppendColumn("temperature", [][]float64{{0, 0}, {0}}); err == nil {
		t.Fatalf("AppendColumn duplicate: expected error")
	}
	if err := tbl.AppendColumn("x", [][]float64{{0}, {0}}); err == nil {
		t.Fatalf("AppendColumn short: expected error")
	}
	if err := tbl.AppendColumn("x", [][]float64{{5, 6}, {7}}); err != nil {
		t.Fatalf("AppendColumn: %v", err)
	}
	if got := tbl.Partition("2").Row(0).Features; len(got) != 2 || got[1] != 7 {
		t.Fatalf("Row: got=%v", got)
	}
}

func TestForEachPartitionVisitsAll(t *testing.T) {
	parts := []*Partition{testPartition("1", 1), testPartition("2", 2), testPartition("3", 3)}
	for _, workers := range []int{1, 3} {
		var seen int32
		err := ForEachPartition(context.Background(), workers, parts, func(_ context.Context, _ int, p *Partition) error {
			atomic.AddInt32(&seen, 1)
			return nil
		})
		if err != nil {
			t.Fatalf("ForEachPartition(%d): %v", workers, err)
		}
		if seen != 3 {
			t.Fatalf("ForEachPartition(%d): want=3 got=%d", workers, seen)
		}
	}
}

func TestKeepRecordsRuns(t *testing.T) {
	p := testPartition("1", 0, 1, 2, 3, 4, 5, 6)
	if runs := p.Runs(); len(runs) != 1 || runs[0] != [2]int{0, 7} {
		t.Fatalf("Runs before drop: got=%v", runs)
	}
	// drop a leading row and row 3: only the interior drop splits
	p.Keep([]bool{false, true, true, false, true, true, true})
	if runs := p.Runs(); len(runs) != 2 || runs[0] != [2]int{0, 2} || runs[1] != [2]int{2, 5} {
		t.Fatalf("Runs after drop: got=%v", runs)
	}
	// a second drop inside the tail run keeps the earlier boundary
	p.Keep([]bool{true, true, true, false, true})
	if runs := p.Runs(); len(runs) != 3 || runs[1] != [2]int{2, 3} || runs[2] != [2]int{3, 4} {
		t.Fatalf("Runs after second drop: got=%v", runs)
	}
	// trailing drops do not open a segment
	q := testPartition("2", 0, 1, 2)
	q.Keep([]bool{true, true, false})
	if q.Segments != nil {
		t.Fatalf("Segments after trailing drop: want=nil got=%v", q.Segments)
	}
}
