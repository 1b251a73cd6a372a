package join

import (
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/yungbote/machine-maintenance-backend/internal/domain"
)

const (
	OrphanImpute = "impute"
	OrphanDrop   = "drop"
)

// LogEntry is a maintenance log row before task linkage.
type LogEntry struct {
	TaskID string
	Date   time.Time
}

type LinkStats struct {
	Linked  int
	Orphans int
	Imputed int
	Dropped int
}

// LinkMaintenance attributes each log entry to a machine through its task.
// Orphans are either assigned a machine drawn uniformly from registry, or
// dropped. Entries are processed in (date, task id) order so a seeded rng
// yields the same assignment on every run.
func LinkMaintenance(logs []LogEntry, taskMachine map[string]string, registry []string, policy string, rng *rand.Rand) ([]domain.MaintenanceEvent, LinkStats) {
	ordered := make([]LogEntry, len(logs))
	copy(ordered, logs)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].Date.Before(ordered[j].Date)
		}
		return domain.CompareMachineIDs(ordered[i].TaskID, ordered[j].TaskID) < 0
	})

	ids := make([]string, len(registry))
	copy(ids, registry)
	domain.SortMachineIDs(ids)

	var st LinkStats
	out := make([]domain.MaintenanceEvent, 0, len(ordered))
	for _, l := range ordered {
		mid := strings.TrimSpace(taskMachine[l.TaskID])
		if mid != "" {
			st.Linked++
			out = append(out, domain.MaintenanceEvent{TaskID: l.TaskID, MachineID: mid, Date: l.Date})
			continue
		}
		st.Orphans++
		if policy != OrphanImpute || len(ids) == 0 || rng == nil {
			st.Dropped++
			continue
		}
		st.Imputed++
		out = append(out, domain.MaintenanceEvent{
			TaskID:    l.TaskID,
			MachineID: ids[rng.Intn(len(ids))],
			Date:      l.Date,
			Imputed:   true,
		})
	}
	return out, st
}

// EventsByMachine groups event dates per machine in ascending order.
func EventsByMachine(events []domain.MaintenanceEvent) map[string][]time.Time {
	out := map[string][]time.Time{}
	for _, ev := range events {
		out[ev.MachineID] = append(out[ev.MachineID], ev.Date)
	}
	for _, ts := range out {
		sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
	}
	return out
}

// LastAtOrBefore returns the latest time in sorted ts that is <= t.
func LastAtOrBefore(ts []time.Time, t time.Time) (time.Time, bool) {
	i := sort.Search(len(ts), func(i int) bool { return ts[i].After(t) })
	if i == 0 {
		return time.Time{}, false
	}
	return ts[i-1], true
}

// FirstAfter returns the earliest time in sorted ts that is strictly after t.
func FirstAfter(ts []time.Time, t time.Time) (time.Time, bool) {
	i := sort.Search(len(ts), func(i int) bool { return ts[i].After(t) })
	if i == len(ts) {
		return time.Time{}, false
	}
	return ts[i], true
}
