// Package join aligns the per-machine sensor, registry, maintenance,
// environmental and usage record sets onto the sensor timestamp axis.
package join

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/yungbote/machine-maintenance-backend/internal/data/source"
	"github.com/yungbote/machine-maintenance-backend/internal/domain"
	"github.com/yungbote/machine-maintenance-backend/internal/observability"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
)

type Config struct {
	// Tables maps each logical table to its physical name.
	Tables map[domain.Table]string
	// Required lists the columns each table must expose.
	Required             map[domain.Table][]string
	ExcludeSensorColumns []string
	ChunkSize            int
	Workers              int
	OrphanPolicy         string
	// Rand drives orphan imputation. Nil means wall-clock seeding.
	Rand *rand.Rand
}

func (c Config) table(t domain.Table) string {
	if name := c.Tables[t]; name != "" {
		return name
	}
	return string(t)
}

// Report carries the counts of every row the join repaired or discarded.
type Report struct {
	SensorRows     int
	OutputRows     int
	Machines       int
	Metrics        []string
	BadTimestamps  map[domain.Table]int
	MissingMachine map[domain.Table]int
	DuplicateKeys  map[domain.Table]int
	NonNumeric     int
	Link           LinkStats
	// UnknownMachines counts sensor machines absent from the registry.
	UnknownMachines int
}

func newReport() *Report {
	return &Report{
		BadTimestamps:  map[domain.Table]int{},
		MissingMachine: map[domain.Table]int{},
		DuplicateKeys:  map[domain.Table]int{},
	}
}

// Issues flattens the report for data-quality reporting.
func (r *Report) Issues() []observability.Issue {
	var out []observability.Issue
	for _, t := range domain.AllTables() {
		if n := r.BadTimestamps[t]; n > 0 {
			is := observability.Dropped("unparseable_timestamp", n)
			is.Meta = map[string]any{"table": string(t)}
			out = append(out, is)
		}
		if n := r.MissingMachine[t]; n > 0 {
			is := observability.Dropped("missing_machine_id", n)
			is.Meta = map[string]any{"table": string(t)}
			out = append(out, is)
		}
		if n := r.DuplicateKeys[t]; n > 0 {
			is := observability.Dropped("duplicate_key", n)
			is.Meta = map[string]any{"table": string(t)}
			out = append(out, is)
		}
	}
	out = append(out,
		observability.Imputed("orphan_maintenance_event", r.Link.Imputed),
		observability.Dropped("orphan_maintenance_event", r.Link.Dropped),
	)
	return out
}

// Joined is the output of Build: the feature table plus the linked
// maintenance event dates per machine, ascending.
type Joined struct {
	Table  *domain.FeatureTable
	Events map[string][]time.Time
	Report *Report
}

type Engine struct {
	src source.Source
	cfg Config
	log *logger.Logger
}

func NewEngine(src source.Source, cfg Config, baseLog *logger.Logger) *Engine {
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = 10000
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.OrphanPolicy == "" {
		cfg.OrphanPolicy = OrphanImpute
	}
	return &Engine{src: src, cfg: cfg, log: baseLog.With("stage", "join")}
}

// JoinedColumns lists the non-metric columns in output order.
func JoinedColumns() []string {
	return []string{
		domain.ColModelID,
		domain.ColTypeID,
		domain.ColDaysSinceMaintenance,
		domain.ColMaintenanceUrgency,
		domain.ColExternalTemperature,
		domain.ColHumidityExternal,
		domain.ColWorkingHours,
		domain.ColHour,
		domain.ColDayOfWeek,
		domain.ColMonth,
	}
}

// Validate checks required columns on every table and returns the sensor
// metric columns in source order.
func (e *Engine) Validate(ctx context.Context) ([]string, error) {
	var metrics []string
	for _, t := range domain.AllTables() {
		physical := e.cfg.table(t)
		cols, err := e.src.Columns(ctx, physical)
		if err != nil {
			return nil, fmt.Errorf("columns of %s: %w", physical, err)
		}
		have := make(map[string]bool, len(cols))
		for _, c := range cols {
			have[c] = true
		}
		var missing []string
		for _, req := range e.cfg.Required[t] {
			if !have[req] {
				missing = append(missing, req)
			}
		}
		if len(missing) > 0 {
			return nil, &MissingColumnsError{Table: t, Physical: physical, Columns: missing}
		}
		if t == domain.TableSensor {
			metrics = sensorMetrics(cols, e.cfg.ExcludeSensorColumns)
		}
	}
	return metrics, nil
}

func sensorMetrics(cols, exclude []string) []string {
	skip := map[string]bool{domain.ColMachineID: true, domain.ColTimestamp: true}
	for _, c := range exclude {
		skip[c] = true
	}
	var out []string
	for _, c := range cols {
		if !skip[c] {
			out = append(out, c)
		}
	}
	return out
}

// Build runs the full join. The table is ordered by (machine_id, timestamp).
func (e *Engine) Build(ctx context.Context) (*Joined, error) {
	rep := newReport()
	metrics, err := e.Validate(ctx)
	if err != nil {
		return nil, err
	}
	rep.Metrics = metrics

	machines, err := e.loadMachines(ctx, rep)
	if err != nil {
		return nil, err
	}
	events, err := e.loadMaintenance(ctx, machines, rep)
	if err != nil {
		return nil, err
	}
	env, err := e.loadKeyed(ctx, domain.TableEnvironment, []string{domain.ColExternalTemperature, domain.ColHumidity}, rep)
	if err != nil {
		return nil, err
	}
	usage, err := e.loadKeyed(ctx, domain.TableUsage, []string{domain.ColWorkingHours}, rep)
	if err != nil {
		return nil, err
	}
	parts, err := e.loadSensor(ctx, metrics, rep)
	if err != nil {
		return nil, err
	}

	for _, p := range parts {
		if _, ok := machines[p.MachineID]; !ok {
			rep.UnknownMachines += p.Len()
		}
	}
	if rep.UnknownMachines > 0 {
		e.log.Warn("Sensor rows reference machines missing from the registry", "count", rep.UnknownMachines)
	}

	err = domain.ForEachPartition(ctx, e.cfg.Workers, parts, func(_ context.Context, _ int, p *domain.Partition) error {
		derive(p, machines[p.MachineID], events[p.MachineID], env, usage)
		return nil
	})
	if err != nil {
		return nil, err
	}

	tbl := domain.NewFeatureTable(append(append([]string{}, metrics...), JoinedColumns()...))
	tbl.Partitions = parts
	rep.Machines = len(parts)
	rep.OutputRows = tbl.Rows()
	e.log.Info("Joined source tables",
		"sensor_rows", rep.SensorRows,
		"rows", rep.OutputRows,
		"machines", rep.Machines,
		"metrics", len(metrics),
		"non_numeric_values", rep.NonNumeric,
	)
	return &Joined{Table: tbl, Events: events, Report: rep}, nil
}

func (e *Engine) loadMachines(ctx context.Context, rep *Report) (map[string]*domain.MachineRecord, error) {
	physical := e.cfg.table(domain.TableMachines)
	out := map[string]*domain.MachineRecord{}
	err := e.src.Scan(ctx, physical, e.cfg.ChunkSize, func(_ context.Context, c source.Chunk) error {
		iID, iModel, iType, iInst := c.Index(domain.ColMachineID), c.Index(domain.ColModelID), c.Index(domain.ColTypeID), c.Index(domain.ColInstallationDate)
		for _, row := range c.Rows {
			mid, ok := source.AsMachineID(cell(row, iID))
			if !ok {
				rep.MissingMachine[domain.TableMachines]++
				continue
			}
			if _, dup := out[mid]; dup {
				rep.DuplicateKeys[domain.TableMachines]++
				continue
			}
			rec := &domain.MachineRecord{MachineID: mid, ModelID: floatOrNull(cell(row, iModel), rep), TypeID: floatOrNull(cell(row, iType), rep)}
			if ts, ok := ParseTimestamp(cell(row, iInst)); ok {
				rec.InstallationDate = &ts
			} else if cell(row, iInst) != nil {
				rep.BadTimestamps[domain.TableMachines]++
			}
			out[mid] = rec
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", physical, err)
	}
	e.log.Info("Loaded machine registry", "table", physical, "machines", len(out))
	return out, nil
}

func (e *Engine) loadMaintenance(ctx context.Context, machines map[string]*domain.MachineRecord, rep *Report) (map[string][]time.Time, error) {
	tasksTable := e.cfg.table(domain.TableMaintenanceTasks)
	taskMachine := map[string]string{}
	err := e.src.Scan(ctx, tasksTable, e.cfg.ChunkSize, func(_ context.Context, c source.Chunk) error {
		iTask, iMachine := c.Index(domain.ColTaskID), c.Index(domain.ColMachineID)
		for _, row := range c.Rows {
			tid, ok := source.AsMachineID(cell(row, iTask))
			if !ok {
				continue
			}
			if mid, ok := source.AsMachineID(cell(row, iMachine)); ok {
				if _, seen := taskMachine[tid]; !seen {
					taskMachine[tid] = mid
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", tasksTable, err)
	}

	logsTable := e.cfg.table(domain.TableMaintenanceLogs)
	var logs []LogEntry
	err = e.src.Scan(ctx, logsTable, e.cfg.ChunkSize, func(_ context.Context, c source.Chunk) error {
		iTask, iDate := c.Index(domain.ColTaskID), c.Index(domain.ColEventDate)
		for _, row := range c.Rows {
			ts, ok := ParseTimestamp(cell(row, iDate))
			if !ok {
				rep.BadTimestamps[domain.TableMaintenanceLogs]++
				continue
			}
			tid, _ := source.AsMachineID(cell(row, iTask))
			logs = append(logs, LogEntry{TaskID: tid, Date: ts})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", logsTable, err)
	}

	registry := make([]string, 0, len(machines))
	for id := range machines {
		registry = append(registry, id)
	}
	rng := e.cfg.Rand
	if rng == nil && e.cfg.OrphanPolicy == OrphanImpute {
		e.log.Warn("Orphan imputation is not seeded; assignments will differ between runs")
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	events, st := LinkMaintenance(logs, taskMachine, registry, e.cfg.OrphanPolicy, rng)
	rep.Link = st
	e.log.Info("Linked maintenance events",
		"logs", len(logs),
		"linked", st.Linked,
		"orphans", st.Orphans,
		"imputed", st.Imputed,
		"dropped", st.Dropped,
		"policy", e.cfg.OrphanPolicy,
	)
	return EventsByMachine(events), nil
}

type rowKey struct {
	machine string
	unix    int64
}

type keyedRow struct {
	key    rowKey
	ts     time.Time
	values []float64
}

// loadKeyed reads an exact-match side table keyed by (machine_id, timestamp).
// Rows are stably sorted by key and only the first occurrence of a key is kept.
func (e *Engine) loadKeyed(ctx context.Context, t domain.Table, valueCols []string, rep *Report) (map[rowKey][]float64, error) {
	physical := e.cfg.table(t)
	var rows []keyedRow
	err := e.src.Scan(ctx, physical, e.cfg.ChunkSize, func(_ context.Context, c source.Chunk) error {
		iID, iTS := c.Index(domain.ColMachineID), c.Index(domain.ColTimestamp)
		idx := make([]int, len(valueCols))
		for i, col := range valueCols {
			idx[i] = c.Index(col)
		}
		for _, row := range c.Rows {
			mid, ok := source.AsMachineID(cell(row, iID))
			if !ok {
				rep.MissingMachine[t]++
				continue
			}
			ts, ok := ParseTimestamp(cell(row, iTS))
			if !ok {
				rep.BadTimestamps[t]++
				continue
			}
			vals := make([]float64, len(valueCols))
			for i, ci := range idx {
				vals[i] = floatOrNull(cell(row, ci), rep)
			}
			rows = append(rows, keyedRow{key: rowKey{mid, ts.UnixNano()}, ts: ts, values: vals})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", physical, err)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if c := domain.CompareMachineIDs(rows[i].key.machine, rows[j].key.machine); c != 0 {
			return c < 0
		}
		return rows[i].ts.Before(rows[j].ts)
	})
	out := make(map[rowKey][]float64, len(rows))
	for _, r := range rows {
		if _, dup := out[r.key]; dup {
			rep.DuplicateKeys[t]++
			continue
		}
		out[r.key] = r.values
	}
	e.log.Debug("Loaded side table", "table", physical, "rows", len(out))
	return out, nil
}

type partitionBuilder struct {
	id      string
	ts      []time.Time
	metrics [][]float64
}

// loadSensor streams the sensor table into per-machine column partitions.
func (e *Engine) loadSensor(ctx context.Context, metrics []string, rep *Report) ([]*domain.Partition, error) {
	physical := e.cfg.table(domain.TableSensor)
	builders := map[string]*partitionBuilder{}
	err := e.src.Scan(ctx, physical, e.cfg.ChunkSize, func(_ context.Context, c source.Chunk) error {
		iID, iTS := c.Index(domain.ColMachineID), c.Index(domain.ColTimestamp)
		idx := make([]int, len(metrics))
		for i, m := range metrics {
			idx[i] = c.Index(m)
		}
		for _, row := range c.Rows {
			rep.SensorRows++
			mid, ok := source.AsMachineID(cell(row, iID))
			if !ok {
				rep.MissingMachine[domain.TableSensor]++
				continue
			}
			ts, ok := ParseTimestamp(cell(row, iTS))
			if !ok {
				rep.BadTimestamps[domain.TableSensor]++
				continue
			}
			b := builders[mid]
			if b == nil {
				b = &partitionBuilder{id: mid, metrics: make([][]float64, len(metrics))}
				builders[mid] = b
			}
			b.ts = append(b.ts, ts)
			for m, ci := range idx {
				b.metrics[m] = append(b.metrics[m], floatOrNull(cell(row, ci), rep))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", physical, err)
	}

	ids := make([]string, 0, len(builders))
	for id := range builders {
		ids = append(ids, id)
	}
	domain.SortMachineIDs(ids)
	parts := make([]*domain.Partition, 0, len(ids))
	for _, id := range ids {
		b := builders[id]
		delete(builders, id)
		parts = append(parts, b.sorted())
	}
	return parts, nil
}

// sorted orders a builder's rows by timestamp, keeping arrival order for ties.
func (b *partitionBuilder) sorted() *domain.Partition {
	n := len(b.ts)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return b.ts[order[i]].Before(b.ts[order[j]]) })

	p := &domain.Partition{MachineID: b.id, Timestamps: make([]time.Time, n), Columns: make([][]float64, len(b.metrics))}
	for r, src := range order {
		p.Timestamps[r] = b.ts[src]
	}
	for c, col := range b.metrics {
		out := make([]float64, n)
		for r, src := range order {
			out[r] = col[src]
		}
		p.Columns[c] = out
	}
	return p
}

// derive appends the joined columns to one machine's partition, in
// JoinedColumns order.
func derive(p *domain.Partition, m *domain.MachineRecord, events []time.Time, env, usage map[rowKey][]float64) {
	n := p.Len()
	cols := make([][]float64, len(JoinedColumns()))
	for i := range cols {
		cols[i] = make([]float64, n)
	}
	for r, ts := range p.Timestamps {
		model, typ := domain.Null, domain.Null
		var install *time.Time
		if m != nil {
			model, typ, install = m.ModelID, m.TypeID, m.InstallationDate
		}
		days := DaysSinceMaintenance(ts, events, install)
		key := rowKey{p.MachineID, ts.UnixNano()}
		temp, hum, hours := domain.Null, domain.Null, domain.Null
		if v, ok := env[key]; ok {
			temp, hum = v[0], v[1]
		}
		if v, ok := usage[key]; ok {
			hours = v[0]
		}
		cols[0][r] = model
		cols[1][r] = typ
		cols[2][r] = days
		cols[3][r] = MaintenanceUrgency(days)
		cols[4][r] = temp
		cols[5][r] = hum
		cols[6][r] = hours
		cols[7][r] = float64(ts.Hour())
		cols[8][r] = float64((int(ts.Weekday()) + 6) % 7)
		cols[9][r] = float64(ts.Month())
	}
	p.Columns = append(p.Columns, cols...)
}

// DaysSinceMaintenance counts whole days from the latest event at or before
// ts, or from installation when the machine has no earlier event.
func DaysSinceMaintenance(ts time.Time, events []time.Time, installed *time.Time) float64 {
	ref, ok := LastAtOrBefore(events, ts)
	if !ok {
		if installed == nil {
			return domain.Null
		}
		ref = *installed
	}
	days := math.Floor(ts.Sub(ref).Hours() / 24)
	return math.Abs(days)
}

// MaintenanceUrgency is the reciprocal of days since maintenance, with a
// same-day floor of 0.1 days.
func MaintenanceUrgency(days float64) float64 {
	if domain.IsNull(days) {
		return domain.Null
	}
	if days == 0 {
		days = 0.1
	}
	return 1 / (days + 1e-6)
}

func floatOrNull(v any, rep *Report) float64 {
	if v == nil {
		return domain.Null
	}
	f, ok := source.AsFloat(v)
	if !ok {
		rep.NonNumeric++
		return domain.Null
	}
	return f
}

func cell(row []any, i int) any {
	if i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}
