package sequence

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yungbote/machine-maintenance-backend/internal/domain"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/normalize"
	"github.com/yungbote/machine-maintenance-backend/internal/observability"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/objstore"
)

const (
	StatusWritten = "WRITTEN"
	StatusSkipped = "SKIPPED"
)

// Tracker records per-machine shard status for a run. Implementations are
// called from concurrent workers.
type Tracker interface {
	MarkMachine(ctx context.Context, runID, machineID, status string) error
}

type ShardInfo struct {
	MachineID string `json:"machine_id"`
	Key       string `json:"key"`
	Sequences int    `json:"sequences"`
}

// WriteStats lists written shards in machine order. Pruned holds shard keys
// left by earlier runs for machines absent from this one.
type WriteStats struct {
	Shards    []ShardInfo
	Skipped   []string
	Pruned    []string
	Sequences int
}

type Writer struct {
	Store     objstore.Store
	Prefix    string
	TimeSteps int
	Workers   int
	RunID     string
	Tracker   Tracker
	Metrics   *observability.Metrics
	log       *logger.Logger
}

func NewWriter(store objstore.Store, prefix string, timeSteps, workers int, baseLog *logger.Logger) *Writer {
	return &Writer{
		Store:     store,
		Prefix:    prefix,
		TimeSteps: timeSteps,
		Workers:   workers,
		log:       baseLog.With("component", "ShardWriter"),
	}
}

// WriteAll windowizes and persists every partition, one shard per machine,
// releasing each partition's rows once its shard is stored. Machines with
// too few rows get no shard, and any shard under the prefix that does not
// belong to a machine of tbl is removed.
func (w *Writer) WriteAll(ctx context.Context, tbl *domain.FeatureTable, scaler *normalize.Scaler) (*WriteStats, error) {
	if w.Store == nil {
		return nil, fmt.Errorf("shard writer: store is required")
	}
	keys := make([]string, len(tbl.Partitions))
	owner := make(map[string]string, len(tbl.Partitions))
	for i, p := range tbl.Partitions {
		keys[i] = ShardKey(w.Prefix, p.MachineID)
		if prev, ok := owner[keys[i]]; ok {
			return nil, &ShardKeyCollisionError{Key: keys[i], Machines: [2]string{prev, p.MachineID}}
		}
		owner[keys[i]] = p.MachineID
	}
	infos := make([]*ShardInfo, len(tbl.Partitions))
	var mu sync.Mutex
	var skipped []string

	err := domain.ForEachPartition(ctx, w.Workers, tbl.Partitions, func(ctx context.Context, i int, p *domain.Partition) error {
		defer p.Release()
		key := keys[i]
		batch, err := Windowize(p, scaler, w.TimeSteps)
		if err != nil {
			return err
		}
		if batch.Len() == 0 {
			if err := w.Store.Delete(ctx, key); err != nil && !errors.Is(err, objstore.ErrNotFound) {
				return fmt.Errorf("remove stale shard %s: %w", key, err)
			}
			w.log.Debug("No sequences for machine", "machine_id", p.MachineID, "rows", p.Len(), "time_steps", w.TimeSteps)
			mu.Lock()
			skipped = append(skipped, p.MachineID)
			mu.Unlock()
			return w.mark(ctx, p.MachineID, StatusSkipped)
		}
		raw, err := Encode(batch)
		if err != nil {
			return err
		}
		if err := w.Store.Put(ctx, key, raw, objstore.ContentTypeForKey(key)); err != nil {
			return fmt.Errorf("write shard %s: %w", key, err)
		}
		w.Metrics.ShardWritten(batch.Len())
		infos[i] = &ShardInfo{MachineID: p.MachineID, Key: key, Sequences: batch.Len()}
		return w.mark(ctx, p.MachineID, StatusWritten)
	})
	if err != nil {
		return nil, err
	}

	out := &WriteStats{}
	for _, info := range infos {
		if info == nil {
			continue
		}
		out.Shards = append(out.Shards, *info)
		out.Sequences += info.Sequences
	}
	domain.SortMachineIDs(skipped)
	out.Skipped = skipped
	if out.Pruned, err = w.prune(ctx, owner); err != nil {
		return nil, err
	}
	w.log.Info("Shards written", "shards", len(out.Shards), "sequences", out.Sequences, "skipped", len(skipped), "pruned", len(out.Pruned))
	return out, nil
}

// prune deletes shards under the prefix whose key is not in current.
func (w *Writer) prune(ctx context.Context, current map[string]string) ([]string, error) {
	listed, err := w.Store.List(ctx, ShardPrefix(w.Prefix))
	if err != nil {
		return nil, fmt.Errorf("list shards: %w", err)
	}
	var pruned []string
	for _, key := range listed {
		if _, ok := current[key]; ok {
			continue
		}
		if err := w.Store.Delete(ctx, key); err != nil && !errors.Is(err, objstore.ErrNotFound) {
			return nil, fmt.Errorf("remove stale shard %s: %w", key, err)
		}
		pruned = append(pruned, key)
	}
	if len(pruned) > 0 {
		w.log.Warn("Removed shards of machines absent from this run", "count", len(pruned))
	}
	return pruned, nil
}

func (w *Writer) mark(ctx context.Context, machineID, status string) error {
	if w.Tracker == nil || w.RunID == "" {
		return nil
	}
	if err := w.Tracker.MarkMachine(ctx, w.RunID, machineID, status); err != nil {
		// progress is advisory; the shard itself is already durable
		w.log.Warn("Progress update failed", "machine_id", machineID, "status", status, "error", err)
	}
	return nil
}
