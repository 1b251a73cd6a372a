package sequence

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/yungbote/machine-maintenance-backend/internal/domain"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/objstore"
)

var ErrEmptySample = errors.New("no sequences selected by shard sampling")

// SampleKeys keeps each key with probability fraction. Keys are sorted
// first so a seeded rng always picks the same shards.
func SampleKeys(keys []string, fraction float64, rng *rand.Rand) []string {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	if fraction >= 1 {
		return sorted
	}
	var out []string
	for _, k := range sorted {
		if rng.Float64() < fraction {
			out = append(out, k)
		}
	}
	return out
}

// Sampled is a random subset of shards loaded in key order.
type Sampled struct {
	Keys    []string
	Batches []*domain.SequenceBatch
}

func (s *Sampled) Sequences() int {
	n := 0
	for _, b := range s.Batches {
		n += b.Len()
	}
	return n
}

// LoadSample samples the given shard keys and decodes the chosen ones.
// Keys come from the run's manifest, never from a listing, so shards left
// by other runs are not picked up.
func LoadSample(ctx context.Context, store objstore.Store, keys []string, fraction float64, rng *rand.Rand, log *logger.Logger) (*Sampled, error) {
	chosen := SampleKeys(keys, fraction, rng)
	log.Info("Sampled shards", "available", len(keys), "chosen", len(chosen), "fraction", fraction)

	out := &Sampled{}
	for _, key := range chosen {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read shard %s: %w", key, err)
		}
		b, err := Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("shard %s: %w", key, err)
		}
		out.Keys = append(out.Keys, key)
		out.Batches = append(out.Batches, b)
	}
	if out.Sequences() == 0 {
		return nil, ErrEmptySample
	}
	return out, nil
}

// Split cuts every machine's sequences chronologically: the last
// testFraction of each machine goes to test. Train and test never share a
// window position, and no test window precedes a train window of the same
// machine.
func Split(batches []*domain.SequenceBatch, testFraction float64) (train, test *domain.SequenceBatch, err error) {
	var trains, tests []*domain.SequenceBatch
	for _, b := range batches {
		n := b.Len()
		cut := n - int(float64(n)*testFraction)
		trains = append(trains, slice(b, 0, cut))
		tests = append(tests, slice(b, cut, n))
	}
	if train, err = Concat(trains); err != nil {
		return nil, nil, err
	}
	if test, err = Concat(tests); err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

func slice(b *domain.SequenceBatch, from, to int) *domain.SequenceBatch {
	stride := b.TimeSteps * b.NumFeatures
	return &domain.SequenceBatch{
		MachineID:   b.MachineID,
		TimeSteps:   b.TimeSteps,
		NumFeatures: b.NumFeatures,
		Features:    b.Features[from*stride : to*stride],
		Labels:      b.Labels[from:to],
	}
}
