package datasets

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
)

// Split is a train/test dataset split sized per the descriptor, with features
// as row vectors and integer class labels.
type Split struct {
	TrainX [][]float64
	TrainY []int
	TestX  [][]float64
	TestY  []int

	Info Descriptor
}

// Loader produces a train/test split for a registered dataset. How the split
// is produced is outside the scheduler core; only its shape is guaranteed.
type Loader interface {
	Load(ctx context.Context, name string) (*Split, error)
}

const DefaultSampleCap = 512

// SyntheticLoader generates gaussian feature data with random labels, standing
// in for real dataset ingestion. Splits are deterministic in shape: 80% train,
// 20% test of the descriptor's sample count, capped at sampleCap so strategy
// execution stays bounded for large catalogs.
type SyntheticLoader struct {
	registry  *Registry
	sampleCap int
}

func NewSyntheticLoader(registry *Registry, sampleCap int) *SyntheticLoader {
	if sampleCap <= 0 {
		sampleCap = DefaultSampleCap
	}
	return &SyntheticLoader{registry: registry, sampleCap: sampleCap}
}

var _ Loader = (*SyntheticLoader)(nil)

func (l *SyntheticLoader) Load(ctx context.Context, name string) (*Split, error) {
	info, ok := l.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("dataset '%s' is not registered", name)
	}

	samples := info.Samples
	if samples > l.sampleCap {
		samples = l.sampleCap
	}

	// Seed from the dataset name so repeated loads of the same dataset produce
	// the same split.
	h := fnv.New64a()
	h.Write([]byte(name))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	x := make([][]float64, samples)
	y := make([]int, samples)
	for i := range x {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := make([]float64, info.Features)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		x[i] = row
		y[i] = rng.Intn(info.Classes)
	}

	trainSize := samples * 8 / 10
	return &Split{
		TrainX: x[:trainSize],
		TrainY: y[:trainSize],
		TestX:  x[trainSize:],
		TestY:  y[trainSize:],
		Info:   info,
	}, nil
}
