package datasets

import (
	"fmt"

	"learning-backend/pkg/models"
)

type Kind string

const (
	Classification Kind = "classification"
	Detection      Kind = "detection"
)

// Descriptor describes a named dataset. Descriptors are populated once at
// startup and never mutated afterwards.
type Descriptor struct {
	Name        string
	Kind        Kind
	Features    int
	Classes     int
	Samples     int
	DefaultMode models.LearningMode
}

// Registry is a static name -> descriptor lookup. It is immutable after
// construction and therefore safe for concurrent readers.
type Registry struct {
	descriptors map[string]Descriptor
	order       []string
}

func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{descriptors: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if _, exists := r.descriptors[d.Name]; exists {
			return nil, fmt.Errorf("duplicate dataset '%s'", d.Name)
		}
		if d.Features <= 0 || d.Classes <= 0 || d.Samples <= 0 {
			return nil, fmt.Errorf("dataset '%s' has non-positive dimensions", d.Name)
		}
		r.descriptors[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// DefaultRegistry returns the built in dataset catalog.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		Descriptor{Name: "rice_msc", Kind: Classification, Features: 106, Classes: 5, Samples: 75000, DefaultMode: models.Supervised},
		Descriptor{Name: "human_faces", Kind: Detection, Features: 128, Classes: 7, Samples: 7200, DefaultMode: models.Supervised},
		Descriptor{Name: "cifar10", Kind: Classification, Features: 3072, Classes: 10, Samples: 60000, DefaultMode: models.Supervised},
		Descriptor{Name: "mnist", Kind: Classification, Features: 784, Classes: 10, Samples: 70000, DefaultMode: models.Supervised},
		Descriptor{Name: "imagenet", Kind: Classification, Features: 150528, Classes: 1000, Samples: 1400000, DefaultMode: models.Supervised},
	)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Get(name string) (Descriptor, bool) {
	d, ok := r.descriptors[name]
	return d, ok
}

// List returns descriptors in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.descriptors[name])
	}
	return out
}

// CompatibilityRatio is the feature dimensionality overlap used to gate
// transfer learning between two datasets: min(dimA, dimB) / max(dimA, dimB).
func CompatibilityRatio(a, b Descriptor) float64 {
	if a.Features <= 0 || b.Features <= 0 {
		return 0
	}
	lo, hi := a.Features, b.Features
	if lo > hi {
		lo, hi = hi, lo
	}
	return float64(lo) / float64(hi)
}
