package learning

import (
	"context"
	"fmt"

	"learning-backend/internal/datasets"
	"learning-backend/pkg/models"
)

// Params is the free-form parameter map attached to a learning task.
type Params map[string]any

func (p Params) Float(key string, fallback float64) float64 {
	if v, ok := p[key]; ok {
		switch f := v.(type) {
		case float64:
			return f
		case int:
			return float64(f)
		}
	}
	return fallback
}

func (p Params) Int(key string, fallback int) int {
	if v, ok := p[key]; ok {
		switch i := v.(type) {
		case int:
			return i
		case float64:
			return int(i)
		}
	}
	return fallback
}

func (p Params) String(key string) string {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Strategy consumes a dataset split and produces an artifact plus, where
// meaningful, a held-out accuracy in [0,1]. Strategies are synchronous and are
// never run concurrently; the single worker provides mutual exclusion.
type Strategy interface {
	Mode() models.LearningMode

	Run(ctx context.Context, split *datasets.Split, params Params) (*Artifact, error)
}

// TransferSource is a prior model eligible as a transfer learning source.
type TransferSource struct {
	TaskId   string
	Dataset  string
	Network  *Network
	Accuracy *float64
}

// SourceFinder locates a transfer source in the model registry.
type SourceFinder interface {
	FindTransferSource(targetDataset string, policy SourcePolicy) (*TransferSource, bool)
}

// SourcePolicy names how a transfer source is chosen among eligible models.
type SourcePolicy string

const (
	// FirstMatch takes the earliest recorded eligible model.
	FirstMatch SourcePolicy = "first-match"
	// BestMatch takes the eligible model with the highest recorded accuracy.
	BestMatch SourcePolicy = "best-match"
)

func ParseSourcePolicy(s string) (SourcePolicy, error) {
	switch SourcePolicy(s) {
	case FirstMatch, BestMatch:
		return SourcePolicy(s), nil
	case "":
		return FirstMatch, nil
	default:
		return "", fmt.Errorf("unknown transfer source policy '%s'", s)
	}
}

type StrategyOptions struct {
	HiddenSize     int
	Epochs         int
	FineTuneEpochs int
	LearningRate   float64

	SourcePolicy SourcePolicy
	Finder       SourceFinder
}

func (o *StrategyOptions) applyDefaults() {
	if o.HiddenSize <= 0 {
		o.HiddenSize = 128
	}
	if o.Epochs <= 0 {
		o.Epochs = 10
	}
	if o.FineTuneEpochs <= 0 {
		o.FineTuneEpochs = 5
	}
	if o.LearningRate <= 0 {
		o.LearningRate = 0.01
	}
	if o.SourcePolicy == "" {
		o.SourcePolicy = FirstMatch
	}
}

// NewStrategies builds the strategy set keyed by learning mode.
func NewStrategies(opts StrategyOptions) map[models.LearningMode]Strategy {
	opts.applyDefaults()

	return map[models.LearningMode]Strategy{
		models.Supervised: &SupervisedStrategy{
			HiddenSize:   opts.HiddenSize,
			Epochs:       opts.Epochs,
			LearningRate: opts.LearningRate,
		},
		models.Unsupervised: &UnsupervisedStrategy{
			Rounds:      10,
			MaxClusters: 10,
			Components:  50,
		},
		models.Reinforcement: &ReinforcementStrategy{
			Episodes:     100,
			Steps:        100,
			Epsilon:      0.1,
			Discount:     0.9,
			LearningRate: opts.LearningRate,
		},
		models.Transfer: &TransferStrategy{
			Finder:       opts.Finder,
			Policy:       opts.SourcePolicy,
			HiddenSize:   opts.HiddenSize,
			Epochs:       opts.FineTuneEpochs,
			LearningRate: opts.LearningRate,
		},
	}
}
