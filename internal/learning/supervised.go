package learning

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"learning-backend/internal/datasets"
	"learning-backend/pkg/models"
)

// SupervisedStrategy trains a two layer feed forward classifier with
// cross entropy loss, evaluating the held-out split every fifth epoch.
type SupervisedStrategy struct {
	HiddenSize   int
	Epochs       int
	LearningRate float64

	// Seed overrides time based seeding when non-zero, for deterministic tests.
	Seed int64
}

const evalInterval = 5

func (s *SupervisedStrategy) Mode() models.LearningMode { return models.Supervised }

func (s *SupervisedStrategy) Run(ctx context.Context, split *datasets.Split, params Params) (*Artifact, error) {
	rng := rand.New(rand.NewSource(s.seed()))
	network := NewNetwork(split.Info.Features, s.HiddenSize, split.Info.Classes, rng)

	lr := params.Float(models.ParamLearningRate, s.LearningRate)
	epochs := params.Int(models.ParamEpochs, s.Epochs)

	var testAccuracy float64
	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		loss := network.TrainEpoch(split.TrainX, split.TrainY, lr)

		if epoch%evalInterval == 0 {
			testAccuracy = network.Evaluate(split.TestX, split.TestY)
			slog.Info("supervised training progress",
				"dataset", split.Info.Name, "epoch", epoch, "loss", loss, "test_accuracy", testAccuracy)
		}
	}

	testAccuracy = network.Evaluate(split.TestX, split.TestY)

	return &Artifact{
		Kind:     ArtifactNetwork,
		Network:  network,
		Accuracy: &testAccuracy,
	}, nil
}

func (s *SupervisedStrategy) seed() int64 {
	if s.Seed != 0 {
		return s.Seed
	}
	return time.Now().UnixNano()
}
