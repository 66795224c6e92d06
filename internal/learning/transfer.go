package learning

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"learning-backend/internal/datasets"
	"learning-backend/pkg/models"
)

// TransferStrategy locates a prior network for a different dataset, copies the
// overlapping first layer weight block into a freshly sized network for the
// target, and fine-tunes it with the supervised update rule for a reduced
// number of epochs.
type TransferStrategy struct {
	Finder       SourceFinder
	Policy       SourcePolicy
	HiddenSize   int
	Epochs       int
	LearningRate float64

	Seed int64
}

func (s *TransferStrategy) Mode() models.LearningMode { return models.Transfer }

func (s *TransferStrategy) Run(ctx context.Context, split *datasets.Split, params Params) (*Artifact, error) {
	if s.Finder == nil {
		return nil, fmt.Errorf("transfer strategy has no source finder configured")
	}

	source, ok := s.Finder.FindTransferSource(split.Info.Name, s.Policy)
	if !ok {
		return nil, fmt.Errorf("no compatible source model found for dataset '%s'", split.Info.Name)
	}

	seed := s.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	network := NewNetwork(split.Info.Features, s.HiddenSize, split.Info.Classes, rng)
	transplantWeights(network, source.Network)

	lr := params.Float(models.ParamLearningRate, s.LearningRate)
	for epoch := 0; epoch < s.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		network.TrainEpoch(split.TrainX, split.TrainY, lr)
	}

	accuracy := network.Evaluate(split.TestX, split.TestY)

	slog.Info("transfer learning finished",
		"dataset", split.Info.Name, "source_task", source.TaskId,
		"source_dataset", source.Dataset, "test_accuracy", accuracy)

	return &Artifact{
		Kind:         ArtifactNetwork,
		Network:      network,
		SourceTaskId: source.TaskId,
		Accuracy:     &accuracy,
	}, nil
}

// transplantWeights copies the overlapping sub-block of the source's first
// layer weights into dst.
func transplantWeights(dst, src *Network) {
	rows := min(dst.InputSize(), src.InputSize())
	cols := min(dst.HiddenSize(), src.HiddenSize())
	for i := 0; i < rows; i++ {
		copy(dst.W1[i][:cols], src.W1[i][:cols])
	}
}
