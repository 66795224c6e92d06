package learning

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"learning-backend/internal/datasets"
	"learning-backend/pkg/models"
)

// ReinforcementStrategy runs tabular Q-learning over a state space sized by
// feature dimensionality and an action space sized by class count. Rewards are
// synthetic N(0,1) draws since no real environment is wired in; a deployment
// needing meaningful action values must replace the reward source.
type ReinforcementStrategy struct {
	Episodes     int
	Steps        int
	Epsilon      float64
	Discount     float64
	LearningRate float64

	Seed int64
}

func (s *ReinforcementStrategy) Mode() models.LearningMode { return models.Reinforcement }

func (s *ReinforcementStrategy) Run(ctx context.Context, split *datasets.Split, params Params) (*Artifact, error) {
	seed := s.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	states := split.Info.Features
	actions := split.Info.Classes
	lr := params.Float(models.ParamLearningRate, s.LearningRate)

	qTable := make([][]float64, states)
	for i := range qTable {
		qTable[i] = make([]float64, actions)
	}

	for episode := 0; episode < s.Episodes; episode++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		state := rng.Intn(states)
		for step := 0; step < s.Steps; step++ {
			action := epsilonGreedy(qTable[state], s.Epsilon, rng)
			reward := rng.NormFloat64()
			nextState := rng.Intn(states)

			// Temporal difference update.
			best := maxValue(qTable[nextState])
			qTable[state][action] += lr * (reward + s.Discount*best - qTable[state][action])

			state = nextState
		}
	}

	slog.Info("reinforcement learning finished",
		"dataset", split.Info.Name, "states", states, "actions", actions, "episodes", s.Episodes)

	return &Artifact{Kind: ArtifactQTable, QTable: qTable}, nil
}

func epsilonGreedy(qValues []float64, epsilon float64, rng *rand.Rand) int {
	if rng.Float64() < epsilon {
		return rng.Intn(len(qValues))
	}
	best := 0
	for a, v := range qValues {
		if v > qValues[best] {
			best = a
		}
	}
	return best
}

func maxValue(values []float64) float64 {
	best := values[0]
	for _, v := range values[1:] {
		if v > best {
			best = v
		}
	}
	return best
}
