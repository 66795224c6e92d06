package models

import (
	"errors"
	"fmt"
)

var ErrInvalidLearningMode = errors.New("unknown learning mode")

// LearningMode selects which learning strategy executes a task.
type LearningMode string

const (
	Supervised    LearningMode = "supervised"
	Unsupervised  LearningMode = "unsupervised"
	Reinforcement LearningMode = "reinforcement"
	Transfer      LearningMode = "transfer"
)

func ParseLearningMode(s string) (LearningMode, error) {
	switch LearningMode(s) {
	case Supervised, Unsupervised, Reinforcement, Transfer:
		return LearningMode(s), nil
	default:
		return "", fmt.Errorf("%w: '%s'", ErrInvalidLearningMode, s)
	}
}

// Well known parameter keys for task parameter maps.
const (
	ParamTargetAccuracy = "target_accuracy"
	ParamSourceDataset  = "source_dataset"
	ParamLearningRate   = "learning_rate"
	ParamEpochs         = "epochs"
)
