package scheduling

import (
	"context"
	"fmt"
	"log/slog"

	"learning-backend/internal/datasets"
	"learning-backend/internal/learning"
	"learning-backend/pkg/models"
)

const transferCompatibilityThreshold = 0.5

// RunAutoScheduler inspects recorded dataset accuracy and submits remediation
// tasks for datasets below the target, then transfer tasks for compatible
// dataset pairs. It is synchronous and explicitly invoked. Equivalent tasks
// already pending or running are skipped via their idempotency keys, so
// repeated invocations do not pile up duplicate work.
func (e *Engine) RunAutoScheduler(ctx context.Context) ([]string, error) {
	slog.Info("auto-scheduling learning tasks")

	var submitted []string
	descriptors := e.registry.List()

	for _, desc := range descriptors {
		accuracy := e.metrics.LatestAccuracy(desc.Name)
		if accuracy >= e.targetAccuracy {
			continue
		}

		id, ok, err := e.submit(ctx, desc.Name, desc.DefaultMode, 1,
			learning.Params{models.ParamTargetAccuracy: e.targetAccuracy},
			remediationKey(desc.Name, desc.DefaultMode))
		if err != nil {
			return submitted, fmt.Errorf("failed to submit remediation task for '%s': %w", desc.Name, err)
		}
		if ok {
			slog.Info("scheduled remediation task",
				"task_id", id, "dataset", desc.Name, "current_accuracy", accuracy)
			submitted = append(submitted, id)
		}
	}

	for i, source := range descriptors {
		for _, target := range descriptors[i+1:] {
			ratio := datasets.CompatibilityRatio(source, target)
			if ratio <= transferCompatibilityThreshold {
				continue
			}

			id, ok, err := e.submit(ctx, target.Name, models.Transfer, 2,
				learning.Params{models.ParamSourceDataset: source.Name},
				transferKey(source.Name, target.Name))
			if err != nil {
				return submitted, fmt.Errorf("failed to submit transfer task for '%s': %w", target.Name, err)
			}
			if ok {
				slog.Info("scheduled transfer task",
					"task_id", id, "source", source.Name, "target", target.Name, "compatibility", ratio)
				submitted = append(submitted, id)
			}
		}
	}

	return submitted, nil
}

func remediationKey(dataset string, mode models.LearningMode) string {
	return fmt.Sprintf("remediate/%s/%s", dataset, mode)
}

func transferKey(source, target string) string {
	return fmt.Sprintf("transfer/%s->%s", source, target)
}
