// # internal/core/app/plan.go
package app

import (
	"context"
	"fmt"

	"github.com/BurntSushi/toml"

	cerrors "chisel/internal/core/errors"
	"chisel/internal/core/ports"
	"chisel/internal/shared/observability"
)

type planFile struct {
	Steps []ports.PlanStep `toml:"step"`
}

// LoadPlan reads an ordered patch plan from a TOML file. Each [[step]] names
// one patch request.
func LoadPlan(path string) ([]ports.PlanStep, error) {
	var pf planFile
	if _, err := toml.DecodeFile(path, &pf); err != nil {
		return nil, fmt.Errorf("loading plan %s: %w", path, err)
	}
	if len(pf.Steps) == 0 {
		return nil, fmt.Errorf("plan %s has no steps", path)
	}
	return pf.Steps, nil
}

// RunPlan applies steps in order and stops at the first failure. The failed
// step is rolled back by ApplyPatch; earlier steps stay applied, so partial
// plans are visible in the result rather than silently undone.
func (a *App) RunPlan(ctx context.Context, steps []ports.PlanStep) (ports.PlanResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "run_plan")
	defer span.End()

	result := ports.PlanResult{StepsTotal: len(steps)}
	for i, step := range steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step %d", i+1)
		}

		outcome, err := a.ApplyPatch(ctx, step.Patch)
		if err != nil {
			a.log.Error("plan step failed", "step", name, "error", err)
			wrapped := cerrors.Wrap(err, cerrors.CodePlanFailed,
				fmt.Sprintf("plan stopped at %s (%d/%d applied)", name, result.StepsApplied, result.StepsTotal))
			return result, cerrors.AddContext(wrapped, cerrors.CtxStep, name)
		}

		result.StepsApplied++
		result.Outcomes = append(result.Outcomes, outcome)
		a.log.Info("plan step applied", "step", name, "file", outcome.File)
	}
	return result, nil
}
