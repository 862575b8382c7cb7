package execution

import (
	"context"

	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
)

// Observer is notified as a run progresses. Observers must not block.
type Observer interface {
	StepStarted(ctx context.Context, id step.StepID)
	StepFinished(ctx context.Context, result RunResult)
	RunFinished(ctx context.Context, report *Report)
}
