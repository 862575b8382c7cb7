package readiness

import (
	"context"

	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

// Poller runs WaitUntilReady and logs every attempt.
type Poller struct {
	logger ports.Logger
}

// NewPoller creates a poller that logs through logger.
func NewPoller(logger ports.Logger) *Poller {
	return &Poller{logger: logger}
}

// Wait polls spec, logging not-ready attempts at debug level.
func (p *Poller) Wait(ctx context.Context, spec Spec) (Outcome, error) {
	p.logger.Info(ctx, "waiting",
		ports.F("target", spec.Name),
		ports.F("max_attempts", spec.MaxAttempts),
		ports.F("interval", spec.Interval),
	)

	outcome, err := wait(ctx, spec, func(attempt int, ready bool, err error) {
		fields := []ports.Field{
			ports.F("target", spec.Name),
			ports.F("attempt", attempt),
			ports.F("ready", ready),
		}
		if err != nil {
			fields = append(fields, ports.Err(err))
		}
		p.logger.Debug(ctx, "probe", fields...)
	})

	switch outcome {
	case Ready:
		p.logger.Info(ctx, "ready", ports.F("target", spec.Name))
	case TimedOut:
		p.logger.Warn(ctx, "readiness timed out", ports.F("target", spec.Name), ports.Err(err))
	}
	return outcome, err
}
