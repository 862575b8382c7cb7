// Package step defines the provisioning step contract shared by the
// sequencer, the readiness poller and every provider.
package step

// Step is a single provisioning unit: a precondition (Check) paired with
// an action (Apply).
type Step interface {
	// ID returns the unique identifier for this step.
	ID() StepID

	// Idempotent reports whether a satisfied Check may skip Apply.
	// Non-idempotent steps (e.g. refreshing package indexes) always apply.
	Idempotent() bool

	// Check determines whether the step's effect is already present.
	// It must not mutate state. A failing probe is returned as an error,
	// never folded into StatusNeedsApply.
	Check(ctx RunContext) (Status, error)

	// Apply performs the step's action.
	Apply(ctx RunContext) error

	// Explain returns human-readable context for this step.
	Explain(ctx ExplainContext) Explanation
}
