// Package postgres creates the application role, database and extension
// inside the cluster's PostgreSQL server.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/vpsctl/internal/domain/readiness"
	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
	"github.com/felixgeelhaar/vpsctl/internal/validation"
)

// QueryWait bounds how long the server may take to accept queries after
// its pod is Ready.
var QueryWait = readiness.Spec{Interval: 3 * time.Second, MaxAttempts: 40}

// NewWaitQueryStep waits until SELECT 1 succeeds.
func NewWaitQueryStep(name string, db ports.Database, poller *readiness.Poller) *readiness.WaitStep {
	spec := QueryWait
	spec.Name = name + " SELECT 1"
	spec.Predicate = func(ctx context.Context) (bool, error) {
		if err := db.Ping(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
	return readiness.NewWaitStep(step.MustNewStepID("wait:"+name+"-query"), spec, poller, "Wait for database queries")
}

// RoleStep creates a login role.
type RoleStep struct {
	id       step.StepID
	role     string
	password string
	db       ports.Database
}

// NewRoleStep creates a new RoleStep.
func NewRoleStep(role, password string, db ports.Database) *RoleStep {
	return &RoleStep{
		id:       step.MustNewStepID("postgres:role:" + role),
		role:     role,
		password: password,
		db:       db,
	}
}

// ID returns the step identifier.
func (s *RoleStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *RoleStep) Idempotent() bool {
	return true
}

// Check queries pg_roles.
func (s *RoleStep) Check(ctx step.RunContext) (step.Status, error) {
	return status(s.db.RoleExists(ctx.Context(), s.role))
}

// Apply creates the role.
func (s *RoleStep) Apply(ctx step.RunContext) error {
	if err := validation.ValidateIdentifier(s.role); err != nil {
		return fmt.Errorf("invalid role name: %w", err)
	}
	return s.db.CreateRole(ctx.Context(), s.role, s.password)
}

// Explain provides a human-readable explanation.
func (s *RoleStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Create database role",
		fmt.Sprintf("Creates the login role %s unless pg_roles already lists it. An existing role keeps its password.", s.role),
		nil,
	)
}

// DatabaseStep creates a database owned by a role.
type DatabaseStep struct {
	id    step.StepID
	name  string
	owner string
	db    ports.Database
}

// NewDatabaseStep creates a new DatabaseStep.
func NewDatabaseStep(name, owner string, db ports.Database) *DatabaseStep {
	return &DatabaseStep{
		id:    step.MustNewStepID("postgres:database:" + name),
		name:  name,
		owner: owner,
		db:    db,
	}
}

// ID returns the step identifier.
func (s *DatabaseStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *DatabaseStep) Idempotent() bool {
	return true
}

// Check queries pg_database.
func (s *DatabaseStep) Check(ctx step.RunContext) (step.Status, error) {
	return status(s.db.DatabaseExists(ctx.Context(), s.name))
}

// Apply creates the database.
func (s *DatabaseStep) Apply(ctx step.RunContext) error {
	if err := validation.ValidateIdentifier(s.name); err != nil {
		return fmt.Errorf("invalid database name: %w", err)
	}
	return s.db.CreateDatabase(ctx.Context(), s.name, s.owner)
}

// Explain provides a human-readable explanation.
func (s *DatabaseStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Create database",
		fmt.Sprintf("Creates database %s owned by %s.", s.name, s.owner),
		nil,
	)
}

// ExtensionStep enables an extension inside a database.
type ExtensionStep struct {
	id        step.StepID
	database  string
	extension string
	db        ports.Database
}

// NewExtensionStep creates a new ExtensionStep.
func NewExtensionStep(database, extension string, db ports.Database) *ExtensionStep {
	return &ExtensionStep{
		id:        step.MustNewStepID("postgres:extension:" + extension),
		database:  database,
		extension: extension,
		db:        db,
	}
}

// ID returns the step identifier.
func (s *ExtensionStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *ExtensionStep) Idempotent() bool {
	return true
}

// Check queries pg_extension in the target database.
func (s *ExtensionStep) Check(ctx step.RunContext) (step.Status, error) {
	return status(s.db.ExtensionExists(ctx.Context(), s.database, s.extension))
}

// Apply runs CREATE EXTENSION.
func (s *ExtensionStep) Apply(ctx step.RunContext) error {
	return s.db.CreateExtension(ctx.Context(), s.database, s.extension)
}

// Explain provides a human-readable explanation.
func (s *ExtensionStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Enable extension",
		fmt.Sprintf("Runs CREATE EXTENSION %s in database %s.", s.extension, s.database),
		[]string{"https://docs.timescale.com/self-hosted/latest/install/"},
	)
}

func status(exists bool, err error) (step.Status, error) {
	if err != nil {
		return step.StatusUnknown, err
	}
	if exists {
		return step.StatusSatisfied, nil
	}
	return step.StatusNeedsApply, nil
}

var (
	_ step.Step = (*RoleStep)(nil)
	_ step.Step = (*DatabaseStep)(nil)
	_ step.Step = (*ExtensionStep)(nil)
)
