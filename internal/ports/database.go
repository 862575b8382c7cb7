package ports

import "context"

// Database is the administrative surface of the PostgreSQL server the
// cluster playbook deploys. Connections are made as the superuser.
type Database interface {
	// Ping runs a trivial query against the maintenance database.
	Ping(ctx context.Context) error

	RoleExists(ctx context.Context, role string) (bool, error)
	CreateRole(ctx context.Context, role, password string) error

	DatabaseExists(ctx context.Context, name string) (bool, error)
	CreateDatabase(ctx context.Context, name, owner string) error

	// ExtensionExists checks pg_extension inside the given database.
	ExtensionExists(ctx context.Context, database, extension string) (bool, error)
	CreateExtension(ctx context.Context, database, extension string) error
}
