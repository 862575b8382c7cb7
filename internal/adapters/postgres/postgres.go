// Package postgres implements ports.Database over the PostgreSQL wire
// protocol using jackc/pgconn.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"

	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

// SQLSTATE codes for objects that already exist.
const (
	codeDuplicateObject   = "42710"
	codeDuplicateDatabase = "42P04"
)

// MaintenanceDatabase is the database administrative statements connect to.
const MaintenanceDatabase = "postgres"

// Endpoint is where and as whom to connect.
type Endpoint struct {
	Host     string
	Port     uint16
	User     string
	Password string
}

// Resolver produces the endpoint at connect time. The server and its
// credentials only exist after earlier steps of the same run.
type Resolver func(ctx context.Context) (Endpoint, error)

// Client implements ports.Database. Every call opens a short-lived
// connection.
type Client struct {
	resolve        Resolver
	connectTimeout time.Duration
}

// Ensure Client implements ports.Database.
var _ ports.Database = (*Client)(nil)

// NewClient creates a client that resolves its endpoint on every call.
func NewClient(resolve Resolver) *Client {
	return &Client{resolve: resolve, connectTimeout: 5 * time.Second}
}

// ClusterResolver resolves the endpoint of a database running in the
// cluster: the ClusterIP of its service and the superuser password stored
// under passwordKey in a secret.
func ClusterResolver(cluster ports.Cluster, namespace, service, secret, user, passwordKey string) Resolver {
	return func(ctx context.Context) (Endpoint, error) {
		host, err := cluster.ServiceClusterIP(ctx, namespace, service)
		if err != nil {
			return Endpoint{}, err
		}
		password, err := cluster.SecretValue(ctx, namespace, secret, passwordKey)
		if err != nil {
			return Endpoint{}, err
		}
		return Endpoint{Host: host, Port: 5432, User: user, Password: string(password)}, nil
	}
}

func (c *Client) connect(ctx context.Context, database string) (*pgconn.PgConn, error) {
	endpoint, err := c.resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database endpoint: %w", err)
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=disable connect_timeout=%d",
		endpoint.Host, endpoint.Port, endpoint.User, database, int(c.connectTimeout.Seconds()))
	config, err := pgconn.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	config.Password = endpoint.Password

	conn, err := pgconn.ConnectConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s on %s: %w", database, endpoint.Host, err)
	}
	return conn, nil
}

// withConn runs fn on a fresh connection to database.
func (c *Client) withConn(ctx context.Context, database string, fn func(*pgconn.PgConn) error) error {
	conn, err := c.connect(ctx, database)
	if err != nil {
		return err
	}
	defer func() {
		_ = conn.Close(context.WithoutCancel(ctx))
	}()
	return fn(conn)
}

// exists runs a single-parameter query and reports whether it returned a row.
func (c *Client) exists(ctx context.Context, database, query, param string) (bool, error) {
	var found bool
	err := c.withConn(ctx, database, func(conn *pgconn.PgConn) error {
		result := conn.ExecParams(ctx, query, [][]byte{[]byte(param)}, nil, nil, nil).Read()
		if result.Err != nil {
			return result.Err
		}
		found = len(result.Rows) > 0
		return nil
	})
	return found, err
}

// exec runs one statement, treating the given SQLSTATE codes as success.
func (c *Client) exec(ctx context.Context, database, statement string, alreadyExists ...string) error {
	return c.withConn(ctx, database, func(conn *pgconn.PgConn) error {
		_, err := conn.Exec(ctx, statement).ReadAll()
		return ignoreCodes(err, alreadyExists...)
	})
}

// Ping runs SELECT 1 against the maintenance database.
func (c *Client) Ping(ctx context.Context) error {
	return c.exec(ctx, MaintenanceDatabase, "SELECT 1")
}

// RoleExists checks pg_roles.
func (c *Client) RoleExists(ctx context.Context, role string) (bool, error) {
	found, err := c.exists(ctx, MaintenanceDatabase, "SELECT 1 FROM pg_roles WHERE rolname = $1", role)
	if err != nil {
		return false, fmt.Errorf("failed to look up role %s: %w", role, err)
	}
	return found, nil
}

// CreateRole creates a login role with a password.
func (c *Client) CreateRole(ctx context.Context, role, password string) error {
	literal, err := quoteLiteral(password)
	if err != nil {
		return err
	}
	statement := fmt.Sprintf("CREATE ROLE %s WITH LOGIN PASSWORD %s", quoteIdentifier(role), literal)
	if err := c.exec(ctx, MaintenanceDatabase, statement, codeDuplicateObject); err != nil {
		return fmt.Errorf("failed to create role %s: %w", role, err)
	}
	return nil
}

// DatabaseExists checks pg_database.
func (c *Client) DatabaseExists(ctx context.Context, name string) (bool, error) {
	found, err := c.exists(ctx, MaintenanceDatabase, "SELECT 1 FROM pg_database WHERE datname = $1", name)
	if err != nil {
		return false, fmt.Errorf("failed to look up database %s: %w", name, err)
	}
	return found, nil
}

// CreateDatabase creates a database owned by owner.
func (c *Client) CreateDatabase(ctx context.Context, name, owner string) error {
	statement := fmt.Sprintf("CREATE DATABASE %s OWNER %s", quoteIdentifier(name), quoteIdentifier(owner))
	if err := c.exec(ctx, MaintenanceDatabase, statement, codeDuplicateDatabase); err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}
	return nil
}

// ExtensionExists checks pg_extension inside database.
func (c *Client) ExtensionExists(ctx context.Context, database, extension string) (bool, error) {
	found, err := c.exists(ctx, database, "SELECT 1 FROM pg_extension WHERE extname = $1", extension)
	if err != nil {
		return false, fmt.Errorf("failed to look up extension %s in %s: %w", extension, database, err)
	}
	return found, nil
}

// CreateExtension installs an extension inside database.
func (c *Client) CreateExtension(ctx context.Context, database, extension string) error {
	statement := "CREATE EXTENSION IF NOT EXISTS " + quoteIdentifier(extension)
	if err := c.exec(ctx, database, statement); err != nil {
		return fmt.Errorf("failed to create extension %s in %s: %w", extension, database, err)
	}
	return nil
}

// SQLState returns the SQLSTATE code of a server error, or "".
func SQLState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func ignoreCodes(err error, codes ...string) error {
	if err == nil {
		return nil
	}
	state := SQLState(err)
	for _, code := range codes {
		if state == code {
			return nil
		}
	}
	return err
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral quotes a string for standard_conforming_strings=on.
func quoteLiteral(value string) (string, error) {
	if strings.ContainsRune(value, 0) {
		return "", errors.New("string literal contains a NUL byte")
	}
	return "'" + strings.ReplaceAll(value, "'", "''") + "'", nil
}
