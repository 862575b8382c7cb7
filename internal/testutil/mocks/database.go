package mocks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

// Database is an in-memory ports.Database.
type Database struct {
	mu         sync.Mutex
	roles      map[string]string
	databases  map[string]string
	extensions map[string]bool
	pings      []error
	errors     map[string]error
	calls      map[string]int
}

// Ensure Database implements ports.Database.
var _ ports.Database = (*Database)(nil)

// NewDatabase creates an empty database server that answers pings.
func NewDatabase() *Database {
	return &Database{
		roles:      make(map[string]string),
		databases:  make(map[string]string),
		extensions: make(map[string]bool),
		errors:     make(map[string]error),
		calls:      make(map[string]int),
	}
}

// SetPings queues Ping results; the last one repeats.
func (d *Database) SetPings(results ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pings = results
}

// FailOn makes the named method return err.
func (d *Database) FailOn(method string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errors[method] = err
}

// CallCount returns how often a method was called.
func (d *Database) CallCount(method string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[method]
}

// Password returns the password a role was created with.
func (d *Database) Password(role string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.roles[role]
}

// Owner returns the owner of a database.
func (d *Database) Owner(name string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.databases[name]
}

func (d *Database) enter(method string) error {
	d.calls[method]++
	return d.errors[method]
}

// Ping returns the next queued result.
func (d *Database) Ping(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Ping"); err != nil {
		return err
	}
	if len(d.pings) == 0 {
		return nil
	}
	result := d.pings[0]
	if len(d.pings) > 1 {
		d.pings = d.pings[1:]
	}
	return result
}

// RoleExists reports whether a role was created.
func (d *Database) RoleExists(_ context.Context, role string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("RoleExists"); err != nil {
		return false, err
	}
	_, ok := d.roles[role]
	return ok, nil
}

// CreateRole creates a role, failing if it exists.
func (d *Database) CreateRole(_ context.Context, role, password string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("CreateRole"); err != nil {
		return err
	}
	if _, ok := d.roles[role]; ok {
		return fmt.Errorf("role %q already exists", role)
	}
	d.roles[role] = password
	return nil
}

// DatabaseExists reports whether a database was created.
func (d *Database) DatabaseExists(_ context.Context, name string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("DatabaseExists"); err != nil {
		return false, err
	}
	_, ok := d.databases[name]
	return ok, nil
}

// CreateDatabase creates a database owned by an existing role.
func (d *Database) CreateDatabase(_ context.Context, name, owner string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("CreateDatabase"); err != nil {
		return err
	}
	if _, ok := d.roles[owner]; !ok {
		return fmt.Errorf("role %q does not exist", owner)
	}
	if _, ok := d.databases[name]; ok {
		return fmt.Errorf("database %q already exists", name)
	}
	d.databases[name] = owner
	return nil
}

// ExtensionExists reports whether an extension was created in a database.
func (d *Database) ExtensionExists(_ context.Context, database, extension string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("ExtensionExists"); err != nil {
		return false, err
	}
	return d.extensions[key(database, extension)], nil
}

// CreateExtension creates an extension in an existing database.
func (d *Database) CreateExtension(_ context.Context, database, extension string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("CreateExtension"); err != nil {
		return err
	}
	if _, ok := d.databases[database]; !ok && database != "postgres" {
		return fmt.Errorf("database %q does not exist", database)
	}
	d.extensions[key(database, extension)] = true
	return nil
}

// Network is a static ports.Network.
type Network struct {
	mu         sync.Mutex
	records    map[string][]string
	externalIP string
	offset     time.Duration
	errors     map[string]error
}

// Ensure Network implements ports.Network.
var _ ports.Network = (*Network)(nil)

// NewNetwork creates a network with no DNS records.
func NewNetwork(externalIP string) *Network {
	return &Network{
		records:    make(map[string][]string),
		externalIP: externalIP,
		errors:     make(map[string]error),
	}
}

// AddRecord sets the A records of a host.
func (n *Network) AddRecord(host string, ips ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records[host] = ips
}

// SetClockOffset sets the offset ClockOffset reports.
func (n *Network) SetClockOffset(offset time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offset = offset
}

// FailOn makes the named method return err.
func (n *Network) FailOn(method string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors[method] = err
}

// LookupIPv4 returns the records added for host.
func (n *Network) LookupIPv4(_ context.Context, host string) ([]string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.errors["LookupIPv4"]; err != nil {
		return nil, err
	}
	ips, ok := n.records[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	return append([]string(nil), ips...), nil
}

// ExternalIPv4 returns the configured address.
func (n *Network) ExternalIPv4(_ context.Context) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.errors["ExternalIPv4"]; err != nil {
		return "", err
	}
	return n.externalIP, nil
}

// ClockOffset returns the configured offset.
func (n *Network) ClockOffset(_ context.Context) (time.Duration, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.errors["ClockOffset"]; err != nil {
		return 0, err
	}
	return n.offset, nil
}
