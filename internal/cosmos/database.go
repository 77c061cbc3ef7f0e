package cosmos

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
)

// databaseAPI is the subset of *azcosmos.DatabaseClient the Database uses.
type databaseAPI interface {
	Read(ctx context.Context, o *azcosmos.ReadDatabaseOptions) (azcosmos.DatabaseResponse, error)
}

// Database is one database of the account. Ad-hoc queries name their
// container per request, so a Database needs no default container.
type Database struct {
	name string
	db   databaseAPI
	open func(container string) (containerAPI, error)
}

// NewDatabase builds the account client for cfg.Database. Only credentials
// and the database name are required. It does not perform network I/O.
func NewDatabase(cfg Config) (*Database, error) {
	name := strings.TrimSpace(cfg.Database)
	if name == "" {
		return nil, ErrMissingDatabase
	}

	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	dbClient, err := client.NewDatabase(name)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", name, err)
	}

	return &Database{
		name: name,
		db:   dbClient,
		open: func(container string) (containerAPI, error) {
			return dbClient.NewContainer(container)
		},
	}, nil
}

// Name returns the database name.
func (d *Database) Name() string { return d.name }

// Connector opens container of this database. pkPaths may be empty.
func (d *Database) Connector(container string, pkPaths []string) (*Connector, error) {
	container = strings.TrimSpace(container)
	if container == "" {
		return nil, ErrMissingTarget
	}
	items, err := d.open(container)
	if err != nil {
		return nil, fmt.Errorf("opening container %s/%s: %w", d.name, container, err)
	}
	c := newConnector(items, pkPaths)
	c.db = d
	c.database = d.name
	c.container = container
	return c, nil
}

// QueryContainer runs an unparameterized cross-partition query against
// container.
func (d *Database) QueryContainer(ctx context.Context, container, text string) (QueryResult, error) {
	conn, err := d.Connector(container, nil)
	if err != nil {
		return QueryResult{}, err
	}
	return conn.Query(ctx, QueryRequest{Text: text})
}

// Ping reads the database properties.
func (d *Database) Ping(ctx context.Context) error {
	if _, err := d.db.Read(ctx, nil); err != nil {
		return fmt.Errorf("reading database properties: %w", err)
	}
	return nil
}
