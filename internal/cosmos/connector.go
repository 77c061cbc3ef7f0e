// Package cosmos owns the single connection to one Azure Cosmos DB account
// and exposes the five primitive item operations of its default container.
package cosmos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
)

const applicationID = "chamicore-cosmos"

var (
	// ErrMissingCredentials is returned when neither a connection string nor an
	// endpoint and key pair is configured.
	ErrMissingCredentials = errors.New("cosmos credentials are missing: provide COSMOS_CONNECTION_STRING or COSMOS_ENDPOINT + COSMOS_KEY")

	// ErrMissingDatabase is returned when the database name is empty.
	ErrMissingDatabase = errors.New("cosmos database name is required")

	// ErrMissingTarget is returned when the database or container name is empty.
	ErrMissingTarget = errors.New("cosmos database and container names are required")

	// ErrNotConfigured is reported when an operation runs without a store.
	ErrNotConfigured = errors.New("store is not configured")

	// ErrInvalidInput marks request data the connector cannot address the
	// store with, such as an unsupported partition key value.
	ErrInvalidInput = errors.New("invalid input")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Document is a schemaless JSON object stored in a container.
type Document = map[string]any

// Config describes how to reach one database/container pair.
type Config struct {
	ConnectionString string
	Endpoint         string
	Key              string
	Database         string
	Container        string

	// PartitionKeyPaths overrides the container's partition key definition,
	// for example []string{"/tenantId"}. When empty the definition is read
	// from the container on the first upsert.
	PartitionKeyPaths []string

	// MaxRetries configures the azcore transport retry policy. Zero keeps the
	// SDK default.
	MaxRetries int32
}

// containerAPI is the subset of *azcosmos.ContainerClient the connector uses.
type containerAPI interface {
	Read(ctx context.Context, o *azcosmos.ReadContainerOptions) (azcosmos.ContainerResponse, error)
	ReadItem(ctx context.Context, partitionKey azcosmos.PartitionKey, itemID string, o *azcosmos.ItemOptions) (azcosmos.ItemResponse, error)
	UpsertItem(ctx context.Context, partitionKey azcosmos.PartitionKey, item []byte, o *azcosmos.ItemOptions) (azcosmos.ItemResponse, error)
	PatchItem(ctx context.Context, partitionKey azcosmos.PartitionKey, itemID string, ops azcosmos.PatchOperations, o *azcosmos.ItemOptions) (azcosmos.ItemResponse, error)
	DeleteItem(ctx context.Context, partitionKey azcosmos.PartitionKey, itemID string, o *azcosmos.ItemOptions) (azcosmos.ItemResponse, error)
	NewQueryItemsPager(query string, partitionKey azcosmos.PartitionKey, o *azcosmos.QueryOptions) *runtime.Pager[azcosmos.QueryItemsResponse]
}

// Connector is safe for concurrent use. The only shared mutable state is the
// lazily resolved partition key definition, which is guarded by mu.
type Connector struct {
	db        *Database
	database  string
	container string
	items     containerAPI

	mu       sync.Mutex
	pkPaths  []string
	resolved bool
}

// New builds the connector for cfg.Container. Credentials and both the
// database and container names are required. It does not perform network I/O.
func New(cfg Config) (*Connector, error) {
	if strings.TrimSpace(cfg.Database) == "" || strings.TrimSpace(cfg.Container) == "" {
		return nil, ErrMissingTarget
	}
	db, err := NewDatabase(cfg)
	if err != nil {
		return nil, err
	}
	return db.Connector(cfg.Container, cfg.PartitionKeyPaths)
}

func newConnector(items containerAPI, pkPaths []string) *Connector {
	c := &Connector{items: items}
	if paths := cleanPaths(pkPaths); len(paths) > 0 {
		c.pkPaths = paths
		c.resolved = true
	}
	return c
}

func newClient(cfg Config) (*azcosmos.Client, error) {
	opts := &azcosmos.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Telemetry: policy.TelemetryOptions{ApplicationID: applicationID},
		},
	}
	if cfg.MaxRetries > 0 {
		opts.Retry = policy.RetryOptions{MaxRetries: cfg.MaxRetries}
	}

	connectionString := strings.TrimSpace(cfg.ConnectionString)
	endpoint := strings.TrimSpace(cfg.Endpoint)
	key := strings.TrimSpace(cfg.Key)

	switch {
	case connectionString != "":
		client, err := azcosmos.NewClientFromConnectionString(connectionString, opts)
		if err != nil {
			return nil, fmt.Errorf("creating cosmos client from connection string: %w", err)
		}
		return client, nil
	case endpoint != "" && key != "":
		cred, err := azcosmos.NewKeyCredential(key)
		if err != nil {
			return nil, fmt.Errorf("creating cosmos key credential: %w", err)
		}
		client, err := azcosmos.NewClientWithKey(endpoint, cred, opts)
		if err != nil {
			return nil, fmt.Errorf("creating cosmos client for %s: %w", endpoint, err)
		}
		return client, nil
	default:
		return nil, ErrMissingCredentials
	}
}

// Database returns the configured database name.
func (c *Connector) Database() string { return c.database }

// Container returns the configured container name.
func (c *Connector) Container() string { return c.container }

// DatabaseHandle returns the database the connector was opened from, sharing
// its account client.
func (c *Connector) DatabaseHandle() *Database { return c.db }

// Ping reads the container properties.
func (c *Connector) Ping(ctx context.Context) error {
	if _, err := c.items.Read(ctx, nil); err != nil {
		return fmt.Errorf("reading container properties: %w", err)
	}
	return nil
}

// Read fetches one document by id and partition key.
func (c *Connector) Read(ctx context.Context, id string, partitionKey any) (Document, error) {
	pk, err := PartitionKeyOf(partitionKey)
	if err != nil {
		return nil, err
	}
	resp, err := c.items.ReadItem(ctx, pk, id, nil)
	if err != nil {
		return nil, fmt.Errorf("reading item %s: %w", id, err)
	}
	return decodeDocument(resp.Value)
}

// Upsert creates or replaces a document and returns the stored version,
// including store-assigned metadata.
func (c *Connector) Upsert(ctx context.Context, item Document) (Document, error) {
	paths, err := c.partitionKeyPaths(ctx)
	if err != nil {
		return nil, err
	}
	pk, err := PartitionKeyFromDocument(item, paths)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("encoding item: %w", err)
	}
	resp, err := c.items.UpsertItem(ctx, pk, body, &azcosmos.ItemOptions{EnableContentResponseOnWrite: true})
	if err != nil {
		return nil, fmt.Errorf("upserting item: %w", err)
	}
	return decodeDocument(resp.Value)
}

// Patch applies ops to one document atomically and returns the result.
func (c *Connector) Patch(ctx context.Context, id string, partitionKey any, ops []PatchOperation) (Document, error) {
	pk, err := PartitionKeyOf(partitionKey)
	if err != nil {
		return nil, err
	}
	patch, err := buildPatch(ops)
	if err != nil {
		return nil, err
	}
	resp, err := c.items.PatchItem(ctx, pk, id, patch, &azcosmos.ItemOptions{EnableContentResponseOnWrite: true})
	if err != nil {
		return nil, fmt.Errorf("patching item %s: %w", id, err)
	}
	return decodeDocument(resp.Value)
}

// Delete removes one document and acknowledges with its id.
func (c *Connector) Delete(ctx context.Context, id string, partitionKey any) (map[string]any, error) {
	pk, err := PartitionKeyOf(partitionKey)
	if err != nil {
		return nil, err
	}
	if _, err := c.items.DeleteItem(ctx, pk, id, nil); err != nil {
		return nil, fmt.Errorf("deleting item %s: %w", id, err)
	}
	return map[string]any{"deleted": true, "id": id}, nil
}

func (c *Connector) partitionKeyPaths(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved {
		return c.pkPaths, nil
	}

	resp, err := c.items.Read(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("reading container partition key definition: %w", err)
	}
	if resp.ContainerProperties == nil {
		return nil, fmt.Errorf("container properties missing from response")
	}
	paths := cleanPaths(resp.ContainerProperties.PartitionKeyDefinition.Paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("container has no partition key paths")
	}
	c.pkPaths = paths
	c.resolved = true
	return paths, nil
}

func cleanPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func decodeDocument(raw []byte) (Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Document{}, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var doc Document
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding item: %w", err)
	}
	return doc, nil
}
