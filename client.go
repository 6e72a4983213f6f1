package dynamap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dynamap/internal/db"
	dbRedis "github.com/kailas-cloud/dynamap/internal/db/redis"
	mappingrepo "github.com/kailas-cloud/dynamap/internal/repository/mapping"
	mappinguc "github.com/kailas-cloud/dynamap/internal/usecase/mapping"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the embedded SDK entry point: index mappings persisted in
// redis, grown as documents are parsed, without running the HTTP server.
type Client struct {
	store db.Store
	svc   *mappinguc.Service
}

// Option configures the client.
type Option func(*clientConfig)

type clientConfig struct {
	addrs       []string
	password    string
	keyPrefix   string
	logger      *zap.Logger
	dynamic     *bool
	dateFormats []string
}

// WithRedis sets the redis addresses to connect to.
func WithRedis(addrs ...string) Option {
	return func(c *clientConfig) { c.addrs = addrs }
}

// WithPassword sets the database password.
func WithPassword(password string) Option {
	return func(c *clientConfig) { c.password = password }
}

// WithKeyPrefix sets the key prefix mappings are stored under.
func WithKeyPrefix(prefix string) Option {
	return func(c *clientConfig) { c.keyPrefix = prefix }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = logger }
}

// WithIndexDefaults sets the defaults applied to implicitly created
// indices: nil dynamic keeps the built-in default (dynamic on).
func WithIndexDefaults(dynamic *bool, dateFormats []string) Option {
	return func(c *clientConfig) {
		c.dynamic = dynamic
		c.dateFormats = dateFormats
	}
}

// NewClient creates a Client and connects to the database.
func NewClient(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("dynamap: database address required (use WithRedis)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("dynamap: create redis store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("dynamap: database not ready: %w", err)
	}

	repo := mappingrepo.New(store)
	if cfg.keyPrefix != "" {
		repo = repo.WithKeyPrefix(cfg.keyPrefix)
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	svc, err := mappinguc.New(repo, logger).WithDefaults(cfg.dynamic, cfg.dateFormats)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("dynamap: %w", err)
	}

	return &Client{store: store, svc: svc}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// PutMapping applies a mapping definition to an index, creating it when
// absent. A conflicting update is rejected whole.
func (c *Client) PutMapping(ctx context.Context, index string, def []byte) error {
	_, err := c.svc.PutMapping(ctx, index, def, false)
	return err
}

// ValidateMapping dry-runs a mapping update and returns the conflicts it
// would hit, committing nothing.
func (c *Client) ValidateMapping(ctx context.Context, index string, def []byte) ([]string, error) {
	conflicts, err := c.svc.PutMapping(ctx, index, def, true)
	if len(conflicts) > 0 {
		return conflicts, nil
	}
	return nil, err
}

// GetMapping returns the serialized mapping of an index.
func (c *Client) GetMapping(ctx context.Context, index string) ([]byte, error) {
	return c.svc.GetMapping(ctx, index)
}

// ParseDocument parses a JSON document against the index mapping, growing
// and persisting the mapping when new fields are discovered.
func (c *Client) ParseDocument(ctx context.Context, index string, doc []byte) error {
	return c.svc.ParseDocument(ctx, index, doc)
}

// DeleteIndex removes an index mapping.
func (c *Client) DeleteIndex(ctx context.Context, index string) error {
	return c.svc.DeleteIndex(ctx, index)
}

// ListIndices returns every index with a stored mapping.
func (c *Client) ListIndices(ctx context.Context) ([]string, error) {
	return c.svc.ListIndices(ctx)
}
