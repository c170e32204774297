package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/paklog/orchestration/pkg/metrics"
)

// Client wraps a MongoDB client with startup retries, pool gauges and
// graceful shutdown.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
	config   Config
	logger   *slog.Logger
	mu       sync.RWMutex
	closed   bool

	activeConns atomic.Int64
	inUseConns  atomic.Int64
}

// New connects to MongoDB and returns a client.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		config: cfg,
		logger: logger.With("component", "mongodb"),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// connect establishes the connection with exponential backoff between
// attempts. The first successful ping wins.
func (c *Client) connect(ctx context.Context) error {
	opts := options.Client().
		ApplyURI(c.config.URI).
		SetMinPoolSize(c.config.MinPoolSize).
		SetMaxPoolSize(c.config.MaxPoolSize).
		SetConnectTimeout(c.config.ConnectTimeout).
		SetSocketTimeout(c.config.SocketTimeout).
		SetServerSelectionTimeout(c.config.ServerSelectionTimeout).
		SetRetryWrites(c.config.RetryWrites).
		SetRetryReads(c.config.RetryReads).
		SetPoolMonitor(c.poolMonitor())

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.backoff(attempt)
			c.logger.Debug("retrying connection",
				"attempt", attempt,
				"backoff", backoff,
			)

			select {
			case <-ctx.Done():
				return fmt.Errorf("mongodb: connection cancelled: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		client, err := mongo.Connect(ctx, opts)
		if err != nil {
			lastErr = err
			c.logger.Warn("connection attempt failed", "attempt", attempt, "error", err)
			continue
		}

		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			lastErr = err
			c.logger.Warn("ping failed", "attempt", attempt, "error", err)
			_ = client.Disconnect(ctx)
			continue
		}

		c.client = client
		c.database = client.Database(c.config.Database)
		c.logger.Info("connected to MongoDB", "database", c.config.Database)
		return nil
	}

	return fmt.Errorf("mongodb: failed to connect after %d attempts: %w",
		c.config.MaxRetries+1, lastErr)
}

// poolMonitor keeps the connection pool gauges current.
func (c *Client) poolMonitor() *event.PoolMonitor {
	return &event.PoolMonitor{
		Event: func(evt *event.PoolEvent) {
			switch evt.Type {
			case event.ConnectionCreated:
				c.activeConns.Add(1)
			case event.ConnectionClosed:
				c.activeConns.Add(-1)
			case event.GetSucceeded:
				c.inUseConns.Add(1)
			case event.ConnectionReturned:
				c.inUseConns.Add(-1)
			default:
				return
			}

			active := float64(c.inUseConns.Load())
			idle := float64(c.activeConns.Load()) - active
			if idle < 0 {
				idle = 0
			}
			metrics.Global().Database().SetConnectionPool(active, idle, float64(c.config.MaxPoolSize))
		},
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	backoff := c.config.RetryBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
	if backoff > c.config.MaxRetryBackoff {
		backoff = c.config.MaxRetryBackoff
	}
	return backoff
}

// Database returns the database handle.
func (c *Client) Database() *mongo.Database {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.database
}

// Collection returns a collection from the database.
func (c *Client) Collection(name string) *mongo.Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.database == nil {
		return nil
	}
	return c.database.Collection(name)
}

// Client returns the underlying mongo.Client.
func (c *Client) Client() *mongo.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// Close disconnects from MongoDB. Safe to call twice.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	if c.client == nil {
		c.closed = true
		return nil
	}

	c.logger.Info("disconnecting from MongoDB")

	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongodb: disconnect failed: %w", err)
	}

	c.closed = true
	c.client = nil
	c.database = nil
	return nil
}

// IsClosed reports whether the client has been closed.
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// WithTransaction runs fn inside a MongoDB transaction. Requires a
// replica set or mongos.
func (c *Client) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return fmt.Errorf("mongodb: client is closed")
	}
	client := c.client
	c.mu.RUnlock()

	session, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("mongodb: failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	})
	if err != nil {
		return fmt.Errorf("mongodb: transaction failed: %w", err)
	}
	return nil
}

// PoolStats holds connection pool counters maintained by the pool monitor.
type PoolStats struct {
	ActiveConnections int64
	InUseConnections  int64
	MaxPoolSize       uint64
}

// PoolStats returns the current pool counters.
func (c *Client) PoolStats() PoolStats {
	return PoolStats{
		ActiveConnections: c.activeConns.Load(),
		InUseConnections:  c.inUseConns.Load(),
		MaxPoolSize:       c.config.MaxPoolSize,
	}
}
