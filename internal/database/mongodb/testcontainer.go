package mongodb

import (
	"context"
	"log/slog"
	"testing"

	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
)

// TestContainer holds a MongoDB container started for a test.
type TestContainer struct {
	Container *tcmongo.MongoDBContainer
	URI       string
}

// SetupTestContainer starts a MongoDB container and registers cleanup.
func SetupTestContainer(t *testing.T) *TestContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcmongo.Run(ctx, "mongo:7.0")
	if err != nil {
		t.Fatalf("failed to start MongoDB container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("warning: failed to terminate container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	return &TestContainer{Container: container, URI: uri}
}

// NewTestClient connects a client to the test container.
func (tc *TestContainer) NewTestClient(t *testing.T, database string) *Client {
	t.Helper()

	cfg := DefaultConfig()
	cfg.URI = tc.URI
	cfg.Database = database

	client, err := New(context.Background(), cfg, slog.Default())
	if err != nil {
		t.Fatalf("failed to create MongoDB client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close(context.Background())
	})

	return client
}

// RunWithTestContainer runs fn against a fresh container-backed client.
func RunWithTestContainer(t *testing.T, database string, fn func(t *testing.T, client *Client)) {
	t.Helper()

	tc := SetupTestContainer(t)
	fn(t, tc.NewTestClient(t, database))
}
