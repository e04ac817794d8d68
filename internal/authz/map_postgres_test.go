package authz

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/DatapuntAmsterdam/authorization/internal/access"
	"github.com/DatapuntAmsterdam/authorization/internal/database"
	"github.com/charmbracelet/log"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts PostgreSQL in a container. Set TEST_INTEGRATION to run.
func setupPostgres(t *testing.T) database.Params {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("authz_test"),
		postgres.WithUsername("authz"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}
	portNum, err := strconv.Atoi(port.Port())
	if err != nil {
		t.Fatalf("invalid mapped port %q: %v", port.Port(), err)
	}

	p := database.DefaultParams()
	p.Host = host
	p.Port = portNum
	p.Database = "authz_test"
	p.User = "authz"
	p.Password = "test-password"
	p.SSLMode = "disable"
	return p
}

func TestPostgres_MapLifecycle(t *testing.T) {
	p := setupPostgres(t)
	ctx := context.Background()

	m, err := Open(ctx, p, access.BuiltinLevels(), log.New(io.Discard))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer m.Close()

	for i := 0; i < 2; i++ {
		if err := m.InitializeSchema(ctx); err != nil {
			t.Fatalf("InitializeSchema() #%d error: %v", i+1, err)
		}
	}

	if _, err := m.Get(ctx, "alice"); !errors.Is(err, ErrNotAssigned) {
		t.Fatalf("Get() before Set error = %v, want ErrNotAssigned", err)
	}

	if err := m.Set(ctx, "alice", access.Read); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := m.Set(ctx, "alice", access.Admin); err != nil {
		t.Fatalf("Set() overwrite error: %v", err)
	}

	got, err := m.Get(ctx, "alice")
	if err != nil || got != access.Admin {
		t.Fatalf("Get() = %d, %v; want %d, nil", got, err, access.Admin)
	}

	entries, err := m.Entries(ctx)
	if err != nil || len(entries) != 1 {
		t.Fatalf("Entries() = %v, %v; want one entry", entries, err)
	}

	for i := 0; i < 2; i++ {
		if err := m.Delete(ctx, "alice"); err != nil {
			t.Fatalf("Delete() #%d error: %v", i+1, err)
		}
	}
	ok, err := m.Contains(ctx, "alice")
	if err != nil || ok {
		t.Fatalf("Contains() after Delete = %v, %v; want false, nil", ok, err)
	}
}

func TestPostgres_BadPassword(t *testing.T) {
	p := setupPostgres(t)
	p.Password = "wrong"

	_, err := Open(context.Background(), p, nil, log.New(io.Discard))
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("Open() error = %v, want ErrConnection", err)
	}
}
