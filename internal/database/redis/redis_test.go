//go:build integration

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/face-sculptor/internal/session/sessiontest"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*SessionRepository, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	repo, err := Connect(ctx, &redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())}, "test:")
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to connect: %v", err)
	}

	cleanup := func() {
		repo.Close()
		container.Terminate(ctx)
	}
	return repo, cleanup
}

func TestSessionRepository(t *testing.T) {
	repo, cleanup := setupTestContainer(t)
	if repo == nil {
		return
	}
	defer cleanup()

	sessiontest.Run(t, repo)
}
