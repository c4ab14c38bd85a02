package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Интеграционные тесты Redis-кэша. Запуск:
//   GO_TEST_INTEGRATION=1 go test ./internal/cache -run Redis -v -count=1

func startRedis(t *testing.T) (ResponseCache, func()) {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "6379/tcp")

	rc, err := NewRedisCache(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()), "test:")
	require.NoError(t, err)

	return rc, func() {
		_ = rc.Close()
		_ = c.Terminate(context.Background())
	}
}

func TestIntegration_Redis_SetGetMiss(t *testing.T) {
	rc, cleanup := startRedis(t)
	defer cleanup()

	ctx := context.Background()

	_, ok, err := rc.Get(ctx, "absent")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, rc.Set(ctx, "plaid-api:accounts:1", []byte(`{"n":1}`), time.Minute))

	got, ok, err := rc.Get(ctx, "plaid-api:accounts:1")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"n":1}`, string(got))
}

func TestIntegration_Redis_TTL(t *testing.T) {
	rc, cleanup := startRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, rc.Set(ctx, "short", []byte("v"), time.Second))

	require.Eventually(t, func() bool {
		_, ok, err := rc.Get(ctx, "short")
		return err == nil && !ok
	}, 5*time.Second, 100*time.Millisecond)
}

func TestNewRedisCache_BadURL(t *testing.T) {
	t.Parallel()

	_, err := NewRedisCache(context.Background(), "not-a-redis-url", "")
	require.Error(t, err)
}
