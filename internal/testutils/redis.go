package testutils

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// testRedisDB keeps test keys away from a developer's real data
const testRedisDB = 15

// TestRedisOptions builds client options from REDIS_URL, falling back to a
// local server. The database is always forced to the test database.
func TestRedisOptions(t *testing.T) *redis.Options {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err, "Failed to parse REDIS_URL")

	opts.DB = testRedisDB
	return opts
}

// CreateTestRedisClientOrSkip connects to the test database, flushes it and
// skips the test when no server answers.
func CreateTestRedisClientOrSkip(t *testing.T) redis.UniversalClient {
	t.Helper()

	client := redis.NewClient(TestRedisOptions(t))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available for testing: %v", err)
	}

	// Clear the test database
	require.NoError(t, client.FlushDB(ctx).Err(), "Failed to flush test Redis database")

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})

	return client
}
