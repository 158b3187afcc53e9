package job

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLease(t *testing.T) {
	l := NewLocalLease().(*localLease)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	release, ok, err := l.TryAcquire(ctx, "cycle", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryAcquire(ctx, "cycle", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held lease must not be granted twice")

	_, ok, _ = l.TryAcquire(ctx, "other", time.Minute)
	assert.True(t, ok, "leases are per name")

	release()
	release2, ok, _ := l.TryAcquire(ctx, "cycle", time.Minute)
	assert.True(t, ok)

	// an expired holder cannot release the new holder's lease
	now = now.Add(2 * time.Minute)
	release3, ok, _ := l.TryAcquire(ctx, "cycle", time.Minute)
	require.True(t, ok)
	release2()
	_, ok, _ = l.TryAcquire(ctx, "cycle", time.Minute)
	assert.False(t, ok)
	release3()
}

func TestRedisLease(t *testing.T) {
	addr := os.Getenv("REDIS_URI")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}

	prefix := "test:lease:" + t.Name() + ":"
	defer client.Del(context.Background(), prefix+"cycle")

	a := NewRedisLease(client, prefix)
	b := NewRedisLease(client, prefix)

	release, ok, err := a.TryAcquire(ctx, "cycle", 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = b.TryAcquire(ctx, "cycle", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := client.PTTL(ctx, prefix+"cycle").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	release()
	_, ok, err = b.TryAcquire(ctx, "cycle", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

type unreachableRedis struct {
	redis.Scripter
	evals int
}

func (c *unreachableRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(true, nil)
}

func (c *unreachableRedis) EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	c.evals++
	return redis.NewCmdResult(nil, errors.New("connection reset by peer"))
}

func (c *unreachableRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	c.evals++
	return redis.NewCmdResult(nil, errors.New("connection reset by peer"))
}

func TestRedisLease_ReleaseErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	client := &unreachableRedis{}
	l := NewRedisLease(client, "test:")

	release, ok, err := l.TryAcquire(context.Background(), "cycle", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	assert.NotPanics(t, release)
	assert.Equal(t, 1, client.evals)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "failed to release lease")
	assert.Contains(t, buf.String(), "key=test:cycle")
	assert.Contains(t, buf.String(), "connection reset by peer")
}
