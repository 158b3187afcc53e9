package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/redis/go-redis/v9"
)

// Lease grants exclusive use of a named resource for at most ttl.
// TryAcquire never blocks on a held lease; ok is false instead.
type Lease interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

type leaseClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLease struct {
	client leaseClient
	prefix string
}

// NewRedisLease returns a Lease shared by every process using the same
// redis. Release only deletes the key if it still holds this holder's token.
func NewRedisLease(client leaseClient, prefix string) Lease {
	return &redisLease{client: client, prefix: prefix}
}

func (l *redisLease) TryAcquire(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	token, err := gonanoid.New()
	if err != nil {
		return nil, false, err
	}

	key := l.prefix + name
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		if err := releaseScript.Run(context.Background(), l.client, []string{key}, token).Err(); err != nil {
			slog.Warn("failed to release lease", "key", key, "error", err)
		}
	}
	return release, true, nil
}

type localLease struct {
	mu      sync.Mutex
	holders map[string]time.Time
	now     func() time.Time
}

// NewLocalLease returns an in-process Lease for single-node deployments.
func NewLocalLease() Lease {
	return &localLease{
		holders: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (l *localLease) TryAcquire(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expires, held := l.holders[name]; held && l.now().Before(expires) {
		return nil, false, nil
	}

	expires := l.now().Add(ttl)
	l.holders[name] = expires

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.holders[name].Equal(expires) {
			delete(l.holders, name)
		}
	}
	return release, true, nil
}
