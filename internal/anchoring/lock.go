package anchoring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"trustcore/internal/constants"
	"trustcore/internal/logger"
)

// WindowLock serialises builds of one [start, end) window across replicas.
// acquired is false when another holder owns the window.
type WindowLock interface {
	Acquire(ctx context.Context, start, end time.Time) (release func(), acquired bool, err error)
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisWindowLock struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisWindowLock(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisWindowLock {
	if ttl <= 0 {
		ttl = constants.DefaultWindowLockTTL
	}
	return &RedisWindowLock{client: client, ttl: ttl, logger: log}
}

func windowKey(start, end time.Time) string {
	return fmt.Sprintf("%s%d:%d", constants.CacheKeyPrefixWindowLock, start.UTC().Unix(), end.UTC().Unix())
}

func (l *RedisWindowLock) Acquire(ctx context.Context, start, end time.Time) (func(), bool, error) {
	key := windowKey(start, end)
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire window lock: %w", err)
	}
	if !ok {
		return func() {}, false, nil
	}

	release := func() {
		// The build context may already be cancelled at this point.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warnw("Failed to release window lock", "key", key, "error", err)
		}
	}
	return release, true, nil
}

// LocalWindowLock is used when redis is not configured. It only serialises builds inside one process.
type LocalWindowLock struct {
	held chan struct{}
}

func NewLocalWindowLock() *LocalWindowLock {
	return &LocalWindowLock{held: make(chan struct{}, 1)}
}

func (l *LocalWindowLock) Acquire(_ context.Context, _, _ time.Time) (func(), bool, error) {
	select {
	case l.held <- struct{}{}:
		return func() { <-l.held }, true, nil
	default:
		return func() {}, false, nil
	}
}
