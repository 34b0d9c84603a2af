package locker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"simulation-server/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	runLockKeyPrefix = "run_lock:"
	retryInterval    = 50 * time.Millisecond
)

// releaseScript удаляет ключ, только если он все еще принадлежит нашему токену.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker распределенная блокировка прохождения для нескольких инстансов сервиса.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	logger *zap.Logger
}

var _ RunLocker = (*RedisLocker)(nil)

// NewRedisLocker creates a locker. ttl bounds how long a crashed holder keeps the lock;
// wait bounds how long Lock polls before returning ErrRunBusy.
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, wait: wait, logger: logger.Named("RedisLocker")}
}

func (l *RedisLocker) Lock(ctx context.Context, runID uuid.UUID) (func(), error) {
	key := runLockKeyPrefix + runID.String()
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			l.logger.Error("Failed to acquire run lock", zap.String("key", key), zap.Error(err))
			return nil, fmt.Errorf("%w: acquire run lock: %w", models.ErrPersistence, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			l.logger.Warn("Run lock wait timed out", zap.String("key", key), zap.Duration("wait", l.wait))
			return nil, ErrRunBusy
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrRunBusy, ctx.Err())
		case <-time.After(retryInterval):
		}
	}

	l.logger.Debug("Run lock acquired", zap.String("key", key))
	return func() {
		// Контекст запроса может быть уже отменен, освобождаем независимо от него
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		res, err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Error("Failed to release run lock", zap.String("key", key), zap.Error(err))
			return
		}
		if res == 0 {
			l.logger.Warn("Run lock expired before release", zap.String("key", key), zap.Duration("ttl", l.ttl))
		}
	}, nil
}
