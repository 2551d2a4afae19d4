// Package ratelimit - лимит заявок на скользящем окне поверх Redis.
// Недоступность бэкенда поднимается как инфраструктурная ошибка и никогда
// не выдается за исчерпание квоты.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter проверяет и расходует квоту анонимной identity.
type Limiter interface {
	// Allow атомарно проверяет квоту и при успехе расходует единицу.
	// false означает именно "квота исчерпана"; ошибки бэкенда приходят
	// отдельным значением err.
	Allow(ctx context.Context, identity string) (bool, error)

	// Refund возвращает последнюю израсходованную единицу квоты.
	// Обязателен при сбое нижестоящей записи: легитимный повтор
	// не должен блокироваться.
	Refund(ctx context.Context, identity string) error
}

type redisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	logger *zap.Logger
}

// NewRedisLimiter создает лимитер на скользящем окне (ZSET с метками времени).
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, logger *zap.Logger) Limiter {
	return &redisLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "a2s:stories:write:",
		logger: logger.Named("WriteLimiter"),
	}
}

var _ Limiter = (*redisLimiter)(nil)

// Проверка и списание в одном EVAL: конкурентные вызовы одной identity
// не могут оба увидеть свободное место при квоте 1.
// KEYS[1] - ключ окна; ARGV: граница окна, лимит, текущая метка, член, TTL мс.
var allowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[2]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// Allow атомарно расходует единицу квоты, если в окне еще есть место.
func (l *redisLimiter) Allow(ctx context.Context, identity string) (bool, error) {
	key := l.prefix + identity
	now := time.Now()
	windowStart := now.Add(-l.window)

	res, err := allowScript.Run(ctx, l.client, []string{key},
		windowStart.UnixMilli(),
		l.limit,
		now.UnixMilli(),
		uuid.NewString(),
		l.window.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limiter: ошибка бэкенда: %w", err)
	}

	if res == 0 {
		l.logger.Info("Submission quota exceeded", zap.String("identity", identity))
		return false, nil
	}
	return true, nil
}

// Refund снимает последнюю (самую свежую) израсходованную единицу.
func (l *redisLimiter) Refund(ctx context.Context, identity string) error {
	key := l.prefix + identity
	if err := l.client.ZRemRangeByRank(ctx, key, -1, -1).Err(); err != nil {
		return fmt.Errorf("rate limiter: ошибка возврата квоты: %w", err)
	}
	l.logger.Info("Submission quota refunded", zap.String("identity", identity))
	return nil
}
