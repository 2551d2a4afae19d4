package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Pacer ограничивает темп исполнения задач, разделяющих один flow-ключ.
// Счетчик атомарный и внешний: корректность под конкурентными воркерами
// не зависит от блокировок этого процесса.
type Pacer interface {
	// Acquire пытается занять слот ключа в текущем окне rate/period без
	// блокировки. При исчерпании окна возвращает ok=false и retryAfter -
	// время до начала следующего окна; вызывающий откладывает задачу,
	// не задерживая соседние ключи.
	Acquire(ctx context.Context, key string, rate int, period time.Duration) (ok bool, retryAfter time.Duration, err error)
}

type redisPacer struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPacer создает pacer на атомарном счетчике Redis (fixed window).
func NewRedisPacer(client *redis.Client, logger *zap.Logger) Pacer {
	return &redisPacer{
		client: client,
		logger: logger.Named("FlowPacer"),
	}
}

var _ Pacer = (*redisPacer)(nil)

// Acquire занимает слот в текущем окне ключа либо сообщает, сколько ждать
// до следующего окна.
func (p *redisPacer) Acquire(ctx context.Context, key string, rate int, period time.Duration) (bool, time.Duration, error) {
	if key == "" || rate <= 0 || period <= 0 {
		return true, 0, nil // flow control не задан
	}

	window := time.Now().UnixMilli() / period.Milliseconds()
	redisKey := fmt.Sprintf("a2s:flow:%s:%d", key, window)

	pipe := p.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.PExpire(ctx, redisKey, period)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("flow pacer: ошибка счетчика для ключа %s: %w", key, err)
	}

	if incr.Val() <= int64(rate) {
		return true, 0, nil
	}

	windowEnd := time.UnixMilli((window + 1) * period.Milliseconds())
	retryAfter := time.Until(windowEnd)
	if retryAfter < time.Millisecond {
		retryAfter = time.Millisecond
	}
	p.logger.Debug("Flow window exhausted",
		zap.String("flowKey", key),
		zap.Duration("retryAfter", retryAfter))
	return false, retryAfter, nil
}
