// Package cache - тегированный кэш чтения на Redis.
// Каждая запись привязывается к набору тегов; инвалидация тега удаляет все
// записи, помеченные им. Инвалидация fire-and-forget: краткая несвежесть
// допустима, постоянная - нет.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Теги инвалидации контента. Воспроизводятся в точности: читатели могут
// держать любой из них.
const (
	TagStories     = "stories"
	TagStoriesList = "stories-list"
)

// TagStory возвращает тег конкретной истории ("story-{slug}").
func TagStory(slug string) string {
	return "story-" + slug
}

// TagMood возвращает тег пула историй настроения ("stories-mood-{MOOD}").
func TagMood(mood string) string {
	return "stories-mood-" + mood
}

// PublishTags - полный набор тегов, сбрасываемых при публикации истории.
func PublishTags(slug, mood string) []string {
	return []string{TagStories, TagStoriesList, TagStory(slug), TagMood(mood)}
}

// Invalidator сбрасывает весь контент, помеченный тегами.
type Invalidator interface {
	Invalidate(ctx context.Context, tags ...string) error
}

// Store - кэш чтения с привязкой записей к тегам.
type Store interface {
	Invalidator
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration, tags ...string) error
}

const (
	keyPrefix = "a2s:cache:"
	tagPrefix = "a2s:cache-tag:"
)

type redisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStore создает тегированный кэш на Redis.
func NewRedisStore(client *redis.Client, logger *zap.Logger) Store {
	return &redisStore{
		client: client,
		logger: logger.Named("TagCache"),
	}
}

var _ Store = (*redisStore)(nil)

// Get возвращает закэшированное значение и признак попадания.
func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return val, true, nil
}

// Set сохраняет значение с TTL и регистрирует его во всех указанных тегах.
func (s *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration, tags ...string) error {
	fullKey := keyPrefix + key

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, fullKey, value, ttl)
	for _, tag := range tags {
		tagKey := tagPrefix + tag
		pipe.SAdd(ctx, tagKey, fullKey)
		// Тег живет дольше любой своей записи, чтобы инвалидация его нашла.
		pipe.Expire(ctx, tagKey, ttl*2)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Invalidate удаляет все записи каждого из тегов и сами теги.
func (s *redisStore) Invalidate(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		tagKey := tagPrefix + tag
		members, err := s.client.SMembers(ctx, tagKey).Result()
		if err != nil {
			return fmt.Errorf("cache invalidate %s: %w", tag, err)
		}
		keys := append(members, tagKey)
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("cache invalidate %s: %w", tag, err)
		}
		s.logger.Debug("Cache tag invalidated",
			zap.String("tag", tag),
			zap.Int("entries", len(members)))
	}
	return nil
}
