package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"after2am-server/internal/cache"
	"after2am-server/internal/models"
	"after2am-server/internal/repository"
)

// Сервер учитывает не более стольких исключенных slug: история клиента
// ограничена, повторы за ее пределами допустимы.
const maxExcludeSlugs = 50

// SelectorService - случайная выборка опубликованной истории по настроению
// с анти-повтором. Результат кэшируется коротко: достаточно для экономии
// чтений, недостаточно, чтобы убить разнообразие.
type SelectorService struct {
	db        repository.DBTX
	storyRepo repository.StoryRepository
	cache     cache.Store
	ttl       time.Duration
	logger    *zap.Logger
}

// NewSelectorService создает сервис выборки.
func NewSelectorService(db repository.DBTX, storyRepo repository.StoryRepository, cacheStore cache.Store, ttl time.Duration, logger *zap.Logger) *SelectorService {
	return &SelectorService{
		db:        db,
		storyRepo: storyRepo,
		cache:     cacheStore,
		ttl:       ttl,
		logger:    logger.Named("SelectorService"),
	}
}

// Pick возвращает slug случайной опубликованной истории настроения mood,
// исключая excludeSlugs. Для MoodEerie ("surprise me") выборка идет по всем
// настроениям. Отсутствие кандидата - models.ErrNotFound: для вызывающего
// это "нечего показать", не сбой.
func (s *SelectorService) Pick(ctx context.Context, mood models.Mood, excludeSlugs []string) (string, error) {
	// Храним хвост списка: самые свежие исключения ценнее старых.
	if len(excludeSlugs) > maxExcludeSlugs {
		excludeSlugs = excludeSlugs[len(excludeSlugs)-maxExcludeSlugs:]
	}

	cacheKey := pickCacheKey(mood, excludeSlugs)
	if cached, hit, err := s.cache.Get(ctx, cacheKey); err != nil {
		// Кэш недоступен - идем в БД, выборка важнее кэша.
		s.logger.Warn("Pick cache unavailable", zap.Error(err))
	} else if hit {
		return cached, nil
	}

	var moodFilter *models.Mood
	if mood != models.MoodEerie {
		moodFilter = &mood
	}

	slug, err := s.storyRepo.PickRandomSlug(ctx, s.db, moodFilter, excludeSlugs)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrNotFound
		}
		return "", err
	}

	if err := s.cache.Set(ctx, cacheKey, slug, s.ttl, cache.TagStories, cache.TagMood(string(mood))); err != nil {
		s.logger.Warn("Failed to cache pick result", zap.Error(err))
	}
	return slug, nil
}

func pickCacheKey(mood models.Mood, excludeSlugs []string) string {
	sum := sha256.Sum256([]byte(strings.Join(excludeSlugs, ",")))
	return fmt.Sprintf("pick:%s:%s", mood, hex.EncodeToString(sum[:8]))
}
