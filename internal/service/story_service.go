package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"after2am-server/internal/cache"
	"after2am-server/internal/models"
	"after2am-server/internal/repository"
)

const (
	storyListDefaultLimit = 20
	storyListMaxLimit     = 50

	// Чтения кэшируются надолго: публикация инвалидирует теги сама.
	storyCacheTTL = time.Hour
)

// StoryService - чтение опубликованных историй с тегированным кэшем.
type StoryService struct {
	db        repository.DBTX
	storyRepo repository.StoryRepository
	cache     cache.Store
	logger    *zap.Logger
}

// NewStoryService создает сервис чтения историй.
func NewStoryService(db repository.DBTX, storyRepo repository.StoryRepository, cacheStore cache.Store, logger *zap.Logger) *StoryService {
	return &StoryService{
		db:        db,
		storyRepo: storyRepo,
		cache:     cacheStore,
		logger:    logger.Named("StoryService"),
	}
}

// List возвращает страницу опубликованных историй, новые первыми.
func (s *StoryService) List(ctx context.Context, limit, offset int) ([]models.StorySummary, error) {
	if limit <= 0 || limit > storyListMaxLimit {
		limit = storyListDefaultLimit
	}
	if offset < 0 {
		offset = 0
	}

	cacheKey := fmt.Sprintf("stories:list:%d:%d", limit, offset)
	if cached, hit, err := s.cache.Get(ctx, cacheKey); err != nil {
		s.logger.Warn("Story list cache unavailable", zap.Error(err))
	} else if hit {
		var summaries []models.StorySummary
		if err := json.Unmarshal([]byte(cached), &summaries); err == nil {
			return summaries, nil
		}
		s.logger.Warn("Corrupted story list cache entry", zap.String("key", cacheKey))
	}

	summaries, err := s.storyRepo.ListPublished(ctx, s.db, limit, offset)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(summaries); err == nil {
		if err := s.cache.Set(ctx, cacheKey, string(data), storyCacheTTL, cache.TagStories, cache.TagStoriesList); err != nil {
			s.logger.Warn("Failed to cache story list", zap.Error(err))
		}
	}
	return summaries, nil
}

// GetBySlug возвращает опубликованную историю по slug или models.ErrNotFound.
func (s *StoryService) GetBySlug(ctx context.Context, slug string) (*models.Story, error) {
	cacheKey := "stories:slug:" + slug
	if cached, hit, err := s.cache.Get(ctx, cacheKey); err != nil {
		s.logger.Warn("Story cache unavailable", zap.Error(err))
	} else if hit {
		var story models.Story
		if err := json.Unmarshal([]byte(cached), &story); err == nil {
			return &story, nil
		}
		s.logger.Warn("Corrupted story cache entry", zap.String("key", cacheKey))
	}

	story, err := s.storyRepo.GetBySlug(ctx, s.db, slug)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(story); err == nil {
		if err := s.cache.Set(ctx, cacheKey, string(data), storyCacheTTL, cache.TagStories, cache.TagStory(slug)); err != nil {
			s.logger.Warn("Failed to cache story", zap.Error(err))
		}
	}
	return story, nil
}
