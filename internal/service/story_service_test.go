package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"after2am-server/internal/mocks"
	"after2am-server/internal/models"
	"after2am-server/internal/service"
)

func newStoryFixture(t *testing.T) (*service.StoryService, *mocks.MockStoryRepository, *mocks.MockCacheStore) {
	t.Helper()
	storyRepo := &mocks.MockStoryRepository{}
	cacheStore := &mocks.MockCacheStore{}
	svc := service.NewStoryService(nil, storyRepo, cacheStore, zap.NewNop())
	return svc, storyRepo, cacheStore
}

func TestStoryService_ListCacheMiss(t *testing.T) {
	svc, storyRepo, cacheStore := newStoryFixture(t)

	summaries := []models.StorySummary{
		{ID: uuid.New(), Slug: "the-hallway-light", Title: "The Hallway Light"},
		{ID: uuid.New(), Slug: "static-on-channel-nine", Title: "Static on Channel Nine"},
	}

	cacheStore.On("Get", mock.Anything, "stories:list:20:0").Return("", false, nil).Once()
	storyRepo.On("ListPublished", mock.Anything, mock.Anything, 20, 0).Return(summaries, nil).Once()
	cacheStore.On("Set", mock.Anything, "stories:list:20:0", mock.Anything, time.Hour,
		"stories", "stories-list").Return(nil).Once()

	got, err := svc.List(context.Background(), 20, 0)
	require.NoError(t, err)
	assert.Equal(t, summaries, got)
	cacheStore.AssertExpectations(t)
}

func TestStoryService_ListCacheHit(t *testing.T) {
	svc, storyRepo, cacheStore := newStoryFixture(t)

	summaries := []models.StorySummary{{ID: uuid.New(), Slug: "the-hallway-light"}}
	data, err := json.Marshal(summaries)
	require.NoError(t, err)

	cacheStore.On("Get", mock.Anything, "stories:list:20:0").Return(string(data), true, nil).Once()

	got, err := svc.List(context.Background(), 20, 0)
	require.NoError(t, err)
	assert.Equal(t, summaries[0].Slug, got[0].Slug)
	storyRepo.AssertNotCalled(t, "ListPublished", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStoryService_ListClampsPagination(t *testing.T) {
	svc, storyRepo, cacheStore := newStoryFixture(t)

	// limit вне диапазона и отрицательный offset приводятся к дефолтам.
	cacheStore.On("Get", mock.Anything, "stories:list:20:0").Return("", false, nil).Once()
	storyRepo.On("ListPublished", mock.Anything, mock.Anything, 20, 0).
		Return([]models.StorySummary{}, nil).Once()
	cacheStore.On("Set", mock.Anything, "stories:list:20:0", mock.Anything, time.Hour,
		"stories", "stories-list").Return(nil).Once()

	_, err := svc.List(context.Background(), 500, -10)
	require.NoError(t, err)
	storyRepo.AssertExpectations(t)
}

func TestStoryService_ListCorruptedCacheEntry(t *testing.T) {
	svc, storyRepo, cacheStore := newStoryFixture(t)

	summaries := []models.StorySummary{{ID: uuid.New(), Slug: "the-hallway-light"}}

	cacheStore.On("Get", mock.Anything, "stories:list:20:0").Return("{not json", true, nil).Once()
	storyRepo.On("ListPublished", mock.Anything, mock.Anything, 20, 0).Return(summaries, nil).Once()
	cacheStore.On("Set", mock.Anything, "stories:list:20:0", mock.Anything, time.Hour,
		"stories", "stories-list").Return(nil).Once()

	got, err := svc.List(context.Background(), 20, 0)
	require.NoError(t, err)
	assert.Equal(t, summaries, got)
}

func TestStoryService_GetBySlugCacheMiss(t *testing.T) {
	svc, storyRepo, cacheStore := newStoryFixture(t)

	story := &models.Story{ID: uuid.New(), Slug: "the-hallway-light", Title: "The Hallway Light"}

	cacheStore.On("Get", mock.Anything, "stories:slug:the-hallway-light").Return("", false, nil).Once()
	storyRepo.On("GetBySlug", mock.Anything, mock.Anything, "the-hallway-light").Return(story, nil).Once()
	cacheStore.On("Set", mock.Anything, "stories:slug:the-hallway-light", mock.Anything, time.Hour,
		"stories", "story-the-hallway-light").Return(nil).Once()

	got, err := svc.GetBySlug(context.Background(), "the-hallway-light")
	require.NoError(t, err)
	assert.Equal(t, story.Slug, got.Slug)
	cacheStore.AssertExpectations(t)
}

func TestStoryService_GetBySlugNotFound(t *testing.T) {
	svc, storyRepo, cacheStore := newStoryFixture(t)

	cacheStore.On("Get", mock.Anything, "stories:slug:missing").Return("", false, nil).Once()
	storyRepo.On("GetBySlug", mock.Anything, mock.Anything, "missing").Return(nil, models.ErrNotFound).Once()

	_, err := svc.GetBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
	cacheStore.AssertNotCalled(t, "Set",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStoryService_GetBySlugCacheBackendDown(t *testing.T) {
	svc, storyRepo, cacheStore := newStoryFixture(t)

	story := &models.Story{ID: uuid.New(), Slug: "the-hallway-light"}

	// Недоступный Redis не должен ломать чтение.
	cacheStore.On("Get", mock.Anything, "stories:slug:the-hallway-light").
		Return("", false, assert.AnError).Once()
	storyRepo.On("GetBySlug", mock.Anything, mock.Anything, "the-hallway-light").Return(story, nil).Once()
	cacheStore.On("Set", mock.Anything, "stories:slug:the-hallway-light", mock.Anything, time.Hour,
		"stories", "story-the-hallway-light").Return(assert.AnError).Once()

	got, err := svc.GetBySlug(context.Background(), "the-hallway-light")
	require.NoError(t, err)
	assert.Equal(t, "the-hallway-light", got.Slug)
}
