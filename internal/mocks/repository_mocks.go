package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"after2am-server/internal/models"
	"after2am-server/internal/repository"
)

// MockStoryRequestRepository is a mock type for repository.StoryRequestRepository
type MockStoryRequestRepository struct {
	mock.Mock
}

func (_m *MockStoryRequestRepository) Create(ctx context.Context, querier repository.DBTX, req *models.StoryRequest) error {
	ret := _m.Called(ctx, querier, req)
	return ret.Error(0)
}

func (_m *MockStoryRequestRepository) GetByTrackCode(ctx context.Context, querier repository.DBTX, trackCode string) (*models.StoryRequest, error) {
	ret := _m.Called(ctx, querier, trackCode)

	var r0 *models.StoryRequest
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.StoryRequest)
	}
	return r0, ret.Error(1)
}

func (_m *MockStoryRequestRepository) MarkApproved(ctx context.Context, querier repository.DBTX, id uuid.UUID, approvedAt time.Time, storyID uuid.UUID) error {
	ret := _m.Called(ctx, querier, id, approvedAt, storyID)
	return ret.Error(0)
}

func (_m *MockStoryRequestRepository) MarkRejected(ctx context.Context, querier repository.DBTX, id uuid.UUID, notes string) error {
	ret := _m.Called(ctx, querier, id, notes)
	return ret.Error(0)
}

var _ repository.StoryRequestRepository = (*MockStoryRequestRepository)(nil)

// MockStoryRepository is a mock type for repository.StoryRepository
type MockStoryRepository struct {
	mock.Mock
}

func (_m *MockStoryRepository) Create(ctx context.Context, querier repository.DBTX, story *models.Story) error {
	ret := _m.Called(ctx, querier, story)
	return ret.Error(0)
}

func (_m *MockStoryRepository) GetBySlug(ctx context.Context, querier repository.DBTX, slug string) (*models.Story, error) {
	ret := _m.Called(ctx, querier, slug)

	var r0 *models.Story
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Story)
	}
	return r0, ret.Error(1)
}

func (_m *MockStoryRepository) GetSummaryByID(ctx context.Context, querier repository.DBTX, id uuid.UUID) (*models.StorySummary, error) {
	ret := _m.Called(ctx, querier, id)

	var r0 *models.StorySummary
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.StorySummary)
	}
	return r0, ret.Error(1)
}

func (_m *MockStoryRepository) PickRandomSlug(ctx context.Context, querier repository.DBTX, mood *models.Mood, excludeSlugs []string) (string, error) {
	ret := _m.Called(ctx, querier, mood, excludeSlugs)

	var r0 string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(string)
	}
	return r0, ret.Error(1)
}

func (_m *MockStoryRepository) ListPublished(ctx context.Context, querier repository.DBTX, limit int, offset int) ([]models.StorySummary, error) {
	ret := _m.Called(ctx, querier, limit, offset)

	var r0 []models.StorySummary
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]models.StorySummary)
	}
	return r0, ret.Error(1)
}

var _ repository.StoryRepository = (*MockStoryRepository)(nil)

// MockTxRunner is a mock type for repository.TxRunner.
// Выполняет fn сразу, передавая nil вместо транзакции: для юнит-тестов
// сервисного слоя этого достаточно.
type MockTxRunner struct {
	mock.Mock
}

func (_m *MockTxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.DBTX) error) error {
	ret := _m.Called(ctx, fn)
	if ret.Error(0) != nil {
		return ret.Error(0)
	}
	return fn(ctx, nil)
}

var _ repository.TxRunner = (*MockTxRunner)(nil)
