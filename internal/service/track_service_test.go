package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"after2am-server/internal/mocks"
	"after2am-server/internal/models"
	"after2am-server/internal/service"
)

func newTrackFixture(t *testing.T) (*service.TrackService, *mocks.MockStoryRequestRepository, *mocks.MockStoryRepository) {
	t.Helper()
	requestRepo := &mocks.MockStoryRequestRepository{}
	storyRepo := &mocks.MockStoryRepository{}
	svc := service.NewTrackService(nil, requestRepo, storyRepo, zap.NewNop())
	return svc, requestRepo, storyRepo
}

func TestTrackService_PendingRequest(t *testing.T) {
	svc, requestRepo, storyRepo := newTrackFixture(t)

	requestRepo.On("GetByTrackCode", mock.Anything, mock.Anything, "still-8rej").
		Return(&models.StoryRequest{
			TrackCode: "still-8rej",
			Status:    models.RequestStatusPending,
		}, nil).Once()

	status, err := svc.Lookup(context.Background(), "still-8rej")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, status.Status)
	assert.Nil(t, status.Story)
	storyRepo.AssertNotCalled(t, "GetSummaryByID", mock.Anything, mock.Anything, mock.Anything)
}

func TestTrackService_ApprovedIncludesStory(t *testing.T) {
	svc, requestRepo, storyRepo := newTrackFixture(t)

	storyID := uuid.New()
	requestRepo.On("GetByTrackCode", mock.Anything, mock.Anything, "blue-4abc").
		Return(&models.StoryRequest{
			TrackCode: "blue-4abc",
			Status:    models.RequestStatusApproved,
			StoryID:   &storyID,
		}, nil).Once()
	storyRepo.On("GetSummaryByID", mock.Anything, mock.Anything, storyID).
		Return(&models.StorySummary{ID: storyID, Slug: "the-hallway-light", Title: "The Hallway Light"}, nil).Once()

	status, err := svc.Lookup(context.Background(), "blue-4abc")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, status.Status)
	require.NotNil(t, status.Story)
	assert.Equal(t, "the-hallway-light", status.Story.Slug)
}

func TestTrackService_ApprovedWithMissingStory(t *testing.T) {
	svc, requestRepo, storyRepo := newTrackFixture(t)

	storyID := uuid.New()
	requestRepo.On("GetByTrackCode", mock.Anything, mock.Anything, "dawn-7kmn").
		Return(&models.StoryRequest{
			TrackCode: "dawn-7kmn",
			Status:    models.RequestStatusApproved,
			StoryID:   &storyID,
		}, nil).Once()
	storyRepo.On("GetSummaryByID", mock.Anything, mock.Anything, storyID).
		Return(nil, models.ErrNotFound).Once()

	// История могла быть удалена вручную - статус все равно отдаем.
	status, err := svc.Lookup(context.Background(), "dawn-7kmn")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, status.Status)
	assert.Nil(t, status.Story)
}

func TestTrackService_RejectedExposesNotes(t *testing.T) {
	svc, requestRepo, _ := newTrackFixture(t)

	notes := "contains identifying details"
	requestRepo.On("GetByTrackCode", mock.Anything, mock.Anything, "cold-3xyz").
		Return(&models.StoryRequest{
			TrackCode: "cold-3xyz",
			Status:    models.RequestStatusRejected,
			Notes:     &notes,
		}, nil).Once()

	status, err := svc.Lookup(context.Background(), "cold-3xyz")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, status.Status)
	require.NotNil(t, status.Notes)
	assert.Equal(t, notes, *status.Notes)
}

func TestTrackService_UnknownCode(t *testing.T) {
	svc, requestRepo, _ := newTrackFixture(t)

	requestRepo.On("GetByTrackCode", mock.Anything, mock.Anything, "nope-0000").
		Return(nil, models.ErrNotFound).Once()

	_, err := svc.Lookup(context.Background(), "nope-0000")
	assert.ErrorIs(t, err, models.ErrRequestNotFound)
}
