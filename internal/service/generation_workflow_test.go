package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"after2am-server/internal/agents"
	"after2am-server/internal/mocks"
	"after2am-server/internal/models"
	"after2am-server/internal/service"
	"after2am-server/internal/workflow"
)

func writerPayload() *agents.StoryPayload {
	return &agents.StoryPayload{
		Title:      "Static on Channel Nine",
		Mood:       models.MoodEmotional,
		Categories: []models.Category{models.CategoryFiction},
		Tags:       []string{"tv", "memory", "loss"},
		Intensity:  2,
		SEO:        models.SEOMeta{Title: "Static on Channel Nine", Description: "A story", Keywords: []string{"tv"}},
		HTMLBody:   "<p>The TV hummed all night.</p>",
		Excerpt:    "The TV hummed all night.",
		Author:     "Night Writer",
		ReadTime:   3,
		WordCount:  600,
	}
}

func generationPayload(t *testing.T, p service.GenerationPayload) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return raw
}

func newGenerationFixture(t *testing.T) (*service.GenerationWorkflow, *mocks.MockStoryRepository, *mocks.MockWriterAgent, *mocks.MockCacheStore) {
	t.Helper()

	runner := workflow.NewRunner(mocks.NewMemoryRunStore(), zap.NewNop())
	storyRepo := &mocks.MockStoryRepository{}
	writer := &mocks.MockWriterAgent{}
	invalidator := &mocks.MockCacheStore{}

	wf := service.NewGenerationWorkflow(runner, nil, storyRepo, writer, invalidator, zap.NewNop())
	return wf, storyRepo, writer, invalidator
}

func TestGenerationWorkflow_Success(t *testing.T) {
	wf, storyRepo, writer, invalidator := newGenerationFixture(t)

	writer.On("Write", mock.Anything, models.MoodEmotional, models.CategoryFiction, 2).
		Return(writerPayload(), nil).Once()

	storyRepo.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*models.Story")).
		Return(nil).Once().Run(func(args mock.Arguments) {
		story := args.Get(2).(*models.Story)
		assert.Equal(t, "static-on-channel-nine", story.Slug)
		assert.NotNil(t, story.PublishedAt)
		assert.Nil(t, story.StoryRequestID)
	})

	invalidator.On("Invalidate", mock.Anything,
		"stories", "stories-list", "story-static-on-channel-nine", "stories-mood-EMOTIONAL").
		Return(nil).Once()

	payload := generationPayload(t, service.GenerationPayload{
		Mood: models.MoodEmotional, Category: models.CategoryFiction, Intensity: 2,
	})
	require.NoError(t, wf.Execute(context.Background(), uuid.New(), payload))

	writer.AssertExpectations(t)
	storyRepo.AssertExpectations(t)
	invalidator.AssertExpectations(t)
}

func TestGenerationWorkflow_IntensityDefaulted(t *testing.T) {
	wf, storyRepo, writer, invalidator := newGenerationFixture(t)

	// Вне диапазона [1,5] - подменяется серединой шкалы.
	writer.On("Write", mock.Anything, models.MoodHaunting, models.CategoryPoetry, 3).
		Return(writerPayload(), nil).Once()
	storyRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	invalidator.On("Invalidate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	payload := generationPayload(t, service.GenerationPayload{
		Mood: models.MoodHaunting, Category: models.CategoryPoetry, Intensity: 99,
	})
	require.NoError(t, wf.Execute(context.Background(), uuid.New(), payload))
	writer.AssertExpectations(t)
}

func TestGenerationWorkflow_ReplayIsIdempotent(t *testing.T) {
	wf, storyRepo, writer, invalidator := newGenerationFixture(t)

	writer.On("Write", mock.Anything, models.MoodEmotional, models.CategoryFiction, 2).
		Return(writerPayload(), nil).Once()
	storyRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	invalidator.On("Invalidate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	runID := uuid.New()
	payload := generationPayload(t, service.GenerationPayload{
		Mood: models.MoodEmotional, Category: models.CategoryFiction, Intensity: 2,
	})

	require.NoError(t, wf.Execute(context.Background(), runID, payload))
	// Реплей не рождает вторую историю.
	require.NoError(t, wf.Execute(context.Background(), runID, payload))

	writer.AssertExpectations(t)
	storyRepo.AssertExpectations(t)
}

func TestGenerationWorkflow_WriterFailureIsRetryable(t *testing.T) {
	wf, storyRepo, writer, _ := newGenerationFixture(t)

	writer.On("Write", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("model timeout")).Once()

	payload := generationPayload(t, service.GenerationPayload{
		Mood: models.MoodEerie, Category: models.CategoryJournal, Intensity: 1,
	})
	err := wf.Execute(context.Background(), uuid.New(), payload)
	require.Error(t, err)
	assert.False(t, workflow.IsNonRetryable(err))
	storyRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}
