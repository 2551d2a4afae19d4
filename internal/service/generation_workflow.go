package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"after2am-server/internal/agents"
	"after2am-server/internal/cache"
	"after2am-server/internal/models"
	"after2am-server/internal/repository"
	"after2am-server/internal/workflow"
)

// WriterAgent - AI-автор историй (реализуется agents.NightWriter).
type WriterAgent interface {
	Write(ctx context.Context, mood models.Mood, category models.Category, intensity int) (*agents.StoryPayload, error)
}

// storedStory - мемоизируемый итог шага персистенции.
type storedStory struct {
	StoryID uuid.UUID   `json:"storyId"`
	Slug    string      `json:"slug"`
	Mood    models.Mood `json:"mood"`
}

// GenerationWorkflow - durable-пайплайн доверенной генерации:
// night-writer -> персистенция с немедленной публикацией -> инвалидация кэша.
// Отдельного шага одобрения нет: генерация инициируется оператором.
type GenerationWorkflow struct {
	runner      *workflow.Runner
	db          repository.DBTX
	storyRepo   repository.StoryRepository
	writer      WriterAgent
	invalidator cache.Invalidator
	logger      *zap.Logger
}

// NewGenerationWorkflow создает воркфлоу генерации.
func NewGenerationWorkflow(
	runner *workflow.Runner,
	db repository.DBTX,
	storyRepo repository.StoryRepository,
	writer WriterAgent,
	invalidator cache.Invalidator,
	logger *zap.Logger,
) *GenerationWorkflow {
	return &GenerationWorkflow{
		runner:      runner,
		db:          db,
		storyRepo:   storyRepo,
		writer:      writer,
		invalidator: invalidator,
		logger:      logger.Named("GenerationWorkflow"),
	}
}

// Execute исполняет один ран генерации.
// Реплей не создает дубликатов: шаг store-story мемоизирован по ключу рана.
func (w *GenerationWorkflow) Execute(ctx context.Context, runID uuid.UUID, payload json.RawMessage) error {
	var input GenerationPayload
	if err := json.Unmarshal(payload, &input); err != nil {
		return workflow.NonRetryable(fmt.Sprintf("malformed generation payload: %v", err))
	}
	if input.Intensity < 1 || input.Intensity > 5 {
		input.Intensity = 3
	}
	log := w.logger.With(
		zap.String("runID", runID.String()),
		zap.String("mood", string(input.Mood)),
		zap.String("category", string(input.Category)))

	// Шаг 1: авторская генерация.
	story, err := workflow.RunStep(ctx, w.runner, runID, "night-writer-agent", func(ctx context.Context) (*agents.StoryPayload, error) {
		return w.writer.Write(ctx, input.Mood, input.Category, input.Intensity)
	})
	if err != nil {
		return err
	}

	// Шаг 2: персистенция. publishedAt проставляется сразу.
	stored, err := workflow.RunStep(ctx, w.runner, runID, "store-story", func(ctx context.Context) (storedStory, error) {
		return w.storeStory(ctx, story)
	})
	if err != nil {
		return err
	}

	// Шаг 3: инвалидация всех четырех тегов - на этом пути безусловно,
	// персистенция всегда публикует.
	_, err = workflow.RunStep(ctx, w.runner, runID, "invalidate-cache", func(ctx context.Context) (bool, error) {
		if err := w.invalidator.Invalidate(ctx, cache.PublishTags(stored.Slug, string(stored.Mood))...); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	log.Info("Generation run completed", zap.String("slug", stored.Slug))
	return nil
}

func (w *GenerationWorkflow) storeStory(ctx context.Context, payload *agents.StoryPayload) (storedStory, error) {
	now := time.Now().UTC()
	baseSlug := slug.Make(payload.Title)

	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		story := &models.Story{
			ID:          uuid.New(),
			Slug:        slugWithAttempt(baseSlug, attempt),
			Title:       payload.Title,
			Excerpt:     payload.Excerpt,
			Content:     payload.HTMLBody,
			Mood:        payload.Mood,
			Categories:  payload.Categories,
			Tags:        payload.Tags,
			Intensity:   payload.Intensity,
			SEO:         payload.SEO,
			Author:      payload.Author,
			ReadTime:    payload.ReadTime,
			WordCount:   payload.WordCount,
			PublishedAt: &now,
		}
		err := w.storyRepo.Create(ctx, w.db, story)
		if err == nil {
			return storedStory{StoryID: story.ID, Slug: story.Slug, Mood: story.Mood}, nil
		}
		if errors.Is(err, models.ErrDuplicateSlug) {
			w.logger.Warn("Slug collision, regenerating",
				zap.String("slug", story.Slug), zap.Int("attempt", attempt+1))
			continue
		}
		return storedStory{}, err
	}
	return storedStory{}, fmt.Errorf("не удалось подобрать уникальный slug для %q за %d попыток", baseSlug, maxSlugAttempts)
}
