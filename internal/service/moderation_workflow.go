package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
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

// Число попыток пересоздания истории при коллизии slug.
const maxSlugAttempts = 5

// EditorAgent - AI-модератор заявок (реализуется agents.NightEditor).
type EditorAgent interface {
	Moderate(ctx context.Context, content string) (*agents.EditorVerdict, error)
}

// commitResult - мемоизируемый итог транзакционного шага модерации.
type commitResult struct {
	Approved bool        `json:"approved"`
	StoryID  *uuid.UUID  `json:"storyId,omitempty"`
	Slug     string      `json:"slug,omitempty"`
	Mood     models.Mood `json:"mood,omitempty"`
}

// ModerationWorkflow - durable-пайплайн модерации пользовательской заявки:
// fetch -> night-editor -> транзакционный вердикт -> инвалидация кэша.
// Каждый шаг независимо повторяем; терминальная мутация заявки происходит
// ровно один раз благодаря мемоизации шага update-record.
type ModerationWorkflow struct {
	runner      *workflow.Runner
	db          repository.DBTX
	txRunner    repository.TxRunner
	requestRepo repository.StoryRequestRepository
	storyRepo   repository.StoryRepository
	editor      EditorAgent
	invalidator cache.Invalidator
	logger      *zap.Logger
}

// NewModerationWorkflow создает воркфлоу модерации.
func NewModerationWorkflow(
	runner *workflow.Runner,
	db repository.DBTX,
	txRunner repository.TxRunner,
	requestRepo repository.StoryRequestRepository,
	storyRepo repository.StoryRepository,
	editor EditorAgent,
	invalidator cache.Invalidator,
	logger *zap.Logger,
) *ModerationWorkflow {
	return &ModerationWorkflow{
		runner:      runner,
		db:          db,
		txRunner:    txRunner,
		requestRepo: requestRepo,
		storyRepo:   storyRepo,
		editor:      editor,
		invalidator: invalidator,
		logger:      logger.Named("ModerationWorkflow"),
	}
}

// Execute исполняет один ран модерации.
func (w *ModerationWorkflow) Execute(ctx context.Context, runID uuid.UUID, payload json.RawMessage) error {
	var input ModerationPayload
	if err := json.Unmarshal(payload, &input); err != nil {
		return workflow.NonRetryable(fmt.Sprintf("malformed moderation payload: %v", err))
	}
	log := w.logger.With(zap.String("runID", runID.String()), zap.String("trackCode", input.TrackCode))

	// Шаг 1: получение заявки. Отсутствие и не-PENDING статус - невосстановимые
	// исходы (защита от повторной обработки уже решенной заявки).
	request, err := workflow.RunStep(ctx, w.runner, runID, "get-story-request", func(ctx context.Context) (*models.StoryRequest, error) {
		req, err := w.requestRepo.GetByTrackCode(ctx, w.db, input.TrackCode)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, workflow.NonRetryable("story request not found")
			}
			return nil, err
		}
		return req, nil
	})
	if err != nil {
		return err
	}
	if request.Status != models.RequestStatusPending {
		log.Warn("Story request already decided, refusing to re-process",
			zap.String("status", string(request.Status)))
		return workflow.NonRetryable("story request is not pending")
	}

	// Шаг 2: вердикт ночного редактора. Ошибки AI транзиентны и ретраятся
	// субстратом; заявка при исчерпании ретраев остается PENDING.
	verdict, err := workflow.RunStep(ctx, w.runner, runID, "night-editor-agent", func(ctx context.Context) (*agents.EditorVerdict, error) {
		return w.editor.Moderate(ctx, request.Content)
	})
	if err != nil {
		return err
	}

	// Шаг 3: терминальная мутация заявки и (при одобрении) создание истории.
	// Одна транзакция: частичные записи не наблюдаемы.
	commit, err := workflow.RunStep(ctx, w.runner, runID, "update-record", func(ctx context.Context) (commitResult, error) {
		return w.commitVerdict(ctx, request, verdict)
	})
	if err != nil {
		return err
	}

	// Шаг 4: инвалидация кэша - только если история создана и опубликована.
	// Все четыре тега безусловно: читатель может держать любой из них.
	if commit.Approved {
		_, err = workflow.RunStep(ctx, w.runner, runID, "invalidate-cache", func(ctx context.Context) (bool, error) {
			if err := w.invalidator.Invalidate(ctx, cache.PublishTags(commit.Slug, string(commit.Mood))...); err != nil {
				return false, err
			}
			return true, nil
		})
		if err != nil {
			return err
		}
	}

	log.Info("Moderation run completed", zap.Bool("approved", commit.Approved))
	return nil
}

// commitVerdict применяет вердикт в одной транзакции.
func (w *ModerationWorkflow) commitVerdict(ctx context.Context, request *models.StoryRequest, verdict *agents.EditorVerdict) (commitResult, error) {
	if !verdict.Approved {
		err := w.txRunner.WithTransaction(ctx, func(ctx context.Context, tx repository.DBTX) error {
			return w.requestRepo.MarkRejected(ctx, tx, request.ID, verdict.Notes)
		})
		if err != nil {
			if errors.Is(err, models.ErrRequestNotPending) {
				return commitResult{}, workflow.NonRetryable("story request is not pending")
			}
			return commitResult{}, err
		}
		return commitResult{Approved: false}, nil
	}

	now := time.Now().UTC()
	baseSlug := slug.Make(verdict.Title)

	// Коллизия slug - data-integrity ошибка: разрешается перегенерацией
	// на месте, наружу не поднимается.
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		story := &models.Story{
			ID:             uuid.New(),
			Slug:           slugWithAttempt(baseSlug, attempt),
			Title:          verdict.Title,
			Excerpt:        verdict.Excerpt,
			Content:        verdict.HTMLBody,
			Mood:           verdict.Mood,
			Categories:     verdict.Categories,
			Tags:           verdict.Tags,
			Intensity:      verdict.Intensity,
			SEO:            verdict.SEO,
			Author:         verdict.Author,
			ReadTime:       verdict.ReadTime,
			WordCount:      verdict.WordCount,
			PublishedAt:    &now,
			StoryRequestID: &request.ID,
		}

		err := w.txRunner.WithTransaction(ctx, func(ctx context.Context, tx repository.DBTX) error {
			if err := w.storyRepo.Create(ctx, tx, story); err != nil {
				return err
			}
			return w.requestRepo.MarkApproved(ctx, tx, request.ID, now, story.ID)
		})
		if err == nil {
			return commitResult{Approved: true, StoryID: &story.ID, Slug: story.Slug, Mood: story.Mood}, nil
		}
		if errors.Is(err, models.ErrDuplicateSlug) {
			w.logger.Warn("Slug collision, regenerating",
				zap.String("slug", story.Slug), zap.Int("attempt", attempt+1))
			continue
		}
		if errors.Is(err, models.ErrRequestNotPending) {
			return commitResult{}, workflow.NonRetryable("story request is not pending")
		}
		return commitResult{}, err
	}
	return commitResult{}, fmt.Errorf("не удалось подобрать уникальный slug для %q за %d попыток", baseSlug, maxSlugAttempts)
}

// slugWithAttempt добавляет короткий случайный суффикс при повторных попытках.
func slugWithAttempt(base string, attempt int) string {
	if attempt == 0 {
		return base
	}
	return fmt.Sprintf("%s-%s", base, strings.ToLower(uuid.NewString()[:4]))
}
