package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"after2am-server/internal/models"
	"after2am-server/internal/ratelimit"
	"after2am-server/internal/repository"
	"after2am-server/internal/trackcode"
	"after2am-server/internal/validation"
	"after2am-server/internal/workflow"
)

// Коллизии трек-кода крайне редки (43 слова * 31^4 суффиксов),
// пары попыток хватает с запасом.
const maxTrackCodeAttempts = 3

// SubmissionService принимает анонимные заявки: валидация, квота,
// запись заявки и запуск воркфлоу модерации.
type SubmissionService struct {
	db          repository.DBTX
	requestRepo repository.StoryRequestRepository
	limiter     ratelimit.Limiter
	trackCodes  *trackcode.Generator
	client      workflow.Client
	logger      *zap.Logger
}

// NewSubmissionService создает сервис приема заявок.
func NewSubmissionService(
	db repository.DBTX,
	requestRepo repository.StoryRequestRepository,
	limiter ratelimit.Limiter,
	trackCodes *trackcode.Generator,
	client workflow.Client,
	logger *zap.Logger,
) *SubmissionService {
	return &SubmissionService{
		db:          db,
		requestRepo: requestRepo,
		limiter:     limiter,
		trackCodes:  trackCodes,
		client:      client,
		logger:      logger.Named("SubmissionService"),
	}
}

// Submit принимает текст заявки от анонимной identity.
// Порядок фиксирован: валидация (квоту не тратит), списание квоты,
// запись заявки, постановка модерации. Сбой после списания возвращает
// квоту, чтобы легитимный повтор не блокировался.
func (s *SubmissionService) Submit(ctx context.Context, identity, content string) (*models.StoryRequest, error) {
	if err := validation.ValidateSubmission(content); err != nil {
		return nil, err
	}

	allowed, err := s.limiter.Allow(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, models.ErrRateLimited
	}

	req, err := s.createRequest(ctx, content)
	if err != nil {
		s.refund(ctx, identity)
		return nil, err
	}

	runID, err := s.client.Trigger(ctx, WorkflowWriteStory, ModerationPayload{TrackCode: req.TrackCode}, moderationFlow)
	if err != nil {
		// Заявка уже записана, но модерация не стартовала: квоту возвращаем,
		// заявка останется PENDING до ручного перезапуска.
		s.logger.Error("Failed to enqueue moderation workflow",
			zap.String("track_code", req.TrackCode),
			zap.Error(err))
		s.refund(ctx, identity)
		return nil, err
	}

	s.logger.Info("Story submission accepted",
		zap.String("track_code", req.TrackCode),
		zap.String("run_id", runID.String()))
	return req, nil
}

// createRequest создает заявку, перегенерируя трек-код при коллизии.
func (s *SubmissionService) createRequest(ctx context.Context, content string) (*models.StoryRequest, error) {
	for attempt := 0; attempt < maxTrackCodeAttempts; attempt++ {
		req := &models.StoryRequest{
			Content:   content,
			Status:    models.RequestStatusPending,
			TrackCode: s.trackCodes.Generate(),
		}
		err := s.requestRepo.Create(ctx, s.db, req)
		if err == nil {
			return req, nil
		}
		if !errors.Is(err, models.ErrDuplicateTrackCode) {
			return nil, err
		}
		s.logger.Warn("Track code collision, regenerating",
			zap.String("track_code", req.TrackCode))
	}
	return nil, models.ErrInternalServer
}

func (s *SubmissionService) refund(ctx context.Context, identity string) {
	if err := s.limiter.Refund(ctx, identity); err != nil {
		s.logger.Error("Failed to refund submission quota",
			zap.String("identity", identity),
			zap.Error(err))
	}
}
