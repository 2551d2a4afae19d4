package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"after2am-server/internal/models"
	"after2am-server/internal/repository"
)

// TrackService - статус заявки по трек-коду.
type TrackService struct {
	db          repository.DBTX
	requestRepo repository.StoryRequestRepository
	storyRepo   repository.StoryRepository
	logger      *zap.Logger
}

// NewTrackService создает сервис отслеживания.
func NewTrackService(db repository.DBTX, requestRepo repository.StoryRequestRepository, storyRepo repository.StoryRepository, logger *zap.Logger) *TrackService {
	return &TrackService{
		db:          db,
		requestRepo: requestRepo,
		storyRepo:   storyRepo,
		logger:      logger.Named("TrackService"),
	}
}

// Lookup возвращает статус заявки. Для одобренной заявки подтягивает
// краткую карточку опубликованной истории; если история не нашлась
// (гонка с публикацией, ручное удаление) - статус отдаем без карточки.
func (s *TrackService) Lookup(ctx context.Context, trackCode string) (*models.TrackStatus, error) {
	request, err := s.requestRepo.GetByTrackCode(ctx, s.db, trackCode)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrRequestNotFound
		}
		return nil, err
	}

	status := &models.TrackStatus{
		TrackCode: request.TrackCode,
		Status:    request.Status,
		Notes:     request.Notes,
	}

	if request.Status == models.RequestStatusApproved && request.StoryID != nil {
		summary, err := s.storyRepo.GetSummaryByID(ctx, s.db, *request.StoryID)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				return nil, err
			}
			s.logger.Warn("Approved request without story",
				zap.String("track_code", trackCode),
				zap.String("story_id", request.StoryID.String()))
		} else {
			status.Story = summary
		}
	}

	return status, nil
}
