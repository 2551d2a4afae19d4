package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"after2am-server/internal/models"
)

const (
	createStoryRequestQuery = `
		INSERT INTO story_requests (id, content, status, track_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	getStoryRequestByTrackCodeQuery = `
		SELECT id, content, status, notes, track_code, approved_at, story_id, created_at, updated_at
		FROM story_requests
		WHERE track_code = $1
	`

	// Переход только из PENDING: защита от регресса статуса на уровне запроса.
	approveStoryRequestQuery = `
		UPDATE story_requests
		SET status = $2, approved_at = $3, story_id = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5
	`

	rejectStoryRequestQuery = `
		UPDATE story_requests
		SET status = $2, notes = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`
)

type pgStoryRequestRepository struct {
	logger *zap.Logger
}

// NewPgStoryRequestRepository создает новый репозиторий заявок.
func NewPgStoryRequestRepository(logger *zap.Logger) StoryRequestRepository {
	return &pgStoryRequestRepository{
		logger: logger.Named("StoryRequestRepo"),
	}
}

var _ StoryRequestRepository = (*pgStoryRequestRepository)(nil)

// Create создает новую заявку.
func (r *pgStoryRequestRepository) Create(ctx context.Context, querier DBTX, req *models.StoryRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}

	_, err := querier.Exec(ctx, createStoryRequestQuery,
		req.ID, req.Content, req.Status, req.TrackCode, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			r.logger.Warn("Track code collision on story request create",
				zap.String("trackCode", req.TrackCode))
			return models.ErrDuplicateTrackCode
		}
		r.logger.Error("Failed to create story request", zap.Error(err))
		return fmt.Errorf("ошибка создания заявки: %w", err)
	}

	r.logger.Info("Story request created",
		zap.String("requestID", req.ID.String()),
		zap.String("trackCode", req.TrackCode))
	return nil
}

// GetByTrackCode возвращает заявку по трек-коду.
func (r *pgStoryRequestRepository) GetByTrackCode(ctx context.Context, querier DBTX, trackCode string) (*models.StoryRequest, error) {
	var req models.StoryRequest
	err := pgxscan.Get(ctx, querier, &req, getStoryRequestByTrackCodeQuery, trackCode)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get story request by track code",
			zap.String("trackCode", trackCode), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения заявки по трек-коду %s: %w", trackCode, err)
	}
	return &req, nil
}

// MarkApproved переводит заявку в APPROVED и связывает ее с историей.
func (r *pgStoryRequestRepository) MarkApproved(ctx context.Context, querier DBTX, id uuid.UUID, approvedAt time.Time, storyID uuid.UUID) error {
	tag, err := querier.Exec(ctx, approveStoryRequestQuery,
		id, models.RequestStatusApproved, approvedAt.UTC(), storyID, models.RequestStatusPending)
	if err != nil {
		r.logger.Error("Failed to approve story request",
			zap.String("requestID", id.String()), zap.Error(err))
		return fmt.Errorf("ошибка одобрения заявки %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Заявка либо отсутствует, либо уже не PENDING
		return models.ErrRequestNotPending
	}
	r.logger.Info("Story request approved",
		zap.String("requestID", id.String()),
		zap.String("storyID", storyID.String()))
	return nil
}

// MarkRejected переводит заявку в REJECTED с заметками для автора.
func (r *pgStoryRequestRepository) MarkRejected(ctx context.Context, querier DBTX, id uuid.UUID, notes string) error {
	tag, err := querier.Exec(ctx, rejectStoryRequestQuery,
		id, models.RequestStatusRejected, notes, models.RequestStatusPending)
	if err != nil {
		r.logger.Error("Failed to reject story request",
			zap.String("requestID", id.String()), zap.Error(err))
		return fmt.Errorf("ошибка отклонения заявки %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrRequestNotPending
	}
	r.logger.Info("Story request rejected", zap.String("requestID", id.String()))
	return nil
}
