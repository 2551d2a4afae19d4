package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"after2am-server/internal/models"
)

// DBTX - общий интерфейс для *pgxpool.Pool и pgx.Tx.
// Позволяет выполнять методы репозитория как в транзакции, так и без нее.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StoryRequestRepository управляет записями заявок.
type StoryRequestRepository interface {
	// Create создает заявку. При коллизии трек-кода возвращает
	// models.ErrDuplicateTrackCode (вызывающий перегенерирует код).
	Create(ctx context.Context, querier DBTX, req *models.StoryRequest) error

	// GetByTrackCode возвращает заявку по трек-коду или models.ErrNotFound.
	GetByTrackCode(ctx context.Context, querier DBTX, trackCode string) (*models.StoryRequest, error)

	// MarkApproved переводит PENDING-заявку в APPROVED, проставляет approved_at
	// и ссылку на созданную историю. Не-PENDING заявки не трогает
	// (возвращает models.ErrRequestNotPending).
	MarkApproved(ctx context.Context, querier DBTX, id uuid.UUID, approvedAt time.Time, storyID uuid.UUID) error

	// MarkRejected переводит PENDING-заявку в REJECTED с заметками модератора.
	MarkRejected(ctx context.Context, querier DBTX, id uuid.UUID, notes string) error
}

// StoryRepository управляет опубликованными историями.
type StoryRepository interface {
	// Create создает историю. При коллизии slug возвращает models.ErrDuplicateSlug.
	Create(ctx context.Context, querier DBTX, story *models.Story) error

	// GetBySlug возвращает историю по slug или models.ErrNotFound.
	GetBySlug(ctx context.Context, querier DBTX, slug string) (*models.Story, error)

	// GetSummaryByID возвращает сокращенную проекцию истории по ID.
	GetSummaryByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.StorySummary, error)

	// PickRandomSlug возвращает slug случайной опубликованной истории.
	// mood == nil означает выборку по всем настроениям ("surprise me").
	// Выборка выполняется средствами БД (ORDER BY RANDOM() LIMIT 1),
	// кандидаты в память не загружаются. Пустой результат - models.ErrNotFound.
	PickRandomSlug(ctx context.Context, querier DBTX, mood *models.Mood, excludeSlugs []string) (string, error)

	// ListPublished возвращает страницу опубликованных историй, новые первыми.
	ListPublished(ctx context.Context, querier DBTX, limit, offset int) ([]models.StorySummary, error)
}

// TxRunner выполняет функцию внутри одной транзакции БД.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error
}
