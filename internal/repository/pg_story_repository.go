package repository

import (
	"context"
	"encoding/json"
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
	createStoryQuery = `
		INSERT INTO stories (
			id, slug, title, excerpt, content, mood, categories, tags, intensity,
			seo, author, read_time, word_count, published_at, story_request_id,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)
	`

	storyFields = `
		id, slug, title, excerpt, content, mood, categories, tags, intensity,
		seo, author, read_time, word_count, published_at, story_request_id,
		created_at, updated_at
	`

	getStoryBySlugQuery = `SELECT ` + storyFields + ` FROM stories WHERE slug = $1`

	getStorySummaryByIDQuery = `SELECT id, slug, title, published_at FROM stories WHERE id = $1`

	// Случайная выборка на стороне БД. Кандидаты в память не загружаются.
	pickRandomSlugQuery = `
		SELECT slug FROM stories
		WHERE published_at IS NOT NULL
		  AND ($1::text IS NULL OR mood = $1)
		  AND NOT (slug = ANY($2::text[]))
		ORDER BY RANDOM()
		LIMIT 1
	`

	listPublishedQuery = `
		SELECT id, slug, title, published_at
		FROM stories
		WHERE published_at IS NOT NULL
		ORDER BY published_at DESC
		LIMIT $1 OFFSET $2
	`
)

// storyRow - строка таблицы stories в типах, которые понимает pgx напрямую.
// categories хранится как text[], seo как JSONB.
type storyRow struct {
	ID             uuid.UUID       `db:"id"`
	Slug           string          `db:"slug"`
	Title          string          `db:"title"`
	Excerpt        string          `db:"excerpt"`
	Content        string          `db:"content"`
	Mood           string          `db:"mood"`
	Categories     []string        `db:"categories"`
	Tags           []string        `db:"tags"`
	Intensity      int             `db:"intensity"`
	SEO            json.RawMessage `db:"seo"`
	Author         string          `db:"author"`
	ReadTime       int             `db:"read_time"`
	WordCount      int             `db:"word_count"`
	PublishedAt    *time.Time      `db:"published_at"`
	StoryRequestID *uuid.UUID      `db:"story_request_id"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func (row *storyRow) toModel() (*models.Story, error) {
	var seo models.SEOMeta
	if len(row.SEO) > 0 {
		if err := json.Unmarshal(row.SEO, &seo); err != nil {
			return nil, fmt.Errorf("ошибка разбора SEO JSON истории %s: %w", row.ID, err)
		}
	}
	categories := make([]models.Category, 0, len(row.Categories))
	for _, c := range row.Categories {
		categories = append(categories, models.Category(c))
	}
	return &models.Story{
		ID:             row.ID,
		Slug:           row.Slug,
		Title:          row.Title,
		Excerpt:        row.Excerpt,
		Content:        row.Content,
		Mood:           models.Mood(row.Mood),
		Categories:     categories,
		Tags:           row.Tags,
		Intensity:      row.Intensity,
		SEO:            seo,
		Author:         row.Author,
		ReadTime:       row.ReadTime,
		WordCount:      row.WordCount,
		PublishedAt:    row.PublishedAt,
		StoryRequestID: row.StoryRequestID,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}, nil
}

type pgStoryRepository struct {
	logger *zap.Logger
}

// NewPgStoryRepository создает новый репозиторий историй.
func NewPgStoryRepository(logger *zap.Logger) StoryRepository {
	return &pgStoryRepository{
		logger: logger.Named("StoryRepo"),
	}
}

var _ StoryRepository = (*pgStoryRepository)(nil)

// Create создает новую историю.
func (r *pgStoryRepository) Create(ctx context.Context, querier DBTX, story *models.Story) error {
	if story.ID == uuid.Nil {
		story.ID = uuid.New()
	}
	now := time.Now().UTC()
	story.CreatedAt = now
	story.UpdatedAt = now

	seoJSON, err := json.Marshal(story.SEO)
	if err != nil {
		return fmt.Errorf("ошибка сериализации SEO истории: %w", err)
	}
	categories := make([]string, 0, len(story.Categories))
	for _, c := range story.Categories {
		categories = append(categories, string(c))
	}

	logFields := []zap.Field{
		zap.String("storyID", story.ID.String()),
		zap.String("slug", story.Slug),
		zap.String("mood", string(story.Mood)),
	}
	r.logger.Debug("Creating story", logFields...)

	_, err = querier.Exec(ctx, createStoryQuery,
		story.ID,             // $1
		story.Slug,           // $2
		story.Title,          // $3
		story.Excerpt,        // $4
		story.Content,        // $5
		string(story.Mood),   // $6
		categories,           // $7
		story.Tags,           // $8
		story.Intensity,      // $9
		seoJSON,              // $10
		story.Author,         // $11
		story.ReadTime,       // $12
		story.WordCount,      // $13
		story.PublishedAt,    // $14
		story.StoryRequestID, // $15
		story.CreatedAt,      // $16
		story.UpdatedAt,      // $17
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			r.logger.Warn("Slug collision on story create", logFields...)
			return models.ErrDuplicateSlug
		}
		r.logger.Error("Failed to create story", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка создания истории: %w", err)
	}

	r.logger.Info("Story created", logFields...)
	return nil
}

// GetBySlug возвращает историю по slug.
func (r *pgStoryRepository) GetBySlug(ctx context.Context, querier DBTX, slug string) (*models.Story, error) {
	var row storyRow
	err := pgxscan.Get(ctx, querier, &row, getStoryBySlugQuery, slug)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get story by slug", zap.String("slug", slug), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения истории по slug %s: %w", slug, err)
	}
	return row.toModel()
}

// GetSummaryByID возвращает сокращенную проекцию истории по ID.
func (r *pgStoryRepository) GetSummaryByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.StorySummary, error) {
	var summary models.StorySummary
	err := pgxscan.Get(ctx, querier, &summary, getStorySummaryByIDQuery, id)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get story summary", zap.String("storyID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения истории %s: %w", id, err)
	}
	return &summary, nil
}

// PickRandomSlug возвращает slug случайной опубликованной истории.
func (r *pgStoryRepository) PickRandomSlug(ctx context.Context, querier DBTX, mood *models.Mood, excludeSlugs []string) (string, error) {
	var moodArg *string
	if mood != nil {
		s := string(*mood)
		moodArg = &s
	}
	if excludeSlugs == nil {
		excludeSlugs = []string{}
	}

	var slug string
	err := pgxscan.Get(ctx, querier, &slug, pickRandomSlugQuery, moodArg, excludeSlugs)
	if err != nil {
		if pgxscan.NotFound(err) {
			return "", models.ErrNotFound
		}
		r.logger.Error("Failed to pick random story slug",
			zap.Stringp("mood", moodArg),
			zap.Int("excluded", len(excludeSlugs)),
			zap.Error(err))
		return "", fmt.Errorf("ошибка случайной выборки истории: %w", err)
	}
	return slug, nil
}

// ListPublished возвращает страницу опубликованных историй.
func (r *pgStoryRepository) ListPublished(ctx context.Context, querier DBTX, limit, offset int) ([]models.StorySummary, error) {
	var summaries []models.StorySummary
	err := pgxscan.Select(ctx, querier, &summaries, listPublishedQuery, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list published stories", zap.Error(err))
		return nil, fmt.Errorf("ошибка получения списка историй: %w", err)
	}
	return summaries, nil
}
