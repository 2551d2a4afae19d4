package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"after2am-server/internal/models"
)

// Интерфейсы сервисного слоя: хендлер зависит только от того, что вызывает.

type submissionService interface {
	Submit(ctx context.Context, identity, content string) (*models.StoryRequest, error)
}

type fanoutService interface {
	Trigger(ctx context.Context, mood *models.Mood, category *models.Category) int
}

type selectorService interface {
	Pick(ctx context.Context, mood models.Mood, excludeSlugs []string) (string, error)
}

type trackService interface {
	Lookup(ctx context.Context, trackCode string) (*models.TrackStatus, error)
}

type storyService interface {
	List(ctx context.Context, limit, offset int) ([]models.StorySummary, error)
	GetBySlug(ctx context.Context, slug string) (*models.Story, error)
}

// StoryHandler обслуживает публичный HTTP API.
type StoryHandler struct {
	submissions submissionService
	fanout      fanoutService
	selector    selectorService
	tracker     trackService
	stories     storyService
	logger      *zap.Logger
}

// NewStoryHandler создает HTTP-хендлер.
func NewStoryHandler(
	submissions submissionService,
	fanout fanoutService,
	selector selectorService,
	tracker trackService,
	stories storyService,
	logger *zap.Logger,
) *StoryHandler {
	return &StoryHandler{
		submissions: submissions,
		fanout:      fanout,
		selector:    selector,
		tracker:     tracker,
		stories:     stories,
		logger:      logger.Named("StoryHandler"),
	}
}

func (h *StoryHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.POST("/stories/write", h.writeStory)
		api.POST("/stories/start", h.startGeneration)
		api.GET("/stories", h.listStories)
		api.GET("/stories/mood/:mood", h.pickByMood)
		api.GET("/stories/:slug", h.getStory)
		api.GET("/moods", h.listMoods)
		api.GET("/track/:code", h.trackStatus)
	}
}
