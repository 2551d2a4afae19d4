package service

import (
	"context"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"after2am-server/internal/models"
	"after2am-server/internal/workflow"
)

// FanoutService разворачивает bulk-запрос генерации в набор ранов:
// по одному на каждую пару (настроение, категория) декартова произведения
// незакрепленных измерений селектора.
type FanoutService struct {
	client workflow.Client
	logger *zap.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewFanoutService создает сервис массовой генерации.
func NewFanoutService(client workflow.Client, src rand.Source, logger *zap.Logger) *FanoutService {
	return &FanoutService{
		client: client,
		logger: logger.Named("FanoutService"),
		rnd:    rand.New(src),
	}
}

// Trigger ставит в очередь по одному рану генерации на каждую пару.
// Интенсивность каждой пары выбирается равномерно из [1,5]. Сбои отдельных
// пар логируются и не прерывают остальной fan-out: частичное выполнение
// ожидаемо. Возвращает число успешно поставленных ранов.
func (s *FanoutService) Trigger(ctx context.Context, mood *models.Mood, category *models.Category) int {
	moods := models.AllMoods()
	if mood != nil {
		moods = []models.Mood{*mood}
	}
	categories := models.AllCategories()
	if category != nil {
		categories = []models.Category{*category}
	}

	// Полностью закрепленный одиночный запрос идет под отдельным,
	// менее строгим ключом диспетчеризации.
	flow := bulkGenerationFlow
	if mood != nil && category != nil {
		flow = singleGenerationFlow
	}

	dispatched := 0
	for _, m := range moods {
		for _, c := range categories {
			payload := GenerationPayload{
				Mood:      m,
				Category:  c,
				Intensity: s.randomIntensity(),
			}
			runID, err := s.client.Trigger(ctx, WorkflowGenerateStory, payload, flow)
			if err != nil {
				s.logger.Error("Failed to dispatch generation workflow",
					zap.String("mood", string(m)),
					zap.String("category", string(c)),
					zap.Error(err))
				continue
			}
			s.logger.Info("Generation workflow dispatched",
				zap.String("runID", runID.String()),
				zap.String("mood", string(m)),
				zap.String("category", string(c)),
				zap.Int("intensity", payload.Intensity),
				zap.String("flowKey", flow.Key))
			dispatched++
		}
	}
	return dispatched
}

func (s *FanoutService) randomIntensity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(5) + 1
}
