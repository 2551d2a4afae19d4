package service

import (
	"time"

	"after2am-server/internal/models"
	"after2am-server/internal/workflow"
)

// Имена воркфлоу. Консьюмер диспетчеризует раны по этим именам.
const (
	WorkflowWriteStory    = "writeStory"
	WorkflowGenerateStory = "generateStory"
)

// ModerationPayload - входной payload воркфлоу модерации.
type ModerationPayload struct {
	TrackCode string `json:"trackCode"`
}

// GenerationPayload - входной payload воркфлоу генерации.
type GenerationPayload struct {
	Mood      models.Mood     `json:"mood"`
	Category  models.Category `json:"category"`
	Intensity int             `json:"intensity"`
}

// Flow-control профили диспетчеризации.
var (
	// Модерация: без rate-лимита, ретраи на стороне субстрата.
	moderationFlow = workflow.FlowControl{Key: "write-story-workflow", Parallelism: 1}

	// Массовая генерация: общий ключ, самоторможение под лимиты AI.
	bulkGenerationFlow = workflow.FlowControl{
		Key:         "generate-story-workflow",
		Rate:        3,
		Period:      time.Minute,
		Parallelism: 1,
	}

	// Одиночная генерация (оба измерения заданы): отдельный, менее строгий ключ.
	singleGenerationFlow = workflow.FlowControl{
		Key:         "generate-story-single",
		Rate:        1,
		Period:      5 * time.Minute,
		Parallelism: 1,
	}
)
