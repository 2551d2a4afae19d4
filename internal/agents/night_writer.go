package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"after2am-server/internal/models"
)

// NightWriter - AI-автор историй по (настроение, категория, интенсивность).
type NightWriter struct {
	ai     AIClient
	model  string
	logger *zap.Logger
}

// NewNightWriter создает писателя поверх AI-клиента.
func NewNightWriter(ai AIClient, model string, logger *zap.Logger) *NightWriter {
	return &NightWriter{
		ai:     ai,
		model:  model,
		logger: logger.Named("NightWriter"),
	}
}

// Write генерирует полный публикуемый payload истории.
func (w *NightWriter) Write(ctx context.Context, mood models.Mood, category models.Category, intensity int) (*StoryPayload, error) {
	raw, err := w.ai.GenerateJSON(ctx, w.model, writerSystemPrompt, writerUserPrompt(mood, category, intensity))
	if err != nil {
		return nil, err
	}

	payload, err := decodeStrict[StoryPayload](raw)
	if err != nil {
		w.logger.Warn("Night writer returned malformed JSON", zap.Error(err))
		return nil, err
	}

	// Запрошенные параметры авторитетны: модель могла их переиначить.
	payload.Mood = mood
	payload.Categories = []models.Category{category}
	payload.Intensity = intensity
	payload.Normalize()

	if err := payload.Validate(); err != nil {
		w.logger.Warn("Night writer output failed validation", zap.Error(err))
		return nil, fmt.Errorf("night writer: %w", err)
	}

	w.logger.Info("Night writer produced story",
		zap.String("mood", string(mood)),
		zap.String("category", string(category)),
		zap.Int("intensity", intensity))
	return &payload, nil
}
