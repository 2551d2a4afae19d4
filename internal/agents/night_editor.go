package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// NightEditor - AI-модератор пользовательских заявок.
type NightEditor struct {
	ai     AIClient
	model  string
	logger *zap.Logger
}

// NewNightEditor создает модератора поверх AI-клиента.
func NewNightEditor(ai AIClient, model string, logger *zap.Logger) *NightEditor {
	return &NightEditor{
		ai:     ai,
		model:  model,
		logger: logger.Named("NightEditor"),
	}
}

// Moderate выносит вердикт по сырому тексту заявки.
// Ошибки AI и некорректный вывод - транзиентные: шаг будет повторен субстратом.
func (e *NightEditor) Moderate(ctx context.Context, content string) (*EditorVerdict, error) {
	raw, err := e.ai.GenerateJSON(ctx, e.model, editorSystemPrompt, editorUserPrompt(content))
	if err != nil {
		return nil, err
	}

	verdict, err := decodeStrict[EditorVerdict](raw)
	if err != nil {
		e.logger.Warn("Night editor returned malformed JSON", zap.Error(err))
		return nil, err
	}

	if verdict.Approved {
		verdict.Normalize()
		if err := verdict.StoryPayload.Validate(); err != nil {
			e.logger.Warn("Night editor verdict failed validation", zap.Error(err))
			return nil, fmt.Errorf("night editor: %w", err)
		}
	}

	e.logger.Info("Night editor verdict",
		zap.Bool("approved", verdict.Approved),
		zap.String("mood", string(verdict.Mood)))
	return &verdict, nil
}
