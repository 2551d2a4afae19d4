// Package validation проверяет входные данные на границах API.
// Каждая проверка возвращает ПОЛНЫЙ список нарушений, а не первое из них.
package validation

import (
	"fmt"
	"strings"

	"after2am-server/internal/models"
)

const (
	// Минимум слов в заявке (после trim, разделение по пробельным символам).
	MinContentWords = 10
	// Максимальная длина заявки в символах.
	MaxContentChars = 10000
)

// FieldError - одно нарушение с привязкой к полю.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError агрегирует все нарушения одного запроса.
type ValidationError struct {
	Violations []FieldError `json:"violations"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return strings.Join(msgs, "; ")
}

// ValidateSubmission проверяет текст пользовательской заявки.
func ValidateSubmission(content string) error {
	var violations []FieldError

	trimmed := strings.TrimSpace(content)
	if len(strings.Fields(trimmed)) < MinContentWords {
		violations = append(violations, FieldError{
			Field:   "content",
			Message: fmt.Sprintf("must contain at least %d words", MinContentWords),
		})
	}
	if len(content) > MaxContentChars {
		violations = append(violations, FieldError{
			Field:   "content",
			Message: fmt.Sprintf("must be at most %d characters", MaxContentChars),
		})
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// ValidateTrigger проверяет селектор массовой генерации.
// Оба поля необязательны; непустые значения сверяются с перечислениями.
func ValidateTrigger(mood, category string) (*models.Mood, *models.Category, error) {
	var violations []FieldError
	var m *models.Mood
	var c *models.Category

	if mood != "" {
		parsed, err := models.ParseMood(mood)
		if err != nil {
			violations = append(violations, FieldError{Field: "mood", Message: fmt.Sprintf("unknown mood %q", mood)})
		} else {
			m = &parsed
		}
	}
	if category != "" {
		parsed, err := models.ParseCategory(category)
		if err != nil {
			violations = append(violations, FieldError{Field: "category", Message: fmt.Sprintf("unknown category %q", category)})
		} else {
			c = &parsed
		}
	}

	if len(violations) > 0 {
		return nil, nil, &ValidationError{Violations: violations}
	}
	return m, c, nil
}
