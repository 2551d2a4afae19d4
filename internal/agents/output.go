package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"after2am-server/internal/models"
)

// EditorVerdict - структурированный вердикт ночного редактора.
// При отказе заполнены только Approved=false и Notes; публикуемых
// метаданных в отказе не бывает.
type EditorVerdict struct {
	Approved bool   `json:"approved"`
	Notes    string `json:"notes"`
	StoryPayload
}

// StoryPayload - публикуемая часть ответа агента.
type StoryPayload struct {
	Title      string            `json:"title"`
	Mood       models.Mood       `json:"mood"`
	Categories []models.Category `json:"categories"`
	Tags       []string          `json:"tags"`
	Intensity  int               `json:"intensity"`
	SEO        models.SEOMeta    `json:"seo"`
	HTMLBody   string            `json:"htmlBody"`
	Excerpt    string            `json:"excerpt"`
	Author     string            `json:"author"`
	ReadTime   int               `json:"readTime"`
	WordCount  int               `json:"wordCount"`
}

// Validate проверяет публикуемый payload по границам схемы историй.
// Возвращает все нарушения одной ошибкой.
func (p *StoryPayload) Validate() error {
	var problems []string

	if strings.TrimSpace(p.Title) == "" {
		problems = append(problems, "title is empty")
	}
	if strings.TrimSpace(p.HTMLBody) == "" {
		problems = append(problems, "htmlBody is empty")
	}
	if strings.TrimSpace(p.Excerpt) == "" {
		problems = append(problems, "excerpt is empty")
	}
	if strings.TrimSpace(p.Author) == "" {
		problems = append(problems, "author is empty")
	}
	if _, err := models.ParseMood(string(p.Mood)); err != nil {
		problems = append(problems, fmt.Sprintf("unknown mood %q", p.Mood))
	}
	if len(p.Categories) < 1 || len(p.Categories) > 3 {
		problems = append(problems, fmt.Sprintf("categories count %d outside [1,3]", len(p.Categories)))
	}
	for _, c := range p.Categories {
		if _, err := models.ParseCategory(string(c)); err != nil {
			problems = append(problems, fmt.Sprintf("unknown category %q", c))
		}
	}
	if len(p.Tags) < 3 || len(p.Tags) > 5 {
		problems = append(problems, fmt.Sprintf("tags count %d outside [3,5]", len(p.Tags)))
	}
	if p.Intensity < 1 || p.Intensity > 5 {
		problems = append(problems, fmt.Sprintf("intensity %d outside [1,5]", p.Intensity))
	}
	if p.ReadTime < 1 {
		problems = append(problems, "readTime must be positive")
	}
	if p.WordCount < 1 {
		problems = append(problems, "wordCount must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid agent output: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Normalize приводит payload к каноническому виду: настроение и категории
// в верхнем регистре, теги в нижнем.
func (p *StoryPayload) Normalize() {
	p.Mood = models.Mood(strings.ToUpper(string(p.Mood)))
	for i, c := range p.Categories {
		p.Categories[i] = models.Category(strings.ToUpper(strings.ReplaceAll(string(c), " ", "_")))
	}
	for i, t := range p.Tags {
		p.Tags[i] = strings.ToLower(strings.TrimSpace(t))
	}
}

// decodeStrict декодирует JSON-ответ агента в структуру T.
func decodeStrict[T any](raw string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return v, fmt.Errorf("ошибка разбора JSON ответа агента: %w", err)
	}
	return v, nil
}
