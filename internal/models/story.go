package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mood определяет эмоциональный регистр истории.
// Совпадает со значениями CHECK-ограничения в БД.
type Mood string

const (
	MoodHaunting     Mood = "HAUNTING"
	MoodEmotional    Mood = "EMOTIONAL"
	MoodConfessional Mood = "CONFESSIONAL"
	MoodThoughtful   Mood = "THOUGHTFUL"
	// MoodEerie - режим "surprise me": выборка идет по всем настроениям.
	MoodEerie Mood = "EERIE"
)

// AllMoods возвращает закрытый список настроений в фиксированном порядке.
func AllMoods() []Mood {
	return []Mood{MoodHaunting, MoodEmotional, MoodConfessional, MoodThoughtful, MoodEerie}
}

// ParseMood разбирает настроение без учета регистра.
func ParseMood(s string) (Mood, error) {
	m := Mood(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllMoods() {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mood %q: %w", s, ErrInvalidInput)
}

// Category определяет форму истории.
type Category string

const (
	CategoryFiction     Category = "FICTION"
	CategoryReality     Category = "REALITY"
	CategoryPoetry      Category = "POETRY"
	CategoryJournal     Category = "JOURNAL"
	CategoryUrbanLegend Category = "URBAN_LEGEND"
)

// AllCategories возвращает закрытый список категорий в фиксированном порядке.
func AllCategories() []Category {
	return []Category{CategoryFiction, CategoryReality, CategoryPoetry, CategoryJournal, CategoryUrbanLegend}
}

// ParseCategory разбирает категорию без учета регистра.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllCategories() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q: %w", s, ErrInvalidInput)
}

// MoodMetadata - метаданные настроения для посадочной страницы.
type MoodMetadata struct {
	ID     Mood   `json:"id"`
	Label  string `json:"label"`
	Phrase string `json:"phrase"`
}

// MoodConfig - фразы выбора настроения, 1:1 с фронтендом.
func MoodConfig() []MoodMetadata {
	return []MoodMetadata{
		{ID: MoodHaunting, Label: "Haunting", Phrase: "I want something dark"},
		{ID: MoodEmotional, Label: "Emotional", Phrase: "I miss someone"},
		{ID: MoodConfessional, Label: "Confessional", Phrase: "I can't sleep"},
		{ID: MoodThoughtful, Label: "Thoughtful", Phrase: "I feel empty"},
		{ID: MoodEerie, Label: "Eerie", Phrase: "Surprise me"},
	}
}

// SEOMeta - SEO-метаданные истории. Хранится как JSONB.
type SEOMeta struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// Story представляет опубликованную (или готовящуюся к публикации) историю.
// История становится видимой для подборки по настроению только при
// ненулевом PublishedAt.
type Story struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	Slug           string     `json:"slug" db:"slug"`
	Title          string     `json:"title" db:"title"`
	Excerpt        string     `json:"excerpt" db:"excerpt"`
	Content        string     `json:"content" db:"content"` // HTML-тело
	Mood           Mood       `json:"mood" db:"mood"`
	Categories     []Category `json:"categories" db:"categories"`
	Tags           []string   `json:"tags" db:"tags"`
	Intensity      int        `json:"intensity" db:"intensity"` // 1..5
	SEO            SEOMeta    `json:"seo" db:"seo"`
	Author         string     `json:"author" db:"author"`
	ReadTime       int        `json:"readTime" db:"read_time"` // минуты
	WordCount      int        `json:"wordCount" db:"word_count"`
	PublishedAt    *time.Time `json:"publishedAt,omitempty" db:"published_at"`
	StoryRequestID *uuid.UUID `json:"storyRequestId,omitempty" db:"story_request_id"`
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time  `json:"updatedAt" db:"updated_at"`
}

// StorySummary - сокращенная проекция истории для списков и трекинга.
type StorySummary struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Slug        string     `json:"slug" db:"slug"`
	Title       string     `json:"title" db:"title"`
	PublishedAt *time.Time `json:"publishedAt,omitempty" db:"published_at"`
}
