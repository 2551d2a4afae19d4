package agents_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"after2am-server/internal/agents"
	"after2am-server/internal/mocks"
	"after2am-server/internal/models"
)

const testModel = "gpt-4o-mini"

func validVerdictJSON() string {
	return `{
		"approved": true,
		"notes": "",
		"title": "The Hallway Light",
		"mood": "haunting",
		"categories": ["fiction"],
		"tags": ["Night", "LIGHT", " memory "],
		"intensity": 4,
		"seo": {"title": "The Hallway Light", "description": "A light that would not die", "keywords": ["night"]},
		"htmlBody": "<p>The light flickered.</p>",
		"excerpt": "The light flickered.",
		"author": "the night editor",
		"readTime": 2,
		"wordCount": 240
	}`
}

func TestNightEditor_ApprovedVerdictNormalized(t *testing.T) {
	ai := mocks.NewMockAIClient(t)
	editor := agents.NewNightEditor(ai, testModel, zap.NewNop())

	ai.On("GenerateJSON", mock.Anything, testModel, mock.AnythingOfType("string"), mock.AnythingOfType("string")).
		Return(validVerdictJSON(), nil).Once()

	verdict, err := editor.Moderate(context.Background(), "someone left the hallway light on again tonight")
	require.NoError(t, err)

	assert.True(t, verdict.Approved)
	// Настроение и категории приводятся к верхнему регистру, теги к нижнему.
	assert.Equal(t, models.MoodHaunting, verdict.Mood)
	assert.Equal(t, []models.Category{models.CategoryFiction}, verdict.Categories)
	assert.Equal(t, []string{"night", "light", "memory"}, verdict.Tags)
}

func TestNightEditor_RejectionSkipsPayloadValidation(t *testing.T) {
	ai := mocks.NewMockAIClient(t)
	editor := agents.NewNightEditor(ai, testModel, zap.NewNop())

	// Отказ не несет публикуемого payload - пустые поля не считаются ошибкой.
	ai.On("GenerateJSON", mock.Anything, testModel, mock.Anything, mock.Anything).
		Return(`{"approved": false, "notes": "reads like a shopping list"}`, nil).Once()

	verdict, err := editor.Moderate(context.Background(), "milk eggs bread butter cheese apples oranges pasta rice soap")
	require.NoError(t, err)
	assert.False(t, verdict.Approved)
	assert.Equal(t, "reads like a shopping list", verdict.Notes)
}

func TestNightEditor_MalformedJSON(t *testing.T) {
	ai := mocks.NewMockAIClient(t)
	editor := agents.NewNightEditor(ai, testModel, zap.NewNop())

	ai.On("GenerateJSON", mock.Anything, testModel, mock.Anything, mock.Anything).
		Return("I cannot respond in JSON today", nil).Once()

	_, err := editor.Moderate(context.Background(), "a perfectly ordinary story about an extraordinary night walk")
	assert.Error(t, err)
}

func TestNightEditor_ApprovedWithInvalidPayload(t *testing.T) {
	ai := mocks.NewMockAIClient(t)
	editor := agents.NewNightEditor(ai, testModel, zap.NewNop())

	// Одобрение без обязательных полей - транзиентная ошибка, не отказ.
	ai.On("GenerateJSON", mock.Anything, testModel, mock.Anything, mock.Anything).
		Return(`{"approved": true, "title": "", "mood": "HAUNTING"}`, nil).Once()

	_, err := editor.Moderate(context.Background(), "the story was fine but the editor lost the metadata")
	assert.Error(t, err)
}

func TestNightWriter_RequestedParametersAreAuthoritative(t *testing.T) {
	ai := mocks.NewMockAIClient(t)
	writer := agents.NewNightWriter(ai, testModel, zap.NewNop())

	// Модель вернула чужое настроение и категорию - запрошенные побеждают.
	ai.On("GenerateJSON", mock.Anything, testModel, mock.Anything, mock.Anything).
		Return(`{
			"title": "Static on Channel Nine",
			"mood": "HAUNTING",
			"categories": ["POETRY", "JOURNAL"],
			"tags": ["static", "television", "memory"],
			"intensity": 5,
			"seo": {"title": "Static", "description": "d", "keywords": []},
			"htmlBody": "<p>Static.</p>",
			"excerpt": "Static.",
			"author": "the night writer",
			"readTime": 3,
			"wordCount": 600
		}`, nil).Once()

	payload, err := writer.Write(context.Background(), models.MoodEmotional, models.CategoryReality, 2)
	require.NoError(t, err)

	assert.Equal(t, models.MoodEmotional, payload.Mood)
	assert.Equal(t, []models.Category{models.CategoryReality}, payload.Categories)
	assert.Equal(t, 2, payload.Intensity)
}

func TestNightWriter_AIFailurePassesThrough(t *testing.T) {
	ai := mocks.NewMockAIClient(t)
	writer := agents.NewNightWriter(ai, testModel, zap.NewNop())

	ai.On("GenerateJSON", mock.Anything, testModel, mock.Anything, mock.Anything).
		Return("", assert.AnError).Once()

	_, err := writer.Write(context.Background(), models.MoodHaunting, models.CategoryFiction, 3)
	assert.ErrorIs(t, err, assert.AnError)
}
