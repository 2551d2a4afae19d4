package handler

import (
	"time"

	"github.com/google/uuid"

	"after2am-server/internal/models"
)

// --- Request/Response Structs ---

type writeStoryRequest struct {
	Content string `json:"content" binding:"required"`
}

// writeStoryResponse - проекция созданной заявки. Контент обратно не
// отдаем, клиенту для поллинга хватает трек-кода и статуса.
type writeStoryResponse struct {
	ID        uuid.UUID                 `json:"id"`
	Status    models.StoryRequestStatus `json:"status"`
	TrackCode string                    `json:"trackCode"`
	CreatedAt time.Time                 `json:"createdAt"`
}

type startGenerationRequest struct {
	Mood     string `json:"mood"`
	Category string `json:"category"`
}

type startGenerationResponse struct {
	Dispatched int `json:"dispatched"`
}

// ErrorResponse - стандартная структура ответа об ошибке.
type ErrorResponse struct {
	Error string `json:"error"`
}

// --- Константы анонимной identity ---

const (
	// Имя куки анонимной identity. Выставляется при первой заявке.
	anonCookieName = "a2s_anon_id"
	// Кука живет год: дольше - бессмысленно, короче - обнуляет квоту.
	anonCookieMaxAge = 365 * 24 * 60 * 60
)
