package models

import (
	"time"

	"github.com/google/uuid"
)

// StoryRequestStatus определяет статус пользовательской заявки.
// Переходы монотонны: PENDING -> {APPROVED, REJECTED, FAILED}, обратных нет.
type StoryRequestStatus string

const (
	RequestStatusPending  StoryRequestStatus = "PENDING"
	RequestStatusApproved StoryRequestStatus = "APPROVED"
	RequestStatusRejected StoryRequestStatus = "REJECTED"
	RequestStatusFailed   StoryRequestStatus = "FAILED"
)

// StoryRequest - анонимная заявка на публикацию, ожидающая модерации.
// Запись никогда не удаляется и навсегда доступна по трек-коду.
type StoryRequest struct {
	ID         uuid.UUID          `json:"id" db:"id"`
	Content    string             `json:"content" db:"content"`
	Status     StoryRequestStatus `json:"status" db:"status"`
	Notes      *string            `json:"notes,omitempty" db:"notes"`
	TrackCode  string             `json:"trackCode" db:"track_code"`
	ApprovedAt *time.Time         `json:"approvedAt,omitempty" db:"approved_at"` // только при APPROVED
	StoryID    *uuid.UUID         `json:"storyId,omitempty" db:"story_id"`
	CreatedAt  time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time          `json:"updatedAt" db:"updated_at"`
}

// TrackStatus - проекция заявки для поллинга по трек-коду.
// Клиент опрашивает, пока Status == PENDING.
type TrackStatus struct {
	TrackCode string             `json:"trackCode"`
	Status    StoryRequestStatus `json:"status"`
	Notes     *string            `json:"notes,omitempty"`
	Story     *StorySummary      `json:"story,omitempty"`
}
