package workflow

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RunStatus определяет статус рана воркфлоу.
// Совпадает с CHECK-ограничением таблицы workflow_runs.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run - одно durable-исполнение именованного воркфлоу для одного payload.
// Состояние между шагами живет только в БД: процесс-исполнитель может
// смениться между шагами, повтор начинается с мемоизированных результатов.
type Run struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Workflow  string          `json:"workflow" db:"workflow"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
	Status    RunStatus       `json:"status" db:"status"`
	Attempts  int             `json:"attempts" db:"attempts"`
	LastError *string         `json:"lastError,omitempty" db:"last_error"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// FlowControl ограничивает темп и параллелизм диспетчеризации ранов,
// разделяющих один ключ.
type FlowControl struct {
	Key         string        // общий ключ диспетчеризации
	Rate        int           // разрешенных запусков за Period
	Period      time.Duration // окно rate-лимита
	Parallelism int           // одновременных исполнений на ключ
}

// TaskEnvelope - сообщение очереди, несущее один ран воркфлоу.
type TaskEnvelope struct {
	RunID    uuid.UUID       `json:"run_id"`
	Workflow string          `json:"workflow"`
	Payload  json.RawMessage `json:"payload"`
}
