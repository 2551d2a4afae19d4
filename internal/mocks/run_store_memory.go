package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"after2am-server/internal/workflow"
)

type stepKey struct {
	runID uuid.UUID
	step  string
}

// MemoryRunStore - потокобезопасное in-memory хранилище ранов для тестов.
// Семантика совпадает с Postgres-реализацией: результат шага пишется один
// раз, повторная запись игнорируется.
type MemoryRunStore struct {
	mu    sync.Mutex
	runs  map[uuid.UUID]*workflow.Run
	steps map[stepKey]json.RawMessage

	// StepWrites считает фактические записи результатов шагов.
	StepWrites int
}

// NewMemoryRunStore создает пустое in-memory хранилище.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{
		runs:  make(map[uuid.UUID]*workflow.Run),
		steps: make(map[stepKey]json.RawMessage),
	}
}

var _ workflow.RunStore = (*MemoryRunStore)(nil)

func (s *MemoryRunStore) CreateRun(_ context.Context, run *workflow.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = workflow.RunStatusPending
	}
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *MemoryRunStore) GetRun(_ context.Context, id uuid.UUID) (*workflow.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, workflow.ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

func (s *MemoryRunStore) MarkRunning(_ context.Context, id uuid.UUID, attempt int) error {
	return s.setStatus(id, workflow.RunStatusRunning, attempt, nil)
}

func (s *MemoryRunStore) MarkCompleted(_ context.Context, id uuid.UUID) error {
	return s.setStatus(id, workflow.RunStatusCompleted, -1, nil)
}

func (s *MemoryRunStore) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	return s.setStatus(id, workflow.RunStatusFailed, -1, &reason)
}

func (s *MemoryRunStore) setStatus(id uuid.UUID, status workflow.RunStatus, attempt int, lastError *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		// Тесты часто исполняют шаги без предварительного CreateRun.
		run = &workflow.Run{ID: id}
		s.runs[id] = run
	}
	run.Status = status
	if attempt >= 0 {
		run.Attempts = attempt
	}
	run.LastError = lastError
	return nil
}

func (s *MemoryRunStore) GetStepOutput(_ context.Context, runID uuid.UUID, step string) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.steps[stepKey{runID, step}]
	if !ok {
		return nil, false, nil
	}
	return out, true, nil
}

func (s *MemoryRunStore) SaveStepOutput(_ context.Context, runID uuid.UUID, step string, output json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stepKey{runID, step}
	if _, exists := s.steps[key]; exists {
		return nil
	}
	s.steps[key] = output
	s.StepWrites++
	return nil
}
