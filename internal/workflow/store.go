package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrRunNotFound возвращается при обращении к несуществующему рану.
var ErrRunNotFound = errors.New("workflow run not found")

// RunStore хранит раны и мемоизированные результаты шагов.
type RunStore interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	MarkRunning(ctx context.Context, id uuid.UUID, attempt int) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// GetStepOutput возвращает сохраненный результат шага, если шаг уже
	// выполнялся в этом ране (второе значение false - шаг еще не выполнялся).
	GetStepOutput(ctx context.Context, runID uuid.UUID, step string) (json.RawMessage, bool, error)

	// SaveStepOutput фиксирует результат шага. Повторная запись того же шага
	// игнорируется: первый записанный результат - канонический.
	SaveStepOutput(ctx context.Context, runID uuid.UUID, step string, output json.RawMessage) error
}

const (
	createRunQuery = `
		INSERT INTO workflow_runs (id, workflow, payload, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW(), NOW())
	`
	getRunQuery = `
		SELECT id, workflow, payload, status, attempts, last_error, created_at, updated_at
		FROM workflow_runs WHERE id = $1
	`
	markRunningQuery = `
		UPDATE workflow_runs SET status = $2, attempts = $3, updated_at = NOW() WHERE id = $1
	`
	markCompletedQuery = `
		UPDATE workflow_runs SET status = $2, last_error = NULL, updated_at = NOW() WHERE id = $1
	`
	markFailedQuery = `
		UPDATE workflow_runs SET status = $2, last_error = $3, updated_at = NOW() WHERE id = $1
	`
	getStepOutputQuery = `
		SELECT output FROM workflow_steps WHERE run_id = $1 AND step = $2
	`
	// ON CONFLICT DO NOTHING: при гонке реплеев канонический результат - первый.
	saveStepOutputQuery = `
		INSERT INTO workflow_steps (run_id, step, output, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (run_id, step) DO NOTHING
	`
)

type pgRunStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPgRunStore создает хранилище ранов на PostgreSQL.
func NewPgRunStore(db *pgxpool.Pool, logger *zap.Logger) RunStore {
	return &pgRunStore{
		db:     db,
		logger: logger.Named("RunStore"),
	}
}

var _ RunStore = (*pgRunStore)(nil)

func (s *pgRunStore) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = RunStatusPending
	}
	_, err := s.db.Exec(ctx, createRunQuery, run.ID, run.Workflow, run.Payload, run.Status)
	if err != nil {
		s.logger.Error("Failed to create workflow run",
			zap.String("workflow", run.Workflow), zap.Error(err))
		return fmt.Errorf("ошибка создания рана воркфлоу: %w", err)
	}
	return nil
}

func (s *pgRunStore) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var run Run
	err := pgxscan.Get(ctx, s.db, &run, getRunQuery, id)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("ошибка получения рана %s: %w", id, err)
	}
	return &run, nil
}

func (s *pgRunStore) MarkRunning(ctx context.Context, id uuid.UUID, attempt int) error {
	_, err := s.db.Exec(ctx, markRunningQuery, id, RunStatusRunning, attempt)
	if err != nil {
		return fmt.Errorf("ошибка перевода рана %s в running: %w", id, err)
	}
	return nil
}

func (s *pgRunStore) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, markCompletedQuery, id, RunStatusCompleted)
	if err != nil {
		return fmt.Errorf("ошибка перевода рана %s в completed: %w", id, err)
	}
	return nil
}

func (s *pgRunStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := s.db.Exec(ctx, markFailedQuery, id, RunStatusFailed, reason)
	if err != nil {
		return fmt.Errorf("ошибка перевода рана %s в failed: %w", id, err)
	}
	return nil
}

func (s *pgRunStore) GetStepOutput(ctx context.Context, runID uuid.UUID, step string) (json.RawMessage, bool, error) {
	var output json.RawMessage
	err := pgxscan.Get(ctx, s.db, &output, getStepOutputQuery, runID, step)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("ошибка чтения результата шага %s/%s: %w", runID, step, err)
	}
	return output, true, nil
}

func (s *pgRunStore) SaveStepOutput(ctx context.Context, runID uuid.UUID, step string, output json.RawMessage) error {
	_, err := s.db.Exec(ctx, saveStepOutputQuery, runID, step, output)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
			return ErrRunNotFound
		}
		return fmt.Errorf("ошибка сохранения результата шага %s/%s: %w", runID, step, err)
	}
	return nil
}
