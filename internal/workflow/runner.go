package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runner исполняет шаги воркфлоу с мемоизацией результатов.
// Шаг, однажды вернувший результат для данного рана, при реплее не
// выполняется повторно - возвращается сохраненный результат. Именно это
// обеспечивает идемпотентность многошаговых пайплайнов при ретраях.
type Runner struct {
	store  RunStore
	logger *zap.Logger
}

// NewRunner создает новый исполнитель шагов.
func NewRunner(store RunStore, logger *zap.Logger) *Runner {
	return &Runner{
		store:  store,
		logger: logger.Named("WorkflowRunner"),
	}
}

// Store возвращает хранилище ранов (для консьюмера).
func (r *Runner) Store() RunStore {
	return r.store
}

// RunStep выполняет именованный шаг рана.
// Если шаг уже выполнялся - возвращает мемоизированный результат без
// повторного вызова fn. Результат fn сериализуется в JSON и сохраняется
// durable до возврата вызывающему: следующий шаг никогда не наблюдает
// незафиксированный результат предыдущего.
func RunStep[T any](ctx context.Context, r *Runner, runID uuid.UUID, step string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	log := r.logger.With(zap.String("runID", runID.String()), zap.String("step", step))

	stored, found, err := r.store.GetStepOutput(ctx, runID, step)
	if err != nil {
		return zero, fmt.Errorf("step %q: %w", step, err)
	}
	if found {
		log.Debug("Step output memoized, skipping execution")
		var out T
		if err := json.Unmarshal(stored, &out); err != nil {
			return zero, fmt.Errorf("step %q: ошибка разбора мемоизированного результата: %w", step, err)
		}
		return out, nil
	}

	out, err := fn(ctx)
	if err != nil {
		// Ошибки шагов не мемоизируются: ретрай выполнит шаг заново.
		return zero, fmt.Errorf("step %q: %w", step, err)
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return zero, fmt.Errorf("step %q: ошибка сериализации результата: %w", step, err)
	}
	if err := r.store.SaveStepOutput(ctx, runID, step, raw); err != nil {
		return zero, fmt.Errorf("step %q: %w", step, err)
	}

	log.Debug("Step executed and result recorded")
	return out, nil
}
