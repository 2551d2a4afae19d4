package service_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"after2am-server/internal/mocks"
	"after2am-server/internal/models"
	"after2am-server/internal/service"
	"after2am-server/internal/workflow"
)

type dispatchedRun struct {
	payload service.GenerationPayload
	flow    workflow.FlowControl
}

func captureDispatches(client *mocks.MockWorkflowClient, sink *[]dispatchedRun, err error) {
	client.On("Trigger", mock.Anything, service.WorkflowGenerateStory, mock.Anything, mock.Anything).
		Return(uuid.New(), err).Run(func(args mock.Arguments) {
		*sink = append(*sink, dispatchedRun{
			payload: args.Get(2).(service.GenerationPayload),
			flow:    args.Get(3).(workflow.FlowControl),
		})
	})
}

func TestFanoutService_MoodPinned(t *testing.T) {
	client := &mocks.MockWorkflowClient{}
	var runs []dispatchedRun
	captureDispatches(client, &runs, nil)

	svc := service.NewFanoutService(client, rand.NewSource(1), zap.NewNop())

	mood := models.MoodHaunting
	dispatched := svc.Trigger(context.Background(), &mood, nil)

	// Закрепленное настроение и 5 категорий: ровно 5 ранов.
	assert.Equal(t, 5, dispatched)
	assert.Len(t, runs, 5)

	seen := make(map[models.Category]struct{})
	for _, run := range runs {
		assert.Equal(t, models.MoodHaunting, run.payload.Mood)
		assert.GreaterOrEqual(t, run.payload.Intensity, 1)
		assert.LessOrEqual(t, run.payload.Intensity, 5)
		// Все пары делят общий bulk-ключ диспетчеризации.
		assert.Equal(t, "generate-story-workflow", run.flow.Key)
		seen[run.payload.Category] = struct{}{}
	}
	assert.Len(t, seen, 5)
}

func TestFanoutService_NothingPinned(t *testing.T) {
	client := &mocks.MockWorkflowClient{}
	var runs []dispatchedRun
	captureDispatches(client, &runs, nil)

	svc := service.NewFanoutService(client, rand.NewSource(2), zap.NewNop())

	dispatched := svc.Trigger(context.Background(), nil, nil)

	// Полное декартово произведение 5x5.
	assert.Equal(t, 25, dispatched)
	assert.Len(t, runs, 25)
}

func TestFanoutService_BothPinnedUsesSingleFlow(t *testing.T) {
	client := &mocks.MockWorkflowClient{}
	var runs []dispatchedRun
	captureDispatches(client, &runs, nil)

	svc := service.NewFanoutService(client, rand.NewSource(3), zap.NewNop())

	mood := models.MoodEerie
	category := models.CategoryUrbanLegend
	dispatched := svc.Trigger(context.Background(), &mood, &category)

	assert.Equal(t, 1, dispatched)
	assert.Len(t, runs, 1)
	assert.Equal(t, "generate-story-single", runs[0].flow.Key)
}

func TestFanoutService_PartialFailures(t *testing.T) {
	client := &mocks.MockWorkflowClient{}

	// Первые две пары падают, остальные проходят.
	client.On("Trigger", mock.Anything, service.WorkflowGenerateStory, mock.Anything, mock.Anything).
		Return(uuid.Nil, errors.New("broker unavailable")).Twice()
	client.On("Trigger", mock.Anything, service.WorkflowGenerateStory, mock.Anything, mock.Anything).
		Return(uuid.New(), nil)

	svc := service.NewFanoutService(client, rand.NewSource(4), zap.NewNop())

	category := models.CategoryFiction
	dispatched := svc.Trigger(context.Background(), nil, &category)

	// Сбой отдельной пары не прерывает fan-out.
	assert.Equal(t, 3, dispatched)
}
