package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"after2am-server/internal/agents"
	"after2am-server/internal/models"
	"after2am-server/internal/service"
)

// MockEditorAgent is a mock type for service.EditorAgent
type MockEditorAgent struct {
	mock.Mock
}

func (_m *MockEditorAgent) Moderate(ctx context.Context, content string) (*agents.EditorVerdict, error) {
	ret := _m.Called(ctx, content)

	var r0 *agents.EditorVerdict
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*agents.EditorVerdict)
	}
	return r0, ret.Error(1)
}

var _ service.EditorAgent = (*MockEditorAgent)(nil)

// MockWriterAgent is a mock type for service.WriterAgent
type MockWriterAgent struct {
	mock.Mock
}

func (_m *MockWriterAgent) Write(ctx context.Context, mood models.Mood, category models.Category, intensity int) (*agents.StoryPayload, error) {
	ret := _m.Called(ctx, mood, category, intensity)

	var r0 *agents.StoryPayload
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*agents.StoryPayload)
	}
	return r0, ret.Error(1)
}

var _ service.WriterAgent = (*MockWriterAgent)(nil)
