package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"after2am-server/internal/agents"
)

// MockAIClient is a mock type for the agents.AIClient type
type MockAIClient struct {
	mock.Mock
}

// GenerateJSON provides a mock function with given fields: ctx, model, systemPrompt, userPrompt
func (_m *MockAIClient) GenerateJSON(ctx context.Context, model string, systemPrompt string, userPrompt string) (string, error) {
	ret := _m.Called(ctx, model, systemPrompt, userPrompt)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string) string); ok {
		r0 = rf(ctx, model, systemPrompt, userPrompt)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(string)
		}
	}

	return r0, ret.Error(1)
}

// NewMockAIClient creates a new instance of MockAIClient. It also registers a testing interface on the mock.
func NewMockAIClient(t interface {
	mock.TestingT
	Helper()
}) *MockAIClient {
	m := &MockAIClient{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ agents.AIClient = (*MockAIClient)(nil)
