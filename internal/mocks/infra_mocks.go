package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"after2am-server/internal/cache"
	"after2am-server/internal/ratelimit"
	"after2am-server/internal/workflow"
)

// MockWorkflowClient is a mock type for workflow.Client
type MockWorkflowClient struct {
	mock.Mock
}

func (_m *MockWorkflowClient) Trigger(ctx context.Context, workflowName string, payload any, fc workflow.FlowControl) (uuid.UUID, error) {
	ret := _m.Called(ctx, workflowName, payload, fc)

	var r0 uuid.UUID
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(uuid.UUID)
	}
	return r0, ret.Error(1)
}

var _ workflow.Client = (*MockWorkflowClient)(nil)

// MockCacheStore is a mock type for cache.Store
type MockCacheStore struct {
	mock.Mock
}

func (_m *MockCacheStore) Get(ctx context.Context, key string) (string, bool, error) {
	ret := _m.Called(ctx, key)

	var r0 string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(string)
	}
	var r1 bool
	if ret.Get(1) != nil {
		r1 = ret.Get(1).(bool)
	}
	return r0, r1, ret.Error(2)
}

func (_m *MockCacheStore) Set(ctx context.Context, key string, value string, ttl time.Duration, tags ...string) error {
	args := []any{ctx, key, value, ttl}
	for _, tag := range tags {
		args = append(args, tag)
	}
	ret := _m.Called(args...)
	return ret.Error(0)
}

func (_m *MockCacheStore) Invalidate(ctx context.Context, tags ...string) error {
	args := []any{ctx}
	for _, tag := range tags {
		args = append(args, tag)
	}
	ret := _m.Called(args...)
	return ret.Error(0)
}

var _ cache.Store = (*MockCacheStore)(nil)

// MockLimiter is a mock type for ratelimit.Limiter
type MockLimiter struct {
	mock.Mock
}

func (_m *MockLimiter) Allow(ctx context.Context, identity string) (bool, error) {
	ret := _m.Called(ctx, identity)

	var r0 bool
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(bool)
	}
	return r0, ret.Error(1)
}

func (_m *MockLimiter) Refund(ctx context.Context, identity string) error {
	ret := _m.Called(ctx, identity)
	return ret.Error(0)
}

var _ ratelimit.Limiter = (*MockLimiter)(nil)
