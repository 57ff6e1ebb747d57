package mocks

import (
	"context"

	"destiny-server/internal/service"

	"github.com/stretchr/testify/mock"
)

// MockAIClient is a mock type for the AIClient type
type MockAIClient struct {
	mock.Mock
}

// GenerateTextStream provides a mock function with given fields: ctx, userID, systemPrompt, userInput, params, chunkHandler
func (_m *MockAIClient) GenerateTextStream(ctx context.Context, userID string, systemPrompt string, userInput string, params service.GenerationParams, chunkHandler func(string) error) (service.UsageInfo, error) {
	ret := _m.Called(ctx, userID, systemPrompt, userInput, params, chunkHandler)

	var r0 service.UsageInfo
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string, service.GenerationParams, func(string) error) service.UsageInfo); ok {
		r0 = rf(ctx, userID, systemPrompt, userInput, params, chunkHandler)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(service.UsageInfo)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string, string, string, service.GenerationParams, func(string) error) error); ok {
		r1 = rf(ctx, userID, systemPrompt, userInput, params, chunkHandler)
	} else {
		r1 = ret.Error(1)
	}
	return r0, r1
}

// NewMockAIClient creates a new instance of MockAIClient.
func NewMockAIClient(t interface {
	mock.TestingT
	Helper()
}) *MockAIClient {
	m := &MockAIClient{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ service.AIClient = (*MockAIClient)(nil)
