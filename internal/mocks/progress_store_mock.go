package mocks

import (
	"context"

	"destiny-server/internal/progress"

	"github.com/stretchr/testify/mock"
)

// MockProgressStore is a mock type for the progress.Store type
type MockProgressStore struct {
	mock.Mock
}

// Set provides a mock function with given fields: ctx, sessionID, percent, status, message
func (_m *MockProgressStore) Set(ctx context.Context, sessionID string, percent int, status progress.Status, message string) (progress.Entry, error) {
	ret := _m.Called(ctx, sessionID, percent, status, message)

	var r0 progress.Entry
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(progress.Entry)
	}
	return r0, ret.Error(1)
}

// Get provides a mock function with given fields: ctx, sessionID
func (_m *MockProgressStore) Get(ctx context.Context, sessionID string) (progress.Entry, error) {
	ret := _m.Called(ctx, sessionID)

	var r0 progress.Entry
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(progress.Entry)
	}
	return r0, ret.Error(1)
}

// Delete provides a mock function with given fields: ctx, sessionID
func (_m *MockProgressStore) Delete(ctx context.Context, sessionID string) error {
	ret := _m.Called(ctx, sessionID)
	return ret.Error(0)
}

// NewMockProgressStore creates a new instance of MockProgressStore.
func NewMockProgressStore(t interface {
	mock.TestingT
	Helper()
}) *MockProgressStore {
	m := &MockProgressStore{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ progress.Store = (*MockProgressStore)(nil)
