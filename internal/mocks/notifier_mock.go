package mocks

import (
	"context"

	"destiny-server/internal/generation"
	"destiny-server/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockNotifier is a mock type for the generation.Notifier type
type MockNotifier struct {
	mock.Mock
}

// NotifyReportFinished provides a mock function with given fields: ctx, n
func (_m *MockNotifier) NotifyReportFinished(ctx context.Context, n models.ReportNotification) error {
	ret := _m.Called(ctx, n)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, models.ReportNotification) error); ok {
		r0 = rf(ctx, n)
	} else {
		r0 = ret.Error(0)
	}
	return r0
}

// NewMockNotifier creates a new instance of MockNotifier. It also registers a testing interface on the mock.
func NewMockNotifier(t interface {
	mock.TestingT
	Helper()
}) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ generation.Notifier = (*MockNotifier)(nil)
