package mocks

import (
	"context"

	"destiny-server/internal/models"
	"destiny-server/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockReportRepository is a mock type for the ReportRepository type
type MockReportRepository struct {
	mock.Mock
}

// Create provides a mock function with given fields: ctx, report
func (_m *MockReportRepository) Create(ctx context.Context, report *models.Report) error {
	ret := _m.Called(ctx, report)
	if rf, ok := ret.Get(0).(func(context.Context, *models.Report) error); ok {
		return rf(ctx, report)
	}
	return ret.Error(0)
}

// GetByID provides a mock function with given fields: ctx, id
func (_m *MockReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	ret := _m.Called(ctx, id)

	var r0 *models.Report
	if rf, ok := ret.Get(0).(func(context.Context, uuid.UUID) *models.Report); ok {
		r0 = rf(ctx, id)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Report)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, uuid.UUID) error); ok {
		r1 = rf(ctx, id)
	} else {
		r1 = ret.Error(1)
	}
	return r0, r1
}

// UpdateReport provides a mock function with given fields: ctx, id, upd
func (_m *MockReportRepository) UpdateReport(ctx context.Context, id uuid.UUID, upd models.ReportUpdate) error {
	ret := _m.Called(ctx, id, upd)
	if rf, ok := ret.Get(0).(func(context.Context, uuid.UUID, models.ReportUpdate) error); ok {
		return rf(ctx, id, upd)
	}
	return ret.Error(0)
}

// BeginGeneration provides a mock function with given fields: ctx, id
func (_m *MockReportRepository) BeginGeneration(ctx context.Context, id uuid.UUID) error {
	ret := _m.Called(ctx, id)
	return ret.Error(0)
}

// MarkPaid provides a mock function with given fields: ctx, id
func (_m *MockReportRepository) MarkPaid(ctx context.Context, id uuid.UUID) error {
	ret := _m.Called(ctx, id)
	return ret.Error(0)
}

// NewMockReportRepository creates a new instance of MockReportRepository.
func NewMockReportRepository(t interface {
	mock.TestingT
	Helper()
}) *MockReportRepository {
	m := &MockReportRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.ReportRepository = (*MockReportRepository)(nil)
