package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"model-stage-promoter/internal/core/domain"
)

// MockTrackingClient is a mock of TrackingClient.
type MockTrackingClient struct {
	mock.Mock
}

func (m *MockTrackingClient) SearchModelVersions(ctx context.Context, name string) ([]*domain.ModelVersion, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ModelVersion), args.Error(1)
}

func (m *MockTrackingClient) TransitionStage(ctx context.Context, name string, version int, stage domain.Stage, archiveExisting bool) (*domain.ModelVersion, error) {
	args := m.Called(ctx, name, version, stage, archiveExisting)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ModelVersion), args.Error(1)
}

func (m *MockTrackingClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockReporter is a mock of Reporter.
type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) Start(modelName string) {
	m.Called(modelName)
}

func (m *MockReporter) LatestVersion(version int) {
	m.Called(version)
}

func (m *MockReporter) Transitioning(stage domain.Stage) {
	m.Called(stage)
}

func (m *MockReporter) Transitioned(modelName string, version int, stage domain.Stage) {
	m.Called(modelName, version, stage)
}

func (m *MockReporter) TransitionFailed(err error) {
	m.Called(err)
}

func (m *MockReporter) Verified(stage domain.Stage, version int) {
	m.Called(stage, version)
}

func (m *MockReporter) NotInStage(modelName string, stage domain.Stage) {
	m.Called(modelName, stage)
}

func (m *MockReporter) Done() {
	m.Called()
}

// Versions builds model version snapshots for name, one per (version, stage) pair.
func Versions(name string, pairs ...any) []*domain.ModelVersion {
	var out []*domain.ModelVersion
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, &domain.ModelVersion{
			Name:         name,
			Version:      pairs[i].(int),
			CurrentStage: pairs[i+1].(domain.Stage),
		})
	}
	return out
}
