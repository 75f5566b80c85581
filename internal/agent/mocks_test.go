// internal/agent/mocks_test.go
package agent

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mvoss9k/tabpilot/api/schemas"
)

// MockGateway mocks the Gateway interface. Requests are recorded so tests
// can inspect the prompts the controller built.
type MockGateway struct {
	mock.Mock
	requests []DecisionRequest
}

func (m *MockGateway) Decide(ctx context.Context, req DecisionRequest) (string, error) {
	m.requests = append(m.requests, req)
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// MockExecutor mocks the Executor interface.
type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Execute(ctx context.Context, action schemas.Action) schemas.ActionResult {
	args := m.Called(ctx, action)
	return args.Get(0).(schemas.ActionResult)
}

func (m *MockExecutor) Navigate(ctx context.Context, rawURL string) schemas.ActionResult {
	args := m.Called(ctx, rawURL)
	return args.Get(0).(schemas.ActionResult)
}

// MockObservationSource mocks the ObservationSource interface.
type MockObservationSource struct {
	mock.Mock
}

func (m *MockObservationSource) Observe(ctx context.Context, opts ObserveOptions) (*schemas.Observation, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.Observation), args.Error(1)
}

// blockingGateway parks Decide until the run context is cancelled. It
// signals entered once so tests can order a Stop call after the request
// is in flight.
type blockingGateway struct {
	entered chan struct{}
}

func (g *blockingGateway) Decide(ctx context.Context, req DecisionRequest) (string, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return "", ctx.Err()
}
