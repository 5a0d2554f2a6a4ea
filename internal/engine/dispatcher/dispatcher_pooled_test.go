package dispatcher_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/portfolioos/quantd/internal/engine/dispatcher"
	"github.com/portfolioos/quantd/internal/engine/sidecar"
)

func TestPooledDispatcher_New_DefaultsToSingleEngine(t *testing.T) {
	m, err := dispatcher.NewPooledDispatcher(dispatcher.PooledDispatcherParams{
		Config: dispatcher.PooledDispatcherConfig{
			MaxWorkers: 0,
		},
		Context: context.Background(),
		Log:     zap.NewNop(),
	})
	assert.NoError(t, err)
	assert.NotNil(t, m)
}

func TestPooledDispatcher_New_CreatesNewDispatcher(t *testing.T) {
	m, _, err := createPooledDispatcher(t)

	assert.NoError(t, err)
	assert.NotNil(t, m)
}

func TestPooledDispatcher_Start_WarmsPool(t *testing.T) {
	m, sv, _ := createPooledDispatcher(t)

	sv.On("Start", mock.Anything).Return(nil)
	sv.On("Stop", mock.Anything).Return(nil)
	sv.On("Stats").Return(sidecar.Stats{Running: true})

	require.NoError(t, m.Start(context.Background()))

	// the engine is spawned before the first request comes in
	sv.AssertCalled(t, "Start", mock.Anything)
	assert.Len(t, m.Stats(), 1)

	m.Shutdown(context.Background())
}

func TestPooledDispatcher_Start_FailsToSpawn(t *testing.T) {
	factory := func(params sidecar.Params) (sidecar.Supervisor, error) {
		return nil, assert.AnError
	}

	m, err := createPooledDispatcherWithFactory(factory)
	require.NoError(t, err)

	err = m.Start(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPooledDispatcher_Send(t *testing.T) {
	m, sv, _ := createPooledDispatcher(t)

	params := map[string]any{"n_trials": 1000}

	sv.On("Start", mock.Anything).Return(nil)
	sv.On("Stop", mock.Anything).Return(nil)
	sv.On("Send", mock.Anything, "simulation.monte_carlo", params).
		Return(json.RawMessage(`{"p50":1.0}`), nil)

	res, err := m.Send(context.Background(), "simulation.monte_carlo", params)
	assert.NoError(t, err)
	assert.JSONEq(t, `{"p50":1.0}`, string(res))

	// wait for the background disposal goroutines to finish
	m.Shutdown(context.Background())
}

func TestPooledDispatcher_Send_FailsToCreateEngine(t *testing.T) {
	factory := func(params sidecar.Params) (sidecar.Supervisor, error) {
		return nil, assert.AnError
	}

	m, err := createPooledDispatcherWithFactory(factory)
	require.NoError(t, err)

	_, err = m.Send(context.Background(), "engine.ping", nil)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPooledDispatcher_Send_FailsToStartEngine(t *testing.T) {
	m, sv, _ := createPooledDispatcher(t)

	sv.On("Start", mock.Anything).Return(assert.AnError)

	_, err := m.Send(context.Background(), "engine.ping", nil)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPooledDispatcher_Send_EngineErrorReleasesEngine(t *testing.T) {
	m, sv, _ := createPooledDispatcher(t)

	engineErr := &sidecar.EngineError{Message: "n_trials must be positive"}

	sv.On("Start", mock.Anything).Return(nil)
	sv.On("Stop", mock.Anything).Return(nil)
	sv.On("Send", mock.Anything, "simulation.monte_carlo", mock.Anything).
		Return(nil, engineErr).Once()
	sv.On("Send", mock.Anything, "simulation.monte_carlo", mock.Anything).
		Return(json.RawMessage(`{}`), nil).Once()

	_, err := m.Send(context.Background(), "simulation.monte_carlo", nil)
	assert.ErrorIs(t, err, engineErr)

	// a request-level failure keeps the engine in the pool
	_, err = m.Send(context.Background(), "simulation.monte_carlo", nil)
	assert.NoError(t, err)

	m.Shutdown(context.Background())

	sv.AssertNumberOfCalls(t, "Start", 1)
}

func TestPooledDispatcher_Send_LifecycleErrorDestroysEngine(t *testing.T) {
	m, sv, _ := createPooledDispatcher(t)

	sv.On("Start", mock.Anything).Return(nil)
	sv.On("Stop", mock.Anything).Return(nil)
	sv.On("Send", mock.Anything, "engine.ping", mock.Anything).
		Return(nil, sidecar.ErrProcessExited).Once()
	sv.On("Send", mock.Anything, "engine.ping", mock.Anything).
		Return(json.RawMessage(`{}`), nil).Once()

	_, err := m.Send(context.Background(), "engine.ping", nil)
	assert.ErrorIs(t, err, sidecar.ErrProcessExited)

	// a dead engine is destroyed, the next request gets a fresh one
	_, err = m.Send(context.Background(), "engine.ping", nil)
	assert.NoError(t, err)

	m.Shutdown(context.Background())

	sv.AssertNumberOfCalls(t, "Start", 2)
}

func TestPooledDispatcher_Stats(t *testing.T) {
	m, sv, _ := createPooledDispatcher(t)

	sv.On("Start", mock.Anything).Return(nil)
	sv.On("Stop", mock.Anything).Return(nil)
	sv.On("Send", mock.Anything, "engine.ping", mock.Anything).
		Return(json.RawMessage(`{}`), nil)
	sv.On("Stats").Return(sidecar.Stats{Running: true, Pid: 42})

	assert.Empty(t, m.Stats())

	_, err := m.Send(context.Background(), "engine.ping", nil)
	assert.NoError(t, err)

	stats := m.Stats()
	require.Len(t, stats, 1)
	assert.True(t, stats[0].Running)
	assert.Equal(t, 42, stats[0].Pid)

	m.Shutdown(context.Background())

	assert.Empty(t, m.Stats())
}

func TestPooledDispatcher_Shutdown_StopsEngines(t *testing.T) {
	m, sv, _ := createPooledDispatcher(t)

	sv.On("Start", mock.Anything).Return(nil)
	sv.On("Stop", mock.Anything).Return(nil)
	sv.On("Send", mock.Anything, "engine.ping", mock.Anything).
		Return(json.RawMessage(`{}`), nil)

	_, err := m.Send(context.Background(), "engine.ping", nil)
	assert.NoError(t, err)

	m.Shutdown(context.Background())

	sv.AssertCalled(t, "Stop", mock.Anything)
}

// MARK: - mocks

type MockSupervisor struct {
	mock.Mock
}

var _ sidecar.Supervisor = (*MockSupervisor)(nil)

func (m *MockSupervisor) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSupervisor) Stop(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSupervisor) Restart(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSupervisor) Send(
	ctx context.Context,
	method string,
	params map[string]any,
) (json.RawMessage, error) {
	args := m.Called(ctx, method, params)

	var res json.RawMessage
	if v := args.Get(0); v != nil {
		res = v.(json.RawMessage)
	}

	return res, args.Error(1)
}

func (m *MockSupervisor) SendWithTimeout(
	ctx context.Context,
	method string,
	params map[string]any,
	timeout time.Duration,
) (json.RawMessage, error) {
	args := m.Called(ctx, method, params, timeout)

	var res json.RawMessage
	if v := args.Get(0); v != nil {
		res = v.(json.RawMessage)
	}

	return res, args.Error(1)
}

func (m *MockSupervisor) Running() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockSupervisor) Stats() sidecar.Stats {
	args := m.Called()
	return args.Get(0).(sidecar.Stats)
}

// MARK: - helpers

func createPooledDispatcher(t *testing.T) (dispatcher.Dispatcher, *MockSupervisor, error) {
	sv := new(MockSupervisor)

	factory := func(params sidecar.Params) (sidecar.Supervisor, error) {
		return sv, nil
	}

	m, err := createPooledDispatcherWithFactory(factory)
	if err != nil {
		return nil, nil, err
	}

	return m, sv, nil
}

func createPooledDispatcherWithFactory(
	factory dispatcher.SupervisorFactory,
) (dispatcher.Dispatcher, error) {
	return dispatcher.NewPooledDispatcher(dispatcher.PooledDispatcherParams{
		Config: dispatcher.PooledDispatcherConfig{
			MaxWorkers: 1,
		},
		Context:           context.Background(),
		SupervisorFactory: factory,
		Log:               zap.NewNop(),
	})
}
