package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/puddle/v2"
	"go.uber.org/zap"

	"github.com/portfolioos/quantd/internal/engine/sidecar"
)

// PooledDispatcher serves requests from a pool of engines, one
// request per engine at a time. The pool is warmed on start and
// engines are recycled between requests.
type PooledDispatcher struct {
	ctx        context.Context
	pool       *puddle.Pool[sidecar.Supervisor]
	maxWorkers int
	log        *zap.Logger

	mu      sync.Mutex
	engines map[sidecar.Supervisor]struct{}
}

var _ Dispatcher = (*PooledDispatcher)(nil)

type PooledDispatcherConfig struct {
	// MaxWorkers is the maximum number of concurrent engines
	MaxWorkers int `conf:"max_workers"`

	// Engine is the configuration to use for the supervised engines
	Engine sidecar.Config `conf:"engine,squash"`
}

type PooledDispatcherParams struct {
	// Context is the context to use for the dispatcher
	Context context.Context

	// Config is the config for the dispatcher and the underlying engines
	Config PooledDispatcherConfig

	// SupervisorFactory is the factory function to create a new supervisor
	SupervisorFactory SupervisorFactory

	// Log is the logger to use for the dispatcher
	Log *zap.Logger
}

func NewPooledDispatcher(params PooledDispatcherParams) (Dispatcher, error) {
	if params.SupervisorFactory == nil {
		params.SupervisorFactory = defaultSupervisorFactory
	}

	if params.Context == nil {
		params.Context = context.Background()
	}

	maxWorkers := params.Config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	m := &PooledDispatcher{
		ctx:        params.Context,
		maxWorkers: maxWorkers,
		log:        params.Log.Named("dispatcher_pooled"),
		engines:    make(map[sidecar.Supervisor]struct{}),
	}

	pool, err := m.createPool(params)
	if err != nil {
		return nil, err
	}

	m.pool = pool

	return m, nil
}

// Start warms the pool by spawning one engine per worker slot.
func (m *PooledDispatcher) Start(ctx context.Context) error {
	m.log.Debug("warming engine pool", zap.Int("max_workers", m.maxWorkers))

	for i := 0; i < m.maxWorkers; i++ {
		if err := m.pool.CreateResource(ctx); err != nil {
			return fmt.Errorf("error warming engine pool: %w", err)
		}
	}

	return nil
}

func (m *PooledDispatcher) Send(
	ctx context.Context,
	method string,
	params map[string]any,
) (json.RawMessage, error) {
	resource, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("error acquiring engine: %w", err)
	}

	res, err := m.sendToSupervisor(ctx, method, params, resource)
	if err != nil {
		return nil, fmt.Errorf("error dispatching request: %w", err)
	}

	return res, nil
}

func (m *PooledDispatcher) sendToSupervisor(
	ctx context.Context,
	method string,
	params map[string]any,
	resource *puddle.Resource[sidecar.Supervisor],
) (json.RawMessage, error) {
	var err error

	dispose := func() {
		if recyclable(err) {
			m.log.Debug("releasing engine back to pool")
			resource.Release()
		} else {
			m.log.Debug("destroying engine due to error", zap.Error(err))
			resource.Destroy()
		}
	}

	defer func() {
		// we need to hand the engine back to the pool after we're
		// done with it. however, we want to return from the function
		// before that, as tearing down a broken engine blocks on its
		// shutdown. therefore, we dispose of the engine in a goroutine.
		go dispose()
	}()

	supervisor := resource.Value()

	var res json.RawMessage

	res, err = supervisor.Send(ctx, method, params)
	if err != nil {
		return nil, err
	}

	return res, nil
}

// Shutdown stops the dispatcher and waits for all engines to finish.
func (m *PooledDispatcher) Shutdown(context.Context) error {
	m.log.Debug("shutting down dispatcher")
	m.pool.Close()
	return nil
}

func (m *PooledDispatcher) Stats() []sidecar.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make([]sidecar.Stats, 0, len(m.engines))
	for engine := range m.engines {
		stats = append(stats, engine.Stats())
	}

	return stats
}

// recyclable reports whether the engine behind a failed request can
// go back into the pool. Request-level failures leave the engine
// healthy. Lifecycle failures mean the engine is gone or wedged, and
// the pool is better off destroying it.
func recyclable(err error) bool {
	if err == nil {
		return true
	}

	var engineErr *sidecar.EngineError
	if errors.As(err, &engineErr) {
		return true
	}

	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// MARK: - Pool

func (m *PooledDispatcher) createPool(
	params PooledDispatcherParams,
) (*puddle.Pool[sidecar.Supervisor], error) {
	log := params.Log.Named("dispatcher_pool")

	constructor := func(ctx context.Context) (sidecar.Supervisor, error) {
		sv, err := params.SupervisorFactory(sidecar.Params{
			Config: params.Config.Engine,
			Log:    params.Log,
		})
		if err != nil {
			return nil, err
		}

		if err = sv.Start(ctx); err != nil {
			return nil, err
		}

		m.register(sv)

		return sv, nil
	}

	destructor := func(s sidecar.Supervisor) {
		m.unregister(s)

		if err := s.Stop(m.ctx); err != nil {
			log.Error("error stopping engine", zap.Error(err))
		}
	}

	return puddle.NewPool(&puddle.Config[sidecar.Supervisor]{
		Constructor: constructor,
		Destructor:  destructor,
		MaxSize:     int32(m.maxWorkers),
	})
}

func (m *PooledDispatcher) register(s sidecar.Supervisor) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.engines[s] = struct{}{}
}

func (m *PooledDispatcher) unregister(s sidecar.Supervisor) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.engines, s)
}
