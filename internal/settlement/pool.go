package settlement

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/angelmondragon/pixmock-backend/pkg/clock"
	"github.com/angelmondragon/pixmock-backend/pkg/logger"
	"github.com/angelmondragon/pixmock-backend/pkg/metrics"
)

var (
	// ErrPoolClosed is returned by Submit after Shutdown started.
	ErrPoolClosed = errors.New("settlement pool closed")
	// ErrAlreadyScheduled is returned when key already has a task waiting or running.
	ErrAlreadyScheduled = errors.New("settlement task already scheduled")
)

// Task is the unit of work run once its delay elapses. ctx is canceled on Shutdown.
type Task func(ctx context.Context)

// PoolParams configure the task pool.
type PoolParams struct {
	Clock   clock.Clock
	Logger  *logger.Logger
	Metrics *metrics.GatewayMetrics
}

// Pool runs at most one delayed task per key. Tasks are fire-and-forget: a
// panic is logged and swallowed and never reaches the submitter.
type Pool struct {
	clock   clock.Clock
	logg    *logger.Logger
	metrics *metrics.GatewayMetrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	keys   map[string]struct{}
	closed bool
}

// NewPool builds an empty pool.
func NewPool(params PoolParams) (*Pool, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Clock == nil {
		params.Clock = clock.System()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		clock:   params.Clock,
		logg:    params.Logger,
		metrics: params.Metrics,
		ctx:     ctx,
		cancel:  cancel,
		keys:    make(map[string]struct{}),
	}, nil
}

// Submit schedules task to run after delay. Values carried by parent (log
// fields, request id) reach the task but its cancellation does not.
func (p *Pool) Submit(parent context.Context, key string, delay time.Duration, task Task) error {
	if parent == nil {
		parent = context.Background()
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	if _, busy := p.keys[key]; busy {
		p.mu.Unlock()
		return ErrAlreadyScheduled
	}
	p.keys[key] = struct{}{}
	p.wg.Add(1)
	p.mu.Unlock()

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stop := context.AfterFunc(p.ctx, cancel)

	p.metrics.TaskStarted()
	go func() {
		defer p.wg.Done()
		defer p.release(key)
		defer p.metrics.TaskFinished()
		defer cancel()
		defer stop()

		select {
		case <-taskCtx.Done():
			p.logg.Debug(taskCtx, "settlement task canceled before wake")
			return
		case <-p.clock.After(delay):
		}
		p.run(taskCtx, task)
	}()
	return nil
}

func (p *Pool) run(ctx context.Context, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			ctx = p.logg.WithFields(ctx, map[string]any{
				"panic": fmt.Sprint(rec),
				"stack": string(debug.Stack()),
			})
			p.logg.Error(ctx, "settlement task panicked", fmt.Errorf("panic: %v", rec))
		}
	}()
	task(ctx)
}

func (p *Pool) release(key string) {
	p.mu.Lock()
	delete(p.keys, key)
	p.mu.Unlock()
}

// Pending reports how many tasks are waiting or running.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// Scheduled reports whether key has a task waiting or running.
func (p *Pool) Scheduled(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.keys[key]
	return ok
}

// Wait blocks until every submitted task has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Shutdown stops accepting work, cancels sleeping tasks and waits for running
// ones until ctx expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("settlement pool shutdown: %w", ctx.Err())
	}
}
