package tcode

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sevfate/go-tcode/logger"
)

// TaskFunc is one iteration of a task. It returns false to stop the task.
type TaskFunc func() bool

// TaskCancelFunc runs once when a task exits.
type TaskCancelFunc func()

// TaskManager runs the goroutines of a connection or an axis pump and
// stops them together.
//
// Example Usage:
//
//	taskMgr := tcode.NewTaskManager(ctx, logger)
//	taskMgr.Start("reader", func() bool {
//	    // ... read one line ...
//	    return true
//	}, nil)
//	taskMgr.Stop()
//	taskMgr.Wait()
type TaskManager struct {
	pctx    context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  logger.Logger
	count   atomic.Int32
	tickers sync.Map     // map[string]*time.Ticker
	mu      sync.RWMutex // protect ctx and cancel
	taskMu  sync.RWMutex // protect task creation during Wait()
}

// NewTaskManager creates a TaskManager whose tasks stop when ctx is done.
func NewTaskManager(ctx context.Context, l logger.Logger) *TaskManager {
	mgr := &TaskManager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

func (mgr *TaskManager) getContext() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Context returns the context shared by the running tasks.
func (mgr *TaskManager) Context() context.Context {
	return mgr.getContext()
}

// Start runs taskFunc in a loop on a new goroutine until it returns false
// or the manager is stopped. cancelFunc, if not nil, runs when the
// goroutine exits.
func (mgr *TaskManager) Start(name string, taskFunc TaskFunc, cancelFunc TaskCancelFunc) error {
	mgr.logger.Debug("start task", "name", name)

	starter, err := mgr.newTaskStarter(name)
	if err != nil {
		return err
	}

	starter.startTask(func() {
		if cancelFunc != nil {
			defer cancelFunc()
		}
		mgr.runTaskLoop(name, taskFunc)
	})

	return starter.waitForStart()
}

// StartInterval runs taskFunc every interval until it returns false or the
// manager is stopped. If runNow is true, taskFunc also runs once before the
// first tick.
func (mgr *TaskManager) StartInterval(name string, taskFunc TaskFunc, interval time.Duration, runNow bool) (*time.Ticker, error) {
	mgr.logger.Debug("start interval task", "name", name, "interval", interval, "runNow", runNow)

	if interval <= 0 {
		return nil, fmt.Errorf("invalid interval: %v", interval)
	}

	ticker := time.NewTicker(interval)
	if _, loaded := mgr.tickers.LoadOrStore(name, ticker); loaded {
		ticker.Stop()
		return nil, fmt.Errorf("interval task %s already exists", name)
	}

	cleanup := func() {
		ticker.Stop()
		mgr.tickers.Delete(name)
	}

	if runNow && !mgr.callWithRecover(name, taskFunc) {
		cleanup()
		return ticker, nil
	}

	starter, err := mgr.newTaskStarter(name)
	if err != nil {
		cleanup()
		return nil, err
	}

	starter.startTask(func() {
		defer cleanup()

		for {
			ctx := mgr.getContext()
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !mgr.callWithRecover(name, taskFunc) {
					return
				}
			}
		}
	})

	if err := starter.waitForStart(); err != nil {
		cleanup()
		return nil, err
	}

	return ticker, nil
}

// StopInterval stops the interval task with the given name.
func (mgr *TaskManager) StopInterval(name string) error {
	val, ok := mgr.tickers.LoadAndDelete(name)
	if !ok {
		return fmt.Errorf("ticker %s not found", name)
	}
	ticker, ok := val.(*time.Ticker)
	if !ok {
		return fmt.Errorf("ticker %s is not a *time.Ticker", name)
	}
	ticker.Stop()

	return nil
}

// Stop signals all running tasks.
func (mgr *TaskManager) Stop() {
	mgr.tickers.Range(func(_, value any) bool {
		if ticker, ok := value.(*time.Ticker); ok {
			ticker.Stop()
		}
		return true
	})

	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait blocks until every task has returned, then rearms the manager so
// tasks can be started again.
func (mgr *TaskManager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	mgr.wg.Wait()

	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// TaskCount returns the number of running tasks.
func (mgr *TaskManager) TaskCount() int {
	return int(mgr.count.Load())
}

func (mgr *TaskManager) callWithRecover(name string, fn TaskFunc) (cont bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
			cont = false
		}
	}()

	return fn()
}

func (mgr *TaskManager) runTaskLoop(name string, taskFunc TaskFunc) {
	for {
		ctx := mgr.getContext()
		select {
		case <-ctx.Done():
			return
		default:
			if !mgr.callWithRecover(name, taskFunc) {
				return
			}
		}
	}
}

type taskStarter struct {
	mgr     *TaskManager
	name    string
	started chan struct{}
}

func (mgr *TaskManager) newTaskStarter(name string) (*taskStarter, error) {
	select {
	case <-mgr.getContext().Done():
		return nil, fmt.Errorf("task manager already stopped")
	default:
	}

	return &taskStarter{mgr: mgr, name: name, started: make(chan struct{})}, nil
}

func (s *taskStarter) startTask(body func()) {
	s.mgr.taskMu.RLock()
	defer s.mgr.taskMu.RUnlock()

	s.mgr.wg.Add(1)
	s.mgr.count.Add(1)

	go func() {
		defer s.mgr.wg.Done()
		defer func() {
			s.mgr.count.Add(-1)
			s.mgr.logger.Debug("task terminated", "name", s.name, "task_count", s.mgr.TaskCount())
		}()

		close(s.started)
		body()
	}()
}

func (s *taskStarter) waitForStart() error {
	select {
	case <-s.started:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for %s to start", s.name)
	}
}
