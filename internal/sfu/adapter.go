package sfu

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Adapter is the narrow contract C2/C3 use over the media engine: a pool of
// Workers assigned routers round-robin, including breakout routers.
type Adapter struct {
	cfg     Config
	logger  *zap.Logger
	mu      sync.Mutex
	workers []*Worker
	next    uint64
}

// NumWorkers returns max(1, ceil(cores/2)) unless overridden.
func NumWorkers(override int) int {
	if override > 0 {
		return override
	}
	n := (runtime.NumCPU() + 1) / 2
	if n < 1 {
		n = 1
	}
	return n
}

// NewAdapter boots the worker pool.
func NewAdapter(cfg Config, numWorkers int, logger *zap.Logger) (*Adapter, error) {
	a := &Adapter{cfg: cfg, logger: logger}
	for i := 0; i < numWorkers; i++ {
		w, err := NewWorker(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create worker %d: %w", i, err)
		}
		a.workers = append(a.workers, w)
	}
	return a, nil
}

// WorkerCount reports the current pool size (for C10's /health).
func (a *Adapter) WorkerCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.workers)
}

// nextWorker picks a worker round-robin, skipping dead ones and replacing
// them in place so the pool self-heals.
func (a *Adapter) nextWorker() (*Worker, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.workers) == 0 {
		return nil, fmt.Errorf("no workers available")
	}
	for i := 0; i < len(a.workers); i++ {
		idx := int(atomic.AddUint64(&a.next, 1)) % len(a.workers)
		w := a.workers[idx]
		if w.Dead() {
			replacement, err := NewWorker(a.cfg, a.logger)
			if err != nil {
				a.logger.Error("failed to replace dead worker", zap.Error(err))
				continue
			}
			a.workers[idx] = replacement
			return replacement, nil
		}
		return w, nil
	}
	return nil, fmt.Errorf("no live workers available")
}

// CreateRouter assigns a fresh router to the next worker in rotation. Used
// both for a meeting's main router and for breakout routers.
func (a *Adapter) CreateRouter() (*Router, error) {
	w, err := a.nextWorker()
	if err != nil {
		return nil, err
	}
	return w.CreateRouter(), nil
}
