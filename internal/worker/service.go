package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CrisisSweeper re-evaluates topic crisis flags
type CrisisSweeper interface {
	EvaluateAll(ctx context.Context) (int, error)
}

// MetricsSweeper rewrites cached clipping metrics
type MetricsSweeper interface {
	RecomputeAll(ctx context.Context) (int, error)
}

// WorkerService runs the periodic maintenance sweep. Crisis flags are
// evaluated before metrics so clippings pick up fresh topic state.
type WorkerService struct {
	topics    CrisisSweeper
	clippings MetricsSweeper
	interval  time.Duration

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex

	lastRun      time.Time
	lastErr      error
	runs         int
	flagsChanged int
	recomputed   int
}

// NewWorkerService creates a new worker service
func NewWorkerService(topics CrisisSweeper, clippings MetricsSweeper, interval time.Duration) *WorkerService {
	return &WorkerService{
		topics:    topics,
		clippings: clippings,
		interval:  interval,
	}
}

// Start launches the sweep loop. It is a no-op when already running or
// when the interval is not positive.
func (ws *WorkerService) Start() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.running || ws.interval <= 0 {
		return nil
	}

	slog.Info("starting maintenance worker", "interval", ws.interval)

	ctx, cancel := context.WithCancel(context.Background())
	ws.cancel = cancel

	ws.wg.Add(1)
	go func() {
		defer ws.wg.Done()
		ws.runPeriodicTasks(ctx)
	}()

	ws.running = true
	return nil
}

// Stop stops the sweep loop and waits for an in-flight sweep to finish
func (ws *WorkerService) Stop() {
	ws.mu.Lock()
	if !ws.running {
		ws.mu.Unlock()
		return
	}
	ws.cancel()
	ws.running = false
	ws.mu.Unlock()

	ws.wg.Wait()
	slog.Info("maintenance worker stopped")
}

// IsRunning returns whether the worker service is currently running
func (ws *WorkerService) IsRunning() bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.running
}

func (ws *WorkerService) runPeriodicTasks(ctx context.Context) {
	ticker := time.NewTicker(ws.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ws.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep: crisis evaluation, then metrics
func (ws *WorkerService) RunOnce(ctx context.Context) error {
	start := time.Now()

	recomputed := 0
	changed, err := ws.topics.EvaluateAll(ctx)
	if err == nil {
		recomputed, err = ws.clippings.RecomputeAll(ctx)
	}
	ws.record(start, changed, recomputed, err)

	if err != nil {
		slog.Error("maintenance sweep failed", "error", err)
		return err
	}
	slog.Info("maintenance sweep completed", "flags_changed", changed, "recomputed", recomputed, "duration", time.Since(start))
	return nil
}

func (ws *WorkerService) record(at time.Time, changed, recomputed int, err error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.lastRun = at
	ws.lastErr = err
	ws.runs++
	ws.flagsChanged += changed
	ws.recomputed += recomputed
}

// GetStatus returns the current status of the worker service
func (ws *WorkerService) GetStatus() map[string]interface{} {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	status := map[string]interface{}{
		"running":       ws.running,
		"interval":      ws.interval.String(),
		"runs":          ws.runs,
		"flags_changed": ws.flagsChanged,
		"recomputed":    ws.recomputed,
	}
	if !ws.lastRun.IsZero() {
		status["last_run"] = ws.lastRun.UTC().Format(time.RFC3339)
	}
	if ws.lastErr != nil {
		status["last_error"] = ws.lastErr.Error()
	}
	return status
}
