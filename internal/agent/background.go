package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the status of a background task.
type TaskStatus string

const (
	TaskRunning  TaskStatus = "running"
	TaskComplete TaskStatus = "complete"
	TaskFailed   TaskStatus = "failed"
)

// finishedRetention is how long finished tasks stay visible to List.
const finishedRetention = 10 * time.Minute

// BackgroundTask is one event being processed off the request path.
type BackgroundTask struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    TaskStatus `json:"status"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	DoneAt    time.Time  `json:"done_at,omitempty"`
}

// BackgroundExecutor runs tasks in their own goroutines, logs their outcome
// and lets shutdown wait for the ones still in flight.
type BackgroundExecutor struct {
	mu     sync.RWMutex
	tasks  map[string]*BackgroundTask
	wg     sync.WaitGroup
	logger *slog.Logger
}

func NewBackgroundExecutor(logger *slog.Logger) *BackgroundExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackgroundExecutor{
		tasks:  make(map[string]*BackgroundTask),
		logger: logger,
	}
}

// Submit starts fn in the background and returns the task ID. fn runs with
// ctx as given; callers detach it from request lifetimes themselves.
func (be *BackgroundExecutor) Submit(ctx context.Context, name string, fn func(ctx context.Context) error) string {
	id := uuid.NewString()
	task := &BackgroundTask{
		ID:        id,
		Name:      name,
		Status:    TaskRunning,
		StartedAt: time.Now(),
	}

	be.mu.Lock()
	be.pruneLocked(finishedRetention)
	be.tasks[id] = task
	be.mu.Unlock()

	be.logger.Debug("background task submitted", "task_id", id, "name", name)

	be.wg.Add(1)
	go func() {
		defer be.wg.Done()

		err := be.run(ctx, fn)

		be.mu.Lock()
		task.DoneAt = time.Now()
		if err != nil {
			task.Status = TaskFailed
			task.Error = err.Error()
		} else {
			task.Status = TaskComplete
		}
		elapsed := task.DoneAt.Sub(task.StartedAt)
		be.mu.Unlock()

		if err != nil {
			be.logger.Error("background task failed", "task_id", id, "name", name, "err", err)
			return
		}
		be.logger.Debug("background task completed", "task_id", id, "name", name, "elapsed", elapsed)
	}()

	return id
}

func (be *BackgroundExecutor) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Wait blocks until every submitted task has finished or ctx is done.
func (be *BackgroundExecutor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		be.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %d background tasks: %w", len(be.ListActive()), ctx.Err())
	}
}

// Get returns a copy of the task's current state.
func (be *BackgroundExecutor) Get(id string) (*BackgroundTask, bool) {
	be.mu.RLock()
	defer be.mu.RUnlock()
	task, ok := be.tasks[id]
	if !ok {
		return nil, false
	}
	cp := *task
	return &cp, true
}

// List returns all known tasks.
func (be *BackgroundExecutor) List() []BackgroundTask {
	be.mu.RLock()
	defer be.mu.RUnlock()
	result := make([]BackgroundTask, 0, len(be.tasks))
	for _, t := range be.tasks {
		result = append(result, *t)
	}
	return result
}

// ListActive returns tasks that are still running.
func (be *BackgroundExecutor) ListActive() []BackgroundTask {
	be.mu.RLock()
	defer be.mu.RUnlock()
	var result []BackgroundTask
	for _, t := range be.tasks {
		if t.Status == TaskRunning {
			result = append(result, *t)
		}
	}
	return result
}

// Clean removes finished tasks older than maxAge and returns how many went.
func (be *BackgroundExecutor) Clean(maxAge time.Duration) int {
	be.mu.Lock()
	defer be.mu.Unlock()
	return be.pruneLocked(maxAge)
}

func (be *BackgroundExecutor) pruneLocked(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, t := range be.tasks {
		if t.Status != TaskRunning && !t.DoneAt.After(cutoff) {
			delete(be.tasks, id)
			removed++
		}
	}
	return removed
}
