package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Broker is the subset of the Redis client the dispatcher needs. Kept small
// so tests can run against an in-memory fake.
type Broker interface {
	AcquireTaskLock(queueName, taskID string, ttl time.Duration) (bool, error)
	ReleaseTaskLock(queueName, taskID string) error
	PushTask(queueName string, payload []byte) error
	PopTask(queueName string, timeout time.Duration) ([]byte, error)
	ScheduleTask(queueName string, payload []byte, readyAt time.Time) error
	PromoteDueTasks(queueName string, now time.Time) (int, error)
}

// HandlerFunc executes one attempt of a task.
type HandlerFunc func(ctx context.Context, task *Task) error

// Definition binds a task type to its handler and retry policy. OnExhausted
// runs once after the final attempt fails; it must not retry.
type Definition struct {
	Policy      Policy
	Handle      HandlerFunc
	OnExhausted func(ctx context.Context, task *Task, cause error)
}

// lockTTL caps how long an enqueue idempotency lock can outlive a stuck
// task before the same ID becomes enqueueable again.
const lockTTL = time.Hour

const popTimeout = 2 * time.Second

// Dispatcher runs a worker pool over a named Redis-backed queue with
// delayed retries and per-task idempotency.
type Dispatcher struct {
	broker    Broker
	queueName string
	workers   int
	logger    *slog.Logger

	mu          sync.RWMutex
	definitions map[string]Definition

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewDispatcher creates a dispatcher over the named queue.
func NewDispatcher(broker Broker, queueName string, workers int, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		broker:      broker,
		queueName:   queueName,
		workers:     workers,
		logger:      logger.With("component", "dispatcher", "queue", queueName),
		definitions: make(map[string]Definition),
	}
}

// Register binds a task type. Must be called before Start.
func (d *Dispatcher) Register(taskType string, def Definition) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.definitions[taskType] = def
}

// Enqueue queues a task for execution. Re-enqueuing the same type+ID while
// it is still pending or running is a no-op.
func (d *Dispatcher) Enqueue(taskType, id string, payload interface{}) error {
	d.mu.RLock()
	_, known := d.definitions[taskType]
	d.mu.RUnlock()
	if !known {
		return fmt.Errorf("unknown task type %q", taskType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}
	task := Task{
		ID:         id,
		Type:       taskType,
		Payload:    raw,
		Attempt:    1,
		EnqueuedAt: time.Now(),
	}

	acquired, err := d.broker.AcquireTaskLock(d.queueName, task.LockKey(), lockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		d.logger.Debug("Task already enqueued, skipping", "type", taskType, "id", id)
		return nil
	}

	envelope, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task envelope: %w", err)
	}
	if err := d.broker.PushTask(d.queueName, envelope); err != nil {
		// Give the lock back so a later enqueue can try again.
		_ = d.broker.ReleaseTaskLock(d.queueName, task.LockKey())
		return err
	}
	return nil
}

// Start launches the worker pool. Workers run until Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.workerLoop(ctx, i)
	}
	d.logger.Info("Dispatcher started", "workers", d.workers)
}

// Stop cancels the workers and waits for in-flight tasks. Tasks are never
// cancelled mid-attempt; a running attempt finishes before the worker exits.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.logger.Info("Dispatcher stopped")
}

func (d *Dispatcher) workerLoop(ctx context.Context, worker int) {
	defer d.wg.Done()
	logger := d.logger.With("worker", worker)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, err := d.broker.PromoteDueTasks(d.queueName, time.Now()); err != nil {
			logger.Error("Failed to promote delayed tasks", slog.Any("error", err))
		}

		envelope, err := d.broker.PopTask(d.queueName, popTimeout)
		if err != nil {
			logger.Error("Failed to pop task", slog.Any("error", err))
			time.Sleep(time.Second)
			continue
		}
		if envelope == nil {
			continue
		}

		var task Task
		if err := json.Unmarshal(envelope, &task); err != nil {
			logger.Error("Dropping malformed task envelope", slog.Any("error", err))
			continue
		}
		d.execute(ctx, logger, &task)
	}
}

// execute runs one attempt and applies the retry policy. A task that begins
// running always finishes its attempt: completion, reschedule, or terminal
// record.
func (d *Dispatcher) execute(ctx context.Context, logger *slog.Logger, task *Task) {
	d.mu.RLock()
	def, ok := d.definitions[task.Type]
	d.mu.RUnlock()
	if !ok {
		logger.Error("No handler registered for task", "type", task.Type, "id", task.ID)
		_ = d.broker.ReleaseTaskLock(d.queueName, task.LockKey())
		return
	}

	err := def.Handle(ctx, task)
	if err == nil {
		if lockErr := d.broker.ReleaseTaskLock(d.queueName, task.LockKey()); lockErr != nil {
			logger.Warn("Failed to release task lock", "id", task.ID, slog.Any("error", lockErr))
		}
		return
	}

	if task.Attempt >= def.Policy.MaxAttempts {
		logger.Error("Task exhausted all attempts",
			"type", task.Type, "id", task.ID, "attempts", task.Attempt, slog.Any("error", err))
		if def.OnExhausted != nil {
			def.OnExhausted(ctx, task, err)
		}
		_ = d.broker.ReleaseTaskLock(d.queueName, task.LockKey())
		return
	}

	delay := def.Policy.Delay(task.Attempt)
	task.Attempt++
	envelope, marshalErr := json.Marshal(task)
	if marshalErr != nil {
		logger.Error("Failed to marshal retry envelope", "id", task.ID, slog.Any("error", marshalErr))
		_ = d.broker.ReleaseTaskLock(d.queueName, task.LockKey())
		return
	}
	logger.Warn("Task failed, scheduling retry",
		"type", task.Type, "id", task.ID, "attempt", task.Attempt, "delay", delay.String(), slog.Any("error", err))
	if schedErr := d.broker.ScheduleTask(d.queueName, envelope, time.Now().Add(delay)); schedErr != nil {
		logger.Error("Failed to schedule retry", "id", task.ID, slog.Any("error", schedErr))
		_ = d.broker.ReleaseTaskLock(d.queueName, task.LockKey())
	}
}
