package world

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrLoopStopped is returned when scheduling onto a loop that has exited.
var ErrLoopStopped = errors.New("world loop stopped")

// Loop is the authoritative world update loop. Tasks run one at a time, in
// submission order, on the goroutine running Run. All player and world mutation
// happens inside loop tasks.
type Loop struct {
	tasks   chan func()
	stopped chan struct{}
	once    sync.Once
	running atomic.Bool
	logger  *zap.Logger
}

// NewLoop creates a loop with a task queue of queueSize
func NewLoop(queueSize int, logger *zap.Logger) *Loop {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Loop{
		tasks:   make(chan func(), queueSize),
		stopped: make(chan struct{}),
		logger:  logger,
	}
}

// Run drains tasks until ctx is cancelled. Queued tasks not yet started are dropped.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("world loop already running")
	}
	defer l.once.Do(func() { close(l.stopped) })

	l.logger.Info("world loop started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("world loop stopped")
			return nil
		case task := <-l.tasks:
			l.run(task)
		}
	}
}

func (l *Loop) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("world loop task panicked", zap.Any("panic", r))
		}
	}()
	task()
}

// Submit queues task. It blocks while the queue is full, so code already running
// on the loop should call directly instead of submitting.
func (l *Loop) Submit(task func()) error {
	select {
	case <-l.stopped:
		return ErrLoopStopped
	default:
	}

	select {
	case l.tasks <- task:
		return nil
	case <-l.stopped:
		return ErrLoopStopped
	}
}

// Do runs task on the loop and waits for it to complete
func (l *Loop) Do(ctx context.Context, task func()) error {
	done := make(chan struct{})
	if err := l.Submit(func() {
		defer close(done)
		task()
	}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrLoopStopped
		}
	}
}

// After submits task once d has elapsed. The returned function cancels the task
// if the timer has not fired yet.
func (l *Loop) After(d time.Duration, task func()) (cancel func() bool) {
	timer := time.AfterFunc(d, func() {
		if err := l.Submit(task); err != nil {
			l.logger.Debug("dropping delayed task", zap.Error(err))
		}
	})
	return timer.Stop
}

// Done is closed once Run has returned
func (l *Loop) Done() <-chan struct{} {
	return l.stopped
}
