package eventloop

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Loop is a single-threaded cooperative task queue. Every task posted to it
// runs on the goroutine that drives the loop (Run or Drain), one at a time and
// in posting order. State owned by loop tasks needs no further locking.
type Loop struct {
	mutex  sync.Mutex
	queue  []func()
	wake   chan struct{}
	logger *logrus.Logger
}

// New creates an idle loop
func New(logger *logrus.Logger) *Loop {
	if logger == nil {
		logger = logrus.New()
	}
	return &Loop{
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
}

// Post enqueues fn. It never blocks, so it is safe to call from loop tasks
// and from worker goroutines alike.
func (l *Loop) Post(fn func()) {
	l.mutex.Lock()
	l.queue = append(l.queue, fn)
	l.mutex.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run drives the loop until ctx is cancelled
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.Drain()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Drain runs queued tasks on the calling goroutine until the queue is empty
// and returns how many ran. Tasks posted while draining are run as well.
func (l *Loop) Drain() int {
	ran := 0
	for {
		l.mutex.Lock()
		if len(l.queue) == 0 {
			l.mutex.Unlock()
			return ran
		}
		batch := l.queue
		l.queue = nil
		l.mutex.Unlock()

		for _, fn := range batch {
			l.run(fn)
			ran++
		}
	}
}

// Call posts fn and waits for it to finish. It must not be called from a
// loop task, or it deadlocks.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes one task, keeping the loop alive if it panics
func (l *Loop) run(fn func()) {
	defer func() {
		if err := recover(); err != nil {
			l.logger.WithField("panic", err).Error("Event loop task panicked")
		}
	}()
	fn()
}
