package session

import (
	"fmt"
	"sync"
)

// eventQueue is an unbounded FIFO of callbacks drained by one goroutine.
// Posting never blocks, so an adapter that emits synchronously from inside
// a callback cannot deadlock the loop.
type eventQueue struct {
	mu      sync.Mutex
	items   []func()
	running bool
	stopped bool
	wake    chan struct{}
	done    chan struct{}
	onPanic func(recovered any)
}

func newEventQueue(onPanic func(any)) *eventQueue {
	return &eventQueue{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		onPanic: onPanic,
	}
}

// start launches the drain goroutine. It returns false if already started.
func (q *eventQueue) start() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running || q.stopped {
		return false
	}
	q.running = true
	go q.run()
	return true
}

// post appends fn. It returns false when the queue is not accepting work.
func (q *eventQueue) post(fn func()) bool {
	q.mu.Lock()
	if !q.running || q.stopped {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// call posts fn and waits until it has run.
func (q *eventQueue) call(fn func()) bool {
	finished := make(chan struct{})
	if !q.post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	<-finished
	return true
}

// stop rejects new work, drains what is queued and waits for the goroutine
// to exit.
func (q *eventQueue) stop() {
	q.mu.Lock()
	wasRunning := q.running
	q.stopped = true
	q.mu.Unlock()

	if !wasRunning {
		return
	}
	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.done
}

func (q *eventQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			stopped := q.stopped
			q.mu.Unlock()
			if stopped {
				return
			}
			<-q.wake
			continue
		}
		fn := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		q.invoke(fn)
	}
}

func (q *eventQueue) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil && q.onPanic != nil {
			q.onPanic(r)
		}
	}()
	fn()
}

// panicError formats a recovered value.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r) //nolint:err113 // recovered value
}
