package data

import (
	"context"
	"sync"
	"time"

	dberrors "Switchyard/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	asyncWriterBuffer  = 1000
	asyncWriteTimeout  = 5 * time.Second
	asyncRetryBackoff  = 50 * time.Millisecond
	asyncWriterRetries = 1
)

// asyncWriter drains a buffered channel into write on one goroutine. Enqueue
// never blocks; items are dropped when the buffer is full or after Close.
type asyncWriter[T any] struct {
	name   string
	ch     chan T
	write  func(context.Context, T) error
	logger *log.Helper

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func newAsyncWriter[T any](name string, buffer int, write func(context.Context, T) error, logger *log.Helper) *asyncWriter[T] {
	w := &asyncWriter[T]{
		name:   name,
		ch:     make(chan T, buffer),
		write:  write,
		logger: logger,
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

// enqueue reports whether the item was queued.
func (w *asyncWriter[T]) enqueue(item T) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return false
	}

	select {
	case w.ch <- item:
		return true
	default:
		return false
	}
}

func (w *asyncWriter[T]) run() {
	defer close(w.done)

	for item := range w.ch {
		w.writeOne(item)
	}
}

func (w *asyncWriter[T]) writeOne(item T) {
	for attempt := 0; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), asyncWriteTimeout)
		err := w.write(ctx, item)
		cancel()
		if err == nil {
			return
		}

		dbErr := dberrors.ClassifyDBError(err)
		if dbErr.Retryable() && attempt < asyncWriterRetries {
			time.Sleep(asyncRetryBackoff)
			continue
		}

		w.logger.Errorw("msg", "async write failed, dropping row",
			"writer", w.name,
			"error_type", dbErr.Type.String(),
			"error", err)
		return
	}
}

// Close stops accepting items, drains the queue and waits for the writer goroutine.
func (w *asyncWriter[T]) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	close(w.ch)
	w.mu.Unlock()

	<-w.done
}
