// Package dispatch decouples update delivery from update processing.
// HTTP handlers enqueue and return immediately; a small worker pool
// runs the pipeline. Single-instance only: the buffer lives in memory
// and drains on shutdown.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-bot/internal/telegram"
)

// Handler processes one update end to end.
type Handler func(ctx context.Context, upd telegram.Update)

// Queue is an in-memory update queue safe for concurrent use.
type Queue struct {
	updates   chan telegram.Update
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	workers   int
	log       zerolog.Logger
}

// NewQueue creates a queue. bufferSize determines how many updates can
// wait before HandleUpdate blocks; workers bounds concurrent pipeline
// runs.
func NewQueue(bufferSize, workers int, log zerolog.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		updates:   make(chan telegram.Update, bufferSize),
		closeChan: make(chan struct{}),
		workers:   workers,
		log:       log,
	}
}

// HandleUpdate enqueues one update. It blocks only when the buffer is
// full; on cancellation or shutdown the update is dropped with a log
// line, since Telegram will not get a retryable error out of us.
func (q *Queue) HandleUpdate(ctx context.Context, upd telegram.Update) {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		q.log.Warn().Int64("update_id", upd.UpdateID).Msg("queue closed, dropping update")
		return
	}

	select {
	case q.updates <- upd:
	case <-ctx.Done():
		q.log.Warn().Int64("update_id", upd.UpdateID).Msg("enqueue canceled, dropping update")
	case <-q.closeChan:
		q.log.Warn().Int64("update_id", upd.UpdateID).Msg("queue closed, dropping update")
	}
}

// Start launches the worker pool. Workers run until ctx is canceled or
// Stop is called.
func (q *Queue) Start(ctx context.Context, handler Handler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("dispatch: queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			// Drain what is already buffered before exiting.
			for {
				select {
				case upd := <-q.updates:
					handler(ctx, upd)
				default:
					return
				}
			}
		case upd := <-q.updates:
			handler(ctx, upd)
		}
	}
}

// Stop closes the queue and waits for in-flight updates to finish, up
// to ctx's deadline.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
