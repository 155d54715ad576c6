package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Task is a function that represents a background job
type Task func(ctx context.Context) error

type WorkerPool struct {
	taskQueue chan Task
	wg        sync.WaitGroup
	isClosing atomic.Bool
	log       zerolog.Logger
}

func NewWorkerPool(size int, log zerolog.Logger) *WorkerPool {
	wp := &WorkerPool{
		taskQueue: make(chan Task, 1000), // Buffer for 1000 pending tasks
		log:       log,
	}

	for i := 0; i < size; i++ {
		wp.wg.Add(1)
		go wp.startWorker()
	}

	return wp
}

func (wp *WorkerPool) startWorker() {
	defer wp.wg.Done()
	for task := range wp.taskQueue {
		if err := task(context.Background()); err != nil {
			wp.log.Warn().Err(err).Msg("worker task failed")
		}
	}
}

func (wp *WorkerPool) Submit(t Task) {
	if wp.isClosing.Load() {
		wp.log.Warn().Msg("task submitted during shutdown, dropping")
		return
	}
	select {
	case wp.taskQueue <- t:
	default:
		wp.log.Warn().Msg("task queue full, dropping task")
	}
}

// Shutdown closes the queue and waits for workers to finish
func (wp *WorkerPool) Shutdown() {
	wp.isClosing.Store(true)
	close(wp.taskQueue)
	wp.wg.Wait()
}
