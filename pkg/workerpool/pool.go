// Package workerpool runs fire-and-forget tasks on a fixed set of goroutines.
package workerpool

import (
	"sync"

	"github.com/rs/zerolog/log"
)

type Task func()

type Pool struct {
	name      string
	taskQueue chan Task
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New starts workers goroutines reading from a queue of queueSize tasks.
func New(name string, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &Pool{
		name:      name,
		taskQueue: make(chan Task, queueSize),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	log.Info().Str("pool", name).Int("workers", workers).Int("queue_size", queueSize).Msg("worker pool started")
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for task := range p.taskQueue {
		p.run(id, task)
	}
}

func (p *Pool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("pool", p.name).Int("worker_id", id).Interface("panic", r).Msg("task panic recovered")
		}
	}()
	task()
}

// TrySubmit enqueues task without blocking. It returns false when the queue
// is full or the pool is shut down.
func (p *Pool) TrySubmit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.taskQueue <- task:
		return true
	default:
		return false
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.taskQueue)
	p.mu.Unlock()

	p.wg.Wait()
	log.Info().Str("pool", p.name).Msg("worker pool drained")
}
