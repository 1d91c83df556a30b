// Package worker provides an asynchronous worker pool for persisting
// completed conversation turns using the provided conversation.Driver.
//
// The pool decouples storage from the streaming path so that rendering a
// reply never waits on disk.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/askstream/pkg/conversation"
	"github.com/papercomputeco/askstream/pkg/eventstream"
)

var (
	defaultNumWorkers   uint = 2
	defaultJobQueueSize uint = 64
)

// Job is a unit of work for the worker pool to execute against.
// Messages are stored at consecutive positions starting at Seq.
type Job struct {
	Thread   string
	Seq      int
	Messages []conversation.Message
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting messages.
	Driver conversation.Driver

	// Publisher, when set, receives an event for every stored turn.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 64).
	QueueSize uint

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Pool processes storage jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, fmt.Errorf("worker pool requires a driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.logger.Error("job not queued, pool closed", "thread", job.Thread)
		return false
	}

	msgs := make([]conversation.Message, len(job.Messages))
	for i, m := range job.Messages {
		msgs[i] = m.Clone()
	}
	job.Messages = msgs

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"thread", job.Thread,
			"messages", len(job.Messages),
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"thread", job.Thread,
			"messages", len(job.Messages),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("storage worker stopped", "worker_id", id)
}

// processJob stores every message of the job in order.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	for i, msg := range job.Messages {
		if err := p.config.Driver.Put(ctx, job.Thread, job.Seq+i, msg); err != nil {
			p.logger.Error("async conversation storage failed",
				"thread", job.Thread,
				"message_id", msg.ID,
				"error", err,
			)
			return
		}

		p.logger.Debug("stored message",
			"thread", job.Thread,
			"message_id", msg.ID,
			"role", string(msg.Role),
			"seq", job.Seq+i,
		)
	}

	p.logger.Info("conversation turn stored",
		"thread", job.Thread,
		"messages", len(job.Messages),
	)

	if p.config.Publisher == nil {
		return
	}
	event := eventstream.NewTurnStoredEvent(job.Thread, job.Seq, job.Messages)
	if err := p.config.Publisher.PublishTurn(ctx, event); err != nil {
		p.logger.Error("publishing stored turn failed",
			"thread", job.Thread,
			"event_id", event.EventID,
			"error", err,
		)
	}
}
