// Package queue implements the outbound request queue: a single goroutine
// draining a channel of outbound closures, so the bounded handler worker
// pool that calls BotClient.SendMessage never blocks on the Wire
// platform's response, and so the *outbound.Client's connection pool and
// TLS session cache are owned by exactly one goroutine.
package queue

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dsonbaker/wirebot/internal/outbound"
)

// Task is a unit of outbound work: send a message, fetch prekeys, upload
// an asset. Queue never inspects the closure; it only calls it and logs
// the result.
type Task func(ctx context.Context, client *outbound.Client) error

// Queue is a single-consumer, multi-producer channel of Tasks. Failures
// are logged and swallowed - a bad task never halts the queue or takes
// down the process.
type Queue struct {
	tasks  chan Task
	client *outbound.Client
	log    zerolog.Logger
	done   chan struct{}
}

// New starts the consumer goroutine immediately. Callers push work with
// Enqueue and call Close once at shutdown (Service.Shutdown does so).
func New(client *outbound.Client, log zerolog.Logger, bufferSize int) *Queue {
	q := &Queue{
		tasks:  make(chan Task, bufferSize),
		client: client,
		log:    log,
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for task := range q.tasks {
		if err := task(context.Background(), q.client); err != nil {
			q.log.Error().Err(err).Msg("outbound task failed")
		}
	}
}

// Enqueue submits task for delivery. It never blocks the caller on
// network I/O - only on the channel buffer filling, which the caller
// sizes generously via bufferSize.
func (q *Queue) Enqueue(task Task) {
	q.tasks <- task
}

// Close stops accepting new tasks and waits for the in-flight backlog to
// drain.
func (q *Queue) Close() {
	close(q.tasks)
	<-q.done
}
