// Package relay mirrors operator prompts and agent replies to an external
// endpoint on a best-effort basis.
//
// A Relay owns one FIFO queue and one worker goroutine, so at most one
// message is in flight and messages arrive in the order they were sent.
// Delivery failures are logged and never reach the caller. Drain blocks
// until everything queued before it has been attempted.
package relay

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Drain after Close.
var ErrClosed = errors.New("relay closed")

// Default settings applied by New for zero option values.
const (
	DefaultQueueSize = 64
	DefaultTimeout   = 10 * time.Second
)

// Message is the payload delivered to the transport.
type Message struct {
	Kind  string    `json:"kind"`
	Text  string    `json:"text"`
	RunID string    `json:"run_id,omitempty"`
	Time  time.Time `json:"time"`
}

// Transport delivers a single message. Deliver is never called
// concurrently.
type Transport interface {
	Deliver(ctx context.Context, msg Message) error
	Close() error
}

// Options configures a Relay.
type Options struct {
	RunID     string
	QueueSize int
	// Timeout bounds each delivery attempt.
	Timeout time.Duration
	Now     func() time.Time
}

type relayLogger interface {
	Warn(msg string, kv ...interface{})
}

// item is either a message or a drain marker.
type item struct {
	msg     Message
	flushed chan struct{}
}

// Relay is a best-effort, ordered sender. It is safe for concurrent use.
type Relay struct {
	transport Transport
	opts      Options
	logger    relayLogger

	mu     sync.RWMutex
	closed bool
	queue  chan item
	done   chan struct{}
}

// New starts a relay delivering through t. logger may be nil.
func New(t Transport, opts Options, logger relayLogger) *Relay {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := &Relay{
		transport: t,
		opts:      opts,
		logger:    logger,
		queue:     make(chan item, opts.QueueSize),
		done:      make(chan struct{}),
	}
	go r.run()
	return r
}

// Send queues text for delivery without blocking. When the queue is full or
// the relay is closed the message is dropped with a warning.
func (r *Relay) Send(kind, text string) {
	msg := Message{Kind: kind, Text: text, RunID: r.opts.RunID, Time: r.opts.Now()}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.warn("relay closed, dropping message", "kind", kind)
		return
	}
	select {
	case r.queue <- item{msg: msg}:
	default:
		r.warn("relay queue full, dropping message", "kind", kind, "queue_size", r.opts.QueueSize)
	}
}

// Drain blocks until every message queued before the call has been attempted
// or ctx is done.
func (r *Relay) Drain(ctx context.Context) error {
	marker := item{flushed: make(chan struct{})}

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrClosed
	}
	select {
	case r.queue <- marker:
	case <-ctx.Done():
		r.mu.RUnlock()
		return ctx.Err()
	}
	r.mu.RUnlock()

	select {
	case <-marker.flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages, waits for queued ones to be attempted and
// closes the transport. It is safe to call more than once.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
	return r.transport.Close()
}

func (r *Relay) run() {
	defer close(r.done)
	for it := range r.queue {
		if it.flushed != nil {
			close(it.flushed)
			continue
		}
		r.deliver(it.msg)
	}
}

func (r *Relay) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.Timeout)
	defer cancel()
	if err := r.transport.Deliver(ctx, msg); err != nil {
		r.warn("relay send failed", "kind", msg.Kind, "error", err)
	}
}

func (r *Relay) warn(msg string, kv ...interface{}) {
	if r.logger != nil {
		r.logger.Warn(msg, kv...)
	}
}
