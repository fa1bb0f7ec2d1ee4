// Package eventlog is the append-only record of what happened during a run.
// Readers always observe a consistent prefix; durable sinks are fed in append
// order by a single writer goroutine.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/emsdispatch/core/logger"
	"github.com/kilianp07/emsdispatch/internal/eventbus"
)

// subscriberBuffer is how far a subscriber may lag before missing events.
const subscriberBuffer = 1024

// ErrClosed is returned by Append once the log was closed.
var ErrClosed = errors.New("event log closed")

// Sink persists or forwards events.
type Sink interface {
	Write(ctx context.Context, ev Event) error
	Close() error
}

// Log is an in-memory append-only event sequence.
type Log struct {
	mu     sync.RWMutex
	events []Event
	closed bool

	bus    *eventbus.Bus[Event]
	sinks  []Sink
	notify chan struct{}
	done   chan struct{}
	// flushed is only touched by the writer goroutine.
	flushed int
	log     logger.Logger
}

// New creates a log forwarding to sinks. The writer goroutine runs until Close.
func New(log logger.Logger, sinks ...Sink) *Log {
	l := &Log{
		bus:    eventbus.NewWithBuffer[Event](subscriberBuffer),
		sinks:  sinks,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		log:    log,
	}
	go l.run()
	return l
}

// Append stores ev with the next sequence number and returns the stored copy.
func (l *Log) Append(ev Event) (Event, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return Event{}, ErrClosed
	}
	ev.Seq = uint64(len(l.events) + 1)
	l.events = append(l.events, ev)
	select {
	case l.notify <- struct{}{}:
	default:
	}
	l.bus.Publish(ev)
	l.mu.Unlock()
	return ev, nil
}

// Snapshot returns a copy of every event appended so far.
func (l *Log) Snapshot() []Event {
	return l.Since(0)
}

// Since returns the events with a sequence number greater than seq.
func (l *Log) Since(seq uint64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if seq >= uint64(len(l.events)) {
		return []Event{}
	}
	out := make([]Event, len(l.events)-int(seq))
	copy(out, l.events[seq:])
	return out
}

// Len returns the number of events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Subscribe returns a channel receiving events appended from now on. Delivery
// is best effort: slow subscribers miss events rather than blocking writers.
func (l *Log) Subscribe() <-chan Event { return l.bus.Subscribe() }

// Unsubscribe releases a subscription.
func (l *Log) Unsubscribe(ch <-chan Event) { l.bus.Unsubscribe(ch) }

// Close stops accepting events, waits until every appended event reached the
// sinks or ctx expires, then closes the sinks.
func (l *Log) Close(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.notify)
	l.mu.Unlock()

	var errs []error
	select {
	case <-l.done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("flush event log: %w", ctx.Err()))
	}
	for _, s := range l.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	l.bus.Close()
	return errors.Join(errs...)
}

func (l *Log) run() {
	defer close(l.done)
	for {
		_, ok := <-l.notify
		l.flush()
		if !ok {
			return
		}
	}
}

func (l *Log) flush() {
	l.mu.RLock()
	pending := make([]Event, len(l.events)-l.flushed)
	copy(pending, l.events[l.flushed:])
	l.mu.RUnlock()
	for _, ev := range pending {
		for _, s := range l.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Write(ctx, ev); err != nil && l.log != nil {
				l.log.Errorf("event sink %T: %v", s, err)
			}
			cancel()
		}
	}
	l.flushed += len(pending)
}
