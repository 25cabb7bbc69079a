// Package host turns named events into engine dispatches.
//
// A host plays the part of the surrounding tool that fires events: for
// every emitted event it queues one trigger per subscribed priority and
// hands each trigger to the engine in order. Triggers may be emitted from
// any goroutine; dispatches always run on the goroutine calling Run or
// Serve.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Dispatcher is the part of the engine a host drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, event string) error
	Subscriptions() map[string][]int64
}

// Host queues triggers and runs them against a Dispatcher.
type Host struct {
	queue      *triggerQueue
	dispatcher Dispatcher
	keepGoing  bool
	onDispatch func(Trigger, error)
}

// Option configures a Host.
type Option func(*Host)

// WithKeepGoing continues with the remaining triggers after a failed
// dispatch. Run then reports every failure joined.
func WithKeepGoing(keepGoing bool) Option {
	return func(h *Host) { h.keepGoing = keepGoing }
}

// WithDispatchHook calls fn after every dispatch with its outcome.
func WithDispatchHook(fn func(Trigger, error)) Option {
	return func(h *Host) { h.onDispatch = fn }
}

// New creates a host for d.
func New(d Dispatcher, opts ...Option) *Host {
	h := &Host{
		queue:      newTriggerQueue(),
		dispatcher: d,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Emit queues one trigger per subscribed priority of event and returns
// how many were queued. Events nobody subscribed to queue nothing.
func (h *Host) Emit(event string) int {
	priorities := h.dispatcher.Subscriptions()[event]
	if len(priorities) == 0 {
		slog.Debug("event has no subscribers", "event", event)
		return 0
	}

	n := 0
	for _, p := range priorities {
		if !h.queue.Enqueue(Trigger{Event: event, Priority: p}) {
			slog.Warn("host closed, dropping trigger", "event", event, "priority", p)
			break
		}
		n++
	}
	return n
}

// Len returns the number of queued triggers.
func (h *Host) Len() int {
	return h.queue.Len()
}

// Close stops accepting triggers. Queued triggers can still be run.
func (h *Host) Close() {
	h.queue.Close()
}

// Run dispatches queued triggers until the queue is empty.
//
// Without keep-going the first failed dispatch stops the run and the
// remaining triggers stay queued.
func (h *Host) Run(ctx context.Context) error {
	var errs []error
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		t, ok := h.queue.TryDequeue()
		if !ok {
			return errors.Join(errs...)
		}
		if err := h.dispatch(ctx, t); err != nil {
			if !h.keepGoing {
				return err
			}
			errs = append(errs, err)
		}
	}
}

// Serve dispatches triggers as they arrive until Close has been called and
// the queue is drained, or ctx is done.
func (h *Host) Serve(ctx context.Context) error {
	var errs []error
	for {
		if err := h.Run(ctx); err != nil {
			if !h.keepGoing || ctx.Err() != nil {
				return err
			}
			errs = append(errs, err)
		}
		if h.queue.Closed() && h.queue.Len() == 0 {
			return errors.Join(errs...)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.queue.Wait():
		}
	}
}

func (h *Host) dispatch(ctx context.Context, t Trigger) error {
	slog.Debug("dispatching trigger", "event", t.Event, "priority", t.Priority)

	err := h.dispatcher.Dispatch(ctx, t.Event)
	if h.onDispatch != nil {
		h.onDispatch(t, err)
	}
	if err != nil {
		return fmt.Errorf("event %s (priority %d): %w", t.Event, t.Priority, err)
	}
	return nil
}
