// Package bus dispatches inbound events to subscribed handlers on a bounded
// worker pool. Each handler runs as its own task, so one failing or
// panicking handler never blocks the others.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/automation/internal/event"
	"github.com/gyaneshwarpardhi/automation/internal/metrics"
)

// ErrQueueFull is reported for handler tasks that could not be enqueued.
var ErrQueueFull = errors.New("dispatch queue full")

// Handler processes one event.
type Handler func(ctx context.Context, ev *event.Event) error

// HandlerResult is the captured outcome of one handler for one event.
type HandlerResult struct {
	Handler  string        `json:"handler"`
	EventID  string        `json:"eventId"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

type subscription struct {
	name string
	fn   Handler
}

type task struct {
	ctx    context.Context
	ev     *event.Event
	sub    subscription
	index  int
	result chan<- indexedResult
}

type indexedResult struct {
	index int
	res   HandlerResult
}

// Dispatcher fans events out to subscribers.
type Dispatcher struct {
	mu     sync.RWMutex
	subs   []subscription
	pool   *workerPool[task]
	logger *slog.Logger
}

// New starts a Dispatcher with workers goroutines and a queue of queueDepth tasks.
func New(ctx context.Context, workers, queueDepth int, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{logger: logger}
	d.pool = newWorkerPool[task](ctx, workers, queueDepth, d.execute)
	return d
}

// Subscribe registers a handler. Tasks are enqueued in subscription order.
func (d *Dispatcher) Subscribe(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, subscription{name: name, fn: h})
}

// Publish enqueues one task per handler and returns immediately. It returns
// false if any handler task was dropped because the queue was full.
func (d *Dispatcher) Publish(ev *event.Event) bool {
	ok := true
	for _, s := range d.subscriptions() {
		if !d.submit(task{ctx: context.Background(), ev: ev, sub: s}) {
			ok = false
		}
	}
	return ok
}

// PublishWait enqueues one task per handler and waits for all of them.
// Results follow subscription order. Handlers still running when ctx ends
// are reported with ctx.Err().
func (d *Dispatcher) PublishWait(ctx context.Context, ev *event.Event) []HandlerResult {
	subs := d.subscriptions()
	results := make([]HandlerResult, len(subs))
	pending := make(map[int]struct{}, len(subs))
	resultC := make(chan indexedResult, len(subs))

	for i, s := range subs {
		results[i] = HandlerResult{Handler: s.name, EventID: ev.ID}
		if !d.submit(task{ctx: ctx, ev: ev, sub: s, index: i, result: resultC}) {
			results[i].Err = ErrQueueFull
			continue
		}
		pending[i] = struct{}{}
	}

	for len(pending) > 0 {
		select {
		case r := <-resultC:
			results[r.index] = r.res
			delete(pending, r.index)
		case <-ctx.Done():
			for i := range pending {
				results[i].Err = ctx.Err()
			}
			return results
		}
	}
	return results
}

// Drain stops accepting tasks and waits for queued ones to finish.
func (d *Dispatcher) Drain() {
	d.pool.Drain()
	metrics.QueueUtilization.Set(0)
}

// QueueUtilization returns queue used / capacity (0–1).
func (d *Dispatcher) QueueUtilization() float64 {
	if d.pool.QueueCap() == 0 {
		return 0
	}
	return float64(d.pool.QueueLen()) / float64(d.pool.QueueCap())
}

func (d *Dispatcher) subscriptions() []subscription {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]subscription, len(d.subs))
	copy(out, d.subs)
	return out
}

func (d *Dispatcher) submit(t task) bool {
	if !d.pool.Submit(t) {
		metrics.EventsDropped.Inc()
		d.logger.Warn("dispatch queue full", "handler", t.sub.name, "event_id", t.ev.ID)
		return false
	}
	metrics.QueueUtilization.Set(d.QueueUtilization())
	return true
}

func (d *Dispatcher) execute(_ context.Context, t task) {
	start := time.Now()
	err := invoke(t.ctx, t.sub.fn, t.ev)
	res := HandlerResult{Handler: t.sub.name, EventID: t.ev.ID, Err: err, Duration: time.Since(start)}

	status := "ok"
	if err != nil {
		status = "error"
		d.logger.Error("event handler failed", "handler", t.sub.name, "event_id", t.ev.ID, "err", err)
	}
	metrics.HandlerRuns.WithLabelValues(t.sub.name, status).Inc()
	metrics.QueueUtilization.Set(d.QueueUtilization())

	if t.result != nil {
		t.result <- indexedResult{index: t.index, res: res}
	}
}

func invoke(ctx context.Context, h Handler, ev *event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, ev)
}
