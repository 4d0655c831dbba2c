package notify

import (
	"context"
	"sync"
	"time"

	"github.com/minjen/minjen-counter/backend/go-services/pkg/logger"
	"github.com/minjen/minjen-counter/backend/go-services/pkg/metrics"
	"golang.org/x/time/rate"
)

// Options tune a Dispatcher. Zero values pick the defaults below.
type Options struct {
	QueueSize     int
	Timeout       time.Duration
	RatePerSecond float64
}

const (
	defaultQueueSize = 100
	defaultTimeout   = 5 * time.Second
)

// Dispatcher decouples notification delivery from request handling: Notify
// only enqueues, and a single worker paces and delivers the messages.
// Delivery errors are logged and counted, never returned to the caller.
type Dispatcher struct {
	sender  Sender
	queue   chan Event
	limiter *rate.Limiter
	timeout time.Duration
	log     *logger.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDispatcher starts the delivery worker.
func NewDispatcher(sender Sender, opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sender:  sender,
		queue:   make(chan Event, opts.QueueSize),
		limiter: rate.NewLimiter(limit, 1),
		timeout: opts.Timeout,
		log:     logger.Named("notify"),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	go d.run()
	return d
}

// Notify enqueues ev without blocking. It returns false when the event was
// dropped because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Notify(ev Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.Notifications.WithLabelValues("dropped").Inc()
		return false
	}
	select {
	case d.queue <- ev:
		return true
	default:
		metrics.Notifications.WithLabelValues("dropped").Inc()
		d.log.Warnf("queue full, dropping %s notification %s", ev.Kind, ev.ID)
		return false
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.queue {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev Event) {
	if err := d.limiter.Wait(d.ctx); err != nil {
		metrics.Notifications.WithLabelValues("dropped").Inc()
		return
	}
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()
	if err := d.sender.Send(ctx, ev.Text()); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		d.log.Warnf("delivery of %s notification %s failed: %v", ev.Kind, ev.ID, err)
		return
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
	d.log.Debugf("delivered %s notification %s", ev.Kind, ev.ID)
}

// Close stops accepting events and waits for queued ones to be delivered.
// When ctx expires first, in-flight delivery is canceled and the rest dropped.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-d.done
		return ctx.Err()
	}
}
