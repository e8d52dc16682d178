package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"akinmueble/internal/middleware"
	"akinmueble/internal/observability"

	"github.com/google/uuid"
)

type job struct {
	id    string
	ctx   context.Context
	email *Email
	sms   *SMS
}

// Dispatcher delivers messages on a bounded pool of workers so callers never
// wait on the notification service. Failures are logged and counted only.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	jobs    chan job
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workers goroutines draining a queue of queueSize
// messages. Each send is bounded by timeout.
func NewDispatcher(sender Sender, workers, queueSize int, timeout time.Duration) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < workers {
		queueSize = workers * 16
	}
	d := &Dispatcher{
		sender:  sender,
		timeout: timeout,
		jobs:    make(chan job, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Email queues msg and returns its message ID, or "" if it was dropped.
func (d *Dispatcher) Email(ctx context.Context, msg Email) string {
	return d.enqueue(ctx, job{email: &msg}, ChannelEmail)
}

// SMS queues msg and returns its message ID, or "" if it was dropped.
func (d *Dispatcher) SMS(ctx context.Context, msg SMS) string {
	return d.enqueue(ctx, job{sms: &msg}, ChannelSMS)
}

func (d *Dispatcher) enqueue(ctx context.Context, j job, channel Channel) string {
	j.id = uuid.NewString()
	j.ctx = context.WithoutCancel(ctx)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		observability.NotificationsSent.WithLabelValues(string(channel), "dropped").Inc()
		middleware.Logger.WarnContext(ctx, "notification dropped after shutdown", slog.String("channel", string(channel)))
		return ""
	}

	select {
	case d.jobs <- j:
		return j.id
	default:
		observability.NotificationsSent.WithLabelValues(string(channel), "dropped").Inc()
		middleware.Logger.WarnContext(ctx, "notification queue full, message dropped", slog.String("channel", string(channel)))
		return ""
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.timeout)
	defer cancel()

	var (
		err     error
		channel Channel
	)
	switch {
	case j.email != nil:
		channel = ChannelEmail
		err = d.sender.SendEmail(ctx, *j.email)
	case j.sms != nil:
		channel = ChannelSMS
		err = d.sender.SendSMS(ctx, *j.sms)
	default:
		return
	}

	observability.NotificationsSent.WithLabelValues(string(channel), observability.Outcome(err)).Inc()
	if err != nil {
		middleware.Logger.WarnContext(ctx, "notification not accepted",
			slog.String("message_id", j.id),
			slog.String("channel", string(channel)),
			slog.String("error", err.Error()),
		)
	}
}

// Close stops accepting messages and waits for queued ones to be sent or for
// ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
