package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher delivers messages off the caller's path through a fixed pool of workers.
// Notify never blocks: when the queue is full the message is dropped and logged.
type Dispatcher struct {
	channel     Channel
	queue       chan Message
	sendTimeout time.Duration
	logger      *slog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func NewDispatcher(channel Channel, workers, queueSize int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	d := &Dispatcher{
		channel:     channel,
		queue:       make(chan Message, queueSize),
		sendTimeout: 30 * time.Second,
		logger:      logger.With("component", "notify_dispatcher"),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		if err := d.channel.Send(ctx, msg); err != nil {
			d.logger.Warn("notification delivery failed", "to", msg.To, "subject", msg.Subject, "err", err)
		}
		cancel()
	}
}

// Notify enqueues msg. It reports false when the message was dropped.
func (d *Dispatcher) Notify(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("notification dropped after shutdown", "to", msg.To, "subject", msg.Subject)
		return false
	}
	select {
	case d.queue <- msg:
		return true
	default:
		d.logger.Warn("notification queue full; dropping", "to", msg.To, "subject", msg.Subject)
		return false
	}
}

// Close stops accepting messages and waits for queued ones to drain or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})

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
