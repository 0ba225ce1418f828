// Package eventbus is an in-process domain.EventPublisher used when no
// pub/sub sidecar is configured.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PabloGalante/todo-agent/internal/domain"
	"github.com/PabloGalante/todo-agent/internal/observability"
)

var (
	ErrClosed     = errors.New("event bus closed")
	ErrBufferFull = errors.New("event bus subscriber buffer full")
)

// Handler consumes one event and tells the bus whether to redeliver it.
type Handler func(ctx context.Context, ev domain.TaskEvent) domain.DeliveryStatus

type Options struct {
	BufferSize  int           // per subscriber, default 100
	MaxAttempts int           // deliveries per event, default 3
	Backoff     time.Duration // first redelivery delay, doubled each time; default 1s
}

type subscription struct {
	topic string
	ch    chan domain.TaskEvent
}

// Bus delivers events asynchronously, one goroutine per subscriber. A
// handler answering RETRY gets the event again with exponential backoff
// until MaxAttempts is reached; then the event is dropped and logged.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscription
	closed      bool
	wg          sync.WaitGroup

	bufferSize  int
	maxAttempts int
	backoff     time.Duration
}

func New(opts Options) *Bus {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 100
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	return &Bus{
		subscribers: make(map[string][]*subscription),
		bufferSize:  opts.BufferSize,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
	}
}

// Subscribe registers h for topic. Returns an unsubscribe function.
func (b *Bus) Subscribe(topic string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{topic: topic, ch: make(chan domain.TaskEvent, b.bufferSize)}
	b.subscribers[topic] = append(b.subscribers[topic], sub)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for ev := range sub.ch {
			b.deliver(topic, h, ev)
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[topic]
		for i, s := range subs {
			if s == sub {
				b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
				close(sub.ch)
				break
			}
		}
	}
}

// Publish implements domain.EventPublisher. It never blocks: a full
// subscriber buffer is reported as ErrBufferFull.
func (b *Bus) Publish(_ context.Context, topic string, ev domain.TaskEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	var errs []error
	for _, sub := range b.subscribers[topic] {
		select {
		case sub.ch <- ev:
		default:
			errs = append(errs, fmt.Errorf("%w: topic %s", ErrBufferFull, topic))
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) deliver(topic string, h Handler, ev domain.TaskEvent) {
	log := observability.WithFields(
		"topic", topic,
		"event_id", ev.EventID,
		"event_type", ev.EventType,
	)
	// delivery outlives the publishing request
	ctx := context.Background()

	delay := b.backoff
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		status := safeHandle(ctx, h, ev)
		switch status {
		case domain.DeliverySuccess:
			return
		case domain.DeliveryDrop:
			log.Warn("event dropped by subscriber", "attempt", attempt)
			return
		}

		if attempt == b.maxAttempts {
			break
		}
		log.Info("redelivering event", "attempt", attempt, "delay_ms", delay.Milliseconds())
		time.Sleep(delay)
		delay *= 2
	}
	log.Error("event delivery failed, giving up", "attempts", b.maxAttempts)
}

func safeHandle(ctx context.Context, h Handler, ev domain.TaskEvent) (status domain.DeliveryStatus) {
	defer func() {
		if r := recover(); r != nil {
			observability.Logger().Error("subscriber panicked", "event_id", ev.EventID, "panic", fmt.Sprint(r))
			status = domain.DeliveryDrop
		}
	}()
	return h(ctx, ev)
}

// Close stops accepting events and waits for in-flight deliveries.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for topic, subs := range b.subscribers {
		for _, s := range subs {
			close(s.ch)
		}
		delete(b.subscribers, topic)
	}
	b.mu.Unlock()

	b.wg.Wait()
}
