// Package event carries messages between integrations, rule evaluation and
// the action executor.
//
// Senders never block: the Bus is unbounded, and Send is fire-and-forget.
// A single consumer drains it with Receive.
package event

import (
	"context"
	"errors"
	"sync"

	"github.com/nerrad567/gray-logic-rules/internal/action"
	"github.com/nerrad567/gray-logic-rules/internal/device"
)

// ErrBusClosed is returned by Receive once the bus is closed and drained.
var ErrBusClosed = errors.New("event: bus closed")

// Message is one of the concrete message types in this package.
type Message interface {
	isMessage()
}

// ActionMessage carries an action for the executor.
type ActionMessage struct {
	Action action.Action
}

// DeviceUpdated reports a device state observed by an integration.
type DeviceUpdated struct {
	Device device.Device
}

func (ActionMessage) isMessage() {}
func (DeviceUpdated) isMessage() {}

// TxChannel is the sending half of an event channel.
type TxChannel interface {
	Send(msg Message)
}

// Bus is an unbounded, in-process message queue.
//
// Send never blocks. Messages are received in send order.
type Bus struct {
	mu     sync.Mutex
	queue  []Message
	notify chan struct{}
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{notify: make(chan struct{}, 1)}
}

// Send enqueues msg. Messages sent after Close are dropped.
func (b *Bus) Send(msg Message) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, msg)
	b.mu.Unlock()

	b.wake()
}

// Receive blocks until a message is available, the context is cancelled,
// or the bus is closed and drained.
func (b *Bus) Receive(ctx context.Context) (Message, error) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			msg := b.queue[0]
			b.queue[0] = nil
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return msg, nil
		}
		closed := b.closed
		b.mu.Unlock()

		if closed {
			return nil, ErrBusClosed
		}

		select {
		case <-b.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close stops accepting messages. Queued messages can still be received.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.wake()
}

// Len returns the number of queued messages.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

func (b *Bus) wake() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}
