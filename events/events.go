package events

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeLedgerEntry       EventType = "ledger_entry"
	EventTypeTransferCompleted EventType = "transfer_completed"
	EventTypeUserRegistered    EventType = "user_registered"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// LedgerEntryEvent is emitted after a game result changed a user's balance
type LedgerEntryEvent struct {
	UserID     int64     `json:"user_id"`
	EntryID    int64     `json:"entry_id"`
	Game       string    `json:"game"`
	Amount     int64     `json:"amount"`
	NewBalance int64     `json:"new_balance"`
	CreatedAt  time.Time `json:"created_at"`
}

func (e LedgerEntryEvent) Type() EventType {
	return EventTypeLedgerEntry
}

// TransferCompletedEvent is emitted after points moved between two users
type TransferCompletedEvent struct {
	TxCode     string    `json:"tx_code"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Amount     int64     `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

func (e TransferCompletedEvent) Type() EventType {
	return EventTypeTransferCompleted
}

// UserRegisteredEvent is emitted when a new account is created
type UserRegisteredEvent struct {
	UserID         int64  `json:"user_id"`
	Name           string `json:"name"`
	InitialBalance int64  `json:"initial_balance"`
}

func (e UserRegisteredEvent) Type() EventType {
	return EventTypeUserRegistered
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers.
// Handlers run on their own goroutines so a slow subscriber never blocks a request.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised inside a unit of work until it commits
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

// NewTransactionalBus creates a transactional bus that flushes into real
func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

// Publish queues an event until Flush
func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Pending returns the number of queued events
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}

// Flush emits the queued events; called after a successful commit
func (b *TransactionalBus) Flush() {
	log.WithField("pendingEventCount", len(b.pending)).Debug("Flushing transactional bus")

	// Subscribers outlive the request, so they must not inherit its context
	eventCtx := context.Background()
	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
}

// Discard drops the queued events; called after a rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
