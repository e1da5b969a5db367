// events.go - Item lifecycle events for the vault
package events

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Action identifies what happened to an item.
type Action string

const (
	ActionSaved   Action = "saved"
	ActionDeduped Action = "deduped"
	ActionTagged  Action = "tagged"
	ActionNoted   Action = "noted"
	ActionDeleted Action = "deleted"
)

var Actions = []Action{ActionSaved, ActionDeduped, ActionTagged, ActionNoted, ActionDeleted}

// SubjectPrefix is the NATS subject namespace, one subject per action.
const SubjectPrefix = "vault.items."

func Subject(action Action) string {
	return SubjectPrefix + string(action)
}

// ItemEvent is published after a successful item mutation.
type ItemEvent struct {
	Action    Action    `json:"action"`
	OwnerID   string    `json:"ownerId"`
	ItemID    string    `json:"itemId"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers item events. Callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, event ItemEvent) error
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event ItemEvent) error

// Bus fans item events out to in-process handlers. Forward adds NATS delivery.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Action][]Handler
	logger      *log.Logger
}

func NewBus(logger *log.Logger) *Bus {
	return &Bus{
		subscribers: make(map[Action][]Handler),
		logger:      logger,
	}
}

// Subscribe adds an event handler for a specific action
func (b *Bus) Subscribe(action Action, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers[action] = append(b.subscribers[action], handler)

	if b.logger != nil {
		b.logger.Debug("Event handler subscribed", "action", action)
	}
}

// Publish runs all handlers for the event's action and waits for them.
func (b *Bus) Publish(ctx context.Context, event ItemEvent) error {
	b.mu.RLock()
	handlers := b.subscribers[event.Action]
	b.mu.RUnlock()

	if b.logger != nil {
		b.logger.Debug("Publishing event", "action", event.Action, "handlers_count", len(handlers))
	}

	var wg sync.WaitGroup
	for _, handler := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			if err := h(ctx, event); err != nil {
				if b.logger != nil {
					b.logger.Error("Event handler failed", "action", event.Action, "error", err)
				}
			}
		}(handler)
	}

	wg.Wait()
	return nil
}

// Forward subscribes p to every action.
func (b *Bus) Forward(p Publisher) {
	for _, action := range Actions {
		b.Subscribe(action, p.Publish)
	}
}

// Unsubscribe removes all handlers for an action
func (b *Bus) Unsubscribe(action Action) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, action)
}

func (b *Bus) SubscriberCount(action Action) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subscribers[action])
}
