package vault

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/EternisAI/image-vault/pkg/db"
	"github.com/EternisAI/image-vault/pkg/events"
)

const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// New returns a MongoStore when the adapter has a URI, otherwise a MemoryStore.
func New(adapter *db.Mongo, publisher events.Publisher, logger *log.Logger) Store {
	if adapter.Configured() {
		logger.Info("Using MongoDB item store", "database", adapter.Database())
		return NewMongoStore(adapter, publisher, logger)
	}
	logger.Warn("MONGODB_URI not set, items are kept in process memory only")
	return NewMemoryStore(publisher, logger)
}

// newID returns 8 hex characters.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

type notifier struct {
	publisher events.Publisher
	logger    *log.Logger
	now       func() time.Time
}

func (n notifier) notify(ctx context.Context, action events.Action, ownerID, itemID, reason string) {
	if n.publisher == nil {
		return
	}
	event := events.ItemEvent{
		Action:    action,
		OwnerID:   ownerID,
		ItemID:    itemID,
		Reason:    reason,
		Timestamp: n.now().UTC(),
	}
	if err := n.publisher.Publish(ctx, event); err != nil {
		n.logger.Warn("Failed to publish item event", "action", action, "item_id", itemID, "error", err)
	}
}

func saveAction(res SaveResult) events.Action {
	if res.Deduped {
		return events.ActionDeduped
	}
	return events.ActionSaved
}

func cloneItem(it Item) Item {
	it.Tags = append([]string{}, it.Tags...)
	return it
}
