// Package convmemory keeps the rolling per-user conversation window that feeds the AI client.
package convmemory

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/EternisAI/image-vault/pkg/db"
	"github.com/EternisAI/image-vault/pkg/redact"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	MaxTextLength = 4000
	MaxRecent     = 20
	DefaultWindow = 200
)

// Key scopes turns. An empty ChatID on reads and Clear means every chat of the user.
type Key struct {
	Platform string
	UserID   string
	ChatID   string
}

type Turn struct {
	Platform  string    `bson:"platform" json:"platform"`
	UserID    string    `bson:"user_id" json:"userId"`
	ChatID    string    `bson:"chat_id" json:"chatId"`
	Role      Role      `bson:"role" json:"role"`
	Text      string    `bson:"text" json:"text"`
	Timestamp time.Time `bson:"ts" json:"timestamp"`
}

// Store never returns errors: persistence failures are logged and reads degrade to empty.
type Store interface {
	Append(ctx context.Context, key Key, role Role, text string)
	// Recent returns at most limit turns, oldest first. limit is clamped to [1, MaxRecent].
	Recent(ctx context.Context, key Key, limit int) []Turn
	// History returns the whole retained window, oldest first.
	History(ctx context.Context, key Key) []Turn
	Clear(ctx context.Context, key Key)
	Backend() string
}

// New returns a Mongo-backed store when the adapter is configured, else an in-process one.
func New(adapter *db.Mongo, window int, logger *log.Logger) Store {
	if window <= 0 {
		window = DefaultWindow
	}
	if adapter.Configured() {
		return NewMongoStore(adapter, window, logger)
	}
	logger.Warn("MONGODB_URI not set, conversation memory is kept in process memory only")
	return NewMemoryStore(window, logger)
}

func clampLimit(limit int) int {
	return max(1, min(limit, MaxRecent))
}

// prepareText scrubs secrets and then truncates to MaxTextLength runes, so a
// secret cut at the boundary is already gone.
func prepareText(text string) string {
	text = redact.Secrets(text)
	if utf8.RuneCountInString(text) > MaxTextLength {
		text = string([]rune(text)[:MaxTextLength])
	}
	return text
}
