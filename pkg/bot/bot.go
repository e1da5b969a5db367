// Package bot routes Telegram updates to the image vault, the conversation
// memory and the AI client.
package bot

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/EternisAI/image-vault/pkg/ai"
	"github.com/EternisAI/image-vault/pkg/convmemory"
	"github.com/EternisAI/image-vault/pkg/telegram"
	"github.com/EternisAI/image-vault/pkg/vault"
)

const (
	Platform  = "telegram"
	ProjectID = "image-vault"

	// MaxReplyLength caps AI replies and inline exports.
	MaxReplyLength = 3500
	recentTurns    = 16

	exportFileName = "image-vault-export.json"
)

// Sender is the subset of the Bot API the handlers reply through.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, fileID string) error
	SendDocument(ctx context.Context, chatID int64, fileID string) error
	SendDocumentBytes(ctx context.Context, chatID int64, fileName string, data []byte, caption string) error
}

type Chatter interface {
	Chat(ctx context.Context, messages []ai.Message, meta ai.Meta) (string, error)
}

type Deps struct {
	Sender Sender
	Items  vault.Store
	Memory convmemory.Store
	AI     Chatter
	Logger *log.Logger
}

type Bot struct {
	sender   Sender
	items    vault.Store
	memory   convmemory.Store
	ai       Chatter
	logger   *log.Logger
	username string
	mention  *regexp.Regexp
	now      func() time.Time
	commands map[string]commandFunc
}

func New(deps Deps) *Bot {
	b := &Bot{
		sender: deps.Sender,
		items:  deps.Items,
		memory: deps.Memory,
		ai:     deps.AI,
		logger: deps.Logger,
		now:    time.Now,
	}
	b.commands = map[string]commandFunc{
		"start":  b.handleStart,
		"help":   b.handleHelp,
		"save":   b.handleSave,
		"list":   b.handleList,
		"search": b.handleSearch,
		"view":   b.handleView,
		"tag":    b.handleTag,
		"note":   b.handleNote,
		"delete": b.handleDelete,
		"export": b.handleExport,
		"reset":  b.handleReset,
	}
	return b
}

// SetUsername records the bot's own username, used to detect mentions and replies in groups.
func (b *Bot) SetUsername(username string) {
	b.username = username
	b.mention = mentionPattern(username)
}

// HandleUpdate is a telegram.Handler.
func (b *Bot) HandleUpdate(ctx context.Context, update telegram.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	if msg.From != nil {
		b.logger.Info("Update received",
			"update_id", update.UpdateID,
			"chat_type", msg.Chat.Type,
			"chat_id", msg.Chat.ID,
			"user_id", msg.From.ID,
		)
	}

	if name, args, ok := parseCommand(msg.Text, b.username); ok {
		if handler, found := b.commands[name]; found {
			handler(ctx, msg, args)
		}
		return
	}

	if media := telegram.ExtractMedia(msg); media != nil {
		b.saveMedia(ctx, msg, msg, *media)
		return
	}

	if msg.Text != "" {
		b.handleChat(ctx, msg)
	}
}

func (b *Bot) reply(ctx context.Context, msg *telegram.Message, text string) {
	if err := b.sender.SendMessage(ctx, msg.Chat.ID, text); err != nil {
		b.logger.Error("Failed to send reply", "chat_id", msg.Chat.ID, "error", err)
	}
}

func ownerID(msg *telegram.Message) (string, bool) {
	if msg.From == nil || msg.From.ID == 0 {
		return "", false
	}
	return strconv.FormatInt(msg.From.ID, 10), true
}

func chatID(msg *telegram.Message) string {
	return strconv.FormatInt(msg.Chat.ID, 10)
}

func memoryKey(msg *telegram.Message, owner string) convmemory.Key {
	return convmemory.Key{Platform: Platform, UserID: owner, ChatID: chatID(msg)}
}
