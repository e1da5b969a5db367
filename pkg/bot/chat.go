package bot

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf16"

	"github.com/EternisAI/image-vault/pkg/ai"
	"github.com/EternisAI/image-vault/pkg/convmemory"
	"github.com/EternisAI/image-vault/pkg/prompts"
	"github.com/EternisAI/image-vault/pkg/redact"
	"github.com/EternisAI/image-vault/pkg/telegram"
)

const fallbackSystemPrompt = "You are a friendly and intelligent AI assistant inside a Telegram bot. " +
	"You can chat naturally, answer general knowledge questions, and also help manage image storage when needed. " +
	"Keep responses clear and helpful."

// addressed reports whether free text is meant for the bot: always in private
// chats, otherwise only on a mention or a reply to one of the bot's messages.
func (b *Bot) addressed(msg *telegram.Message) bool {
	if msg.Chat.Type == "" || msg.Chat.Type == telegram.ChatTypePrivate {
		return true
	}
	if b.username == "" {
		return false
	}
	return b.mentioned(msg) || b.repliedTo(msg)
}

func (b *Bot) repliedTo(msg *telegram.Message) bool {
	reply := msg.ReplyToMessage
	return reply != nil && reply.From != nil && reply.From.IsBot &&
		strings.EqualFold(reply.From.Username, b.username)
}

// mentioned checks mention entities. Entity offsets count UTF-16 code units.
func (b *Bot) mentioned(msg *telegram.Message) bool {
	units := utf16.Encode([]rune(msg.Text))
	for _, e := range msg.Entities {
		if e.Type != "mention" || e.Offset < 0 || e.Offset+e.Length > len(units) {
			continue
		}
		s := string(utf16.Decode(units[e.Offset : e.Offset+e.Length]))
		if strings.EqualFold(s, "@"+b.username) {
			return true
		}
	}
	return false
}

// mentionPattern matches "@username" case-insensitively; nil for an empty username.
func mentionPattern(username string) *regexp.Regexp {
	if username == "" {
		return nil
	}
	return regexp.MustCompile(`(?i)@` + regexp.QuoteMeta(username) + `\b`)
}

func stripMention(text string, mention *regexp.Regexp) string {
	if mention != nil {
		text = mention.ReplaceAllString(text, " ")
	}
	return strings.Join(strings.Fields(text), " ")
}

func (b *Bot) systemPrompt(msg *telegram.Message) string {
	prompt, err := prompts.BuildVaultChatSystemPrompt(prompts.VaultChatSystemPrompt{
		BotUsername: b.username,
		GroupChat:   msg.Chat.Type != "" && msg.Chat.Type != telegram.ChatTypePrivate,
	})
	if err != nil {
		b.logger.Error("Failed to build system prompt", "error", err)
		return fallbackSystemPrompt
	}
	return prompt
}

func (b *Bot) handleChat(ctx context.Context, msg *telegram.Message) {
	if !b.addressed(msg) {
		return
	}
	text := stripMention(msg.Text, b.mention)
	if text == "" {
		b.reply(ctx, msg, "What can I help you with?")
		return
	}
	owner, ok := ownerID(msg)
	if !ok {
		b.reply(ctx, msg, "User ID not detected.")
		return
	}

	key := memoryKey(msg, owner)
	b.memory.Append(ctx, key, convmemory.RoleUser, text)
	turns := b.memory.Recent(ctx, key, recentTurns)

	messages := make([]ai.Message, 0, len(turns)+1)
	messages = append(messages, ai.Message{Role: ai.MessageRoleSystem, Content: b.systemPrompt(msg)})
	for _, turn := range turns {
		if turn.Text == "" {
			continue
		}
		messages = append(messages, ai.Message{Role: ai.MessageRole(turn.Role), Content: turn.Text})
	}

	reply, err := b.ai.Chat(ctx, messages, ai.Meta{ProjectID: ProjectID, Platform: Platform})
	if err != nil {
		b.logger.Error("AI chat failed", "chat_id", msg.Chat.ID, "error", err)
		b.reply(ctx, msg, "AI error: "+userFacingError(err))
		return
	}

	b.memory.Append(ctx, key, convmemory.RoleAssistant, reply)
	b.reply(ctx, msg, truncate(reply, MaxReplyLength))
}

// userFacingError prefers the upstream cause over the retry wrapper and scrubs secrets.
func userFacingError(err error) string {
	var upstream *ai.UpstreamError
	if errors.As(err, &upstream) && upstream.Err != nil {
		err = upstream.Err
	}
	return redact.Secrets(err.Error())
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
