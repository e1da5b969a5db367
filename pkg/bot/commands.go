package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/EternisAI/image-vault/pkg/telegram"
	"github.com/EternisAI/image-vault/pkg/vault"
)

const (
	msgNoUser        = "I couldn’t read your user id from Telegram."
	msgSaveFailed    = "Sorry, I couldn’t save that image."
	msgNotFoundList  = "Not found. Try /list."
	msgNotFoundView  = "Not found. Try /list or /search."
	msgNotFound      = "Not found."
	msgDeleted       = "Deleted."
	msgMemoryCleared = "Memory cleared."
	msgNoMatches     = "No matches."
	msgEmptyVault    = "No saved images yet. Send me a photo to save your first one."
	msgStoreFailed   = "Something went wrong. Please try again."
	msgResendFailed  = "I couldn’t re-send the file, but the metadata is still saved."
	msgExportTooBig  = "Export is too large to send here."
)

var startText = strings.Join([]string{
	"Image Vault saves your uploaded images into a personal library.",
	"",
	"To save an image, just send me a photo or an image file (document).",
	"I’ll reply with an item id you can use later.",
	"",
	"Main commands: /list, /search, /view <id>, /tag <id> <tags>, /note <id> <text>, /delete <id>, /export, /reset",
	"Tip: You can also reply to an image with /save (useful in groups).",
}, "\n")

var helpText = strings.Join([]string{
	"Commands:",
	"/start",
	"/help",
	"/save (reply to an image)",
	"/list [page]  Example: /list 2",
	"/view <id>  Example: /view a1b2c3d4",
	"/tag <id> <tags>  Example: /tag a1b2c3d4 receipts,2026",
	"/note <id> <text>  Example: /note a1b2c3d4 paid already",
	"/delete <id>  Example: /delete a1b2c3d4",
	"/search <query> [page]  Example: /search receipts 2",
	"/export",
	"/reset (clears AI memory)",
	"",
	"Saving images:",
	"1) Send a photo, or send an image as a document.",
	"2) Optionally add a caption.",
}, "\n")

type commandFunc func(ctx context.Context, msg *telegram.Message, args []string)

var pageArg = regexp.MustCompile(`^\d+$`)

// parseCommand splits "/name@bot arg1 arg2". ok is true for any slash-prefixed
// text; name is empty when the command is addressed to another bot.
func parseCommand(text, username string) (name string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name = strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		target := name[at+1:]
		name = name[:at]
		if username != "" && !strings.EqualFold(target, username) {
			return "", nil, true
		}
	}
	return strings.ToLower(name), fields[1:], true
}

func parsePage(s string) int {
	page, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return page
}

func (b *Bot) handleStart(ctx context.Context, msg *telegram.Message, _ []string) {
	b.reply(ctx, msg, startText)
}

func (b *Bot) handleHelp(ctx context.Context, msg *telegram.Message, _ []string) {
	b.reply(ctx, msg, helpText)
}

func (b *Bot) handleSave(ctx context.Context, msg *telegram.Message, _ []string) {
	if _, ok := ownerID(msg); !ok {
		b.reply(ctx, msg, msgNoUser)
		return
	}
	replied := msg.ReplyToMessage
	if replied == nil {
		b.reply(ctx, msg, "Reply to a photo (or image document) with /save, or just send me the image directly.")
		return
	}
	media := telegram.ExtractMedia(replied)
	if media == nil {
		b.reply(ctx, msg, "That message doesn’t look like a photo or image document. Try replying to a photo.")
		return
	}
	b.saveMedia(ctx, msg, replied, *media)
}

// saveMedia stores media carried by source and confirms in msg's chat.
func (b *Bot) saveMedia(ctx context.Context, msg, source *telegram.Message, media vault.Media) {
	owner, ok := ownerID(msg)
	if !ok {
		return
	}
	res, err := b.items.Save(ctx, vault.SaveInput{
		OwnerID:   owner,
		ChatID:    chatID(msg),
		MessageID: strconv.FormatInt(source.MessageID, 10),
		Media:     media,
	})
	if err != nil {
		b.logger.Error("Failed to save image", "kind", media.Kind, "owner_id", owner, "error", err)
		b.reply(ctx, msg, msgSaveFailed)
		return
	}
	b.reply(ctx, msg, vault.FormatSaved(res))
}

func (b *Bot) handleList(ctx context.Context, msg *telegram.Message, args []string) {
	owner, ok := ownerID(msg)
	if !ok {
		b.reply(ctx, msg, msgNoUser)
		return
	}
	page := 1
	if len(args) > 0 {
		page = parsePage(args[0])
	}

	res, err := b.items.List(ctx, owner, page, vault.DefaultPageSize)
	if err != nil || len(res.Items) == 0 {
		b.reply(ctx, msg, msgEmptyVault)
		return
	}
	b.reply(ctx, msg, vault.FormatPage("Your saved images", res, "Use /view <id> to view one, or /search <query>."))
}

func (b *Bot) handleSearch(ctx context.Context, msg *telegram.Message, args []string) {
	owner, ok := ownerID(msg)
	if !ok {
		b.reply(ctx, msg, msgNoUser)
		return
	}
	page := 1
	if n := len(args); n > 0 && pageArg.MatchString(args[n-1]) {
		page = parsePage(args[n-1])
		args = args[:n-1]
	}
	query := strings.Join(args, " ")
	if query == "" {
		b.reply(ctx, msg, "Usage: /search <query> [page]")
		return
	}

	res, err := b.items.Search(ctx, owner, query, page, vault.DefaultPageSize)
	if err != nil || len(res.Items) == 0 {
		b.reply(ctx, msg, msgNoMatches)
		return
	}
	b.reply(ctx, msg, vault.FormatPage(fmt.Sprintf("Results for %q", query), res, "Use /view <id> to open one."))
}

func (b *Bot) handleView(ctx context.Context, msg *telegram.Message, args []string) {
	owner, ok := ownerID(msg)
	if !ok {
		b.reply(ctx, msg, msgNoUser)
		return
	}
	if len(args) == 0 {
		b.reply(ctx, msg, "Usage: /view <id>")
		return
	}

	item, err := b.items.Get(ctx, owner, args[0])
	if err != nil {
		b.reply(ctx, msg, msgNotFoundView)
		return
	}

	if item.Kind == vault.MediaPhoto {
		err = b.sender.SendPhoto(ctx, msg.Chat.ID, item.FileID)
	} else {
		err = b.sender.SendDocument(ctx, msg.Chat.ID, item.FileID)
	}
	if err != nil {
		b.logger.Warn("Failed to re-send stored file", "item_id", item.ID, "error", err)
		b.reply(ctx, msg, msgResendFailed)
	}
	b.reply(ctx, msg, vault.FormatItem(item))
}

func (b *Bot) handleTag(ctx context.Context, msg *telegram.Message, args []string) {
	owner, ok := ownerID(msg)
	if !ok {
		b.reply(ctx, msg, msgNoUser)
		return
	}
	if len(args) == 0 {
		b.reply(ctx, msg, "Usage: /tag <id> <comma-separated-tags>")
		return
	}
	tagText := strings.Join(args[1:], " ")
	if tagText == "" && msg.ReplyToMessage != nil {
		tagText = strings.TrimSpace(msg.ReplyToMessage.Text)
	}
	if tagText == "" {
		b.reply(ctx, msg, "Send tags like: /tag <id> receipts,travel (or reply to this command with tag text).")
		return
	}

	item, err := b.items.SetTags(ctx, owner, args[0], vault.ParseTags(tagText))
	if err != nil {
		b.replyMutationError(ctx, msg, err, msgNotFoundList)
		return
	}
	tags := strings.Join(item.Tags, ", ")
	if tags == "" {
		tags = "(none)"
	}
	b.reply(ctx, msg, fmt.Sprintf("Updated tags for %s: %s", item.ID, tags))
}

func (b *Bot) handleNote(ctx context.Context, msg *telegram.Message, args []string) {
	owner, ok := ownerID(msg)
	if !ok {
		b.reply(ctx, msg, msgNoUser)
		return
	}
	if len(args) < 2 {
		b.reply(ctx, msg, "Usage: /note <id> <text>")
		return
	}

	item, err := b.items.SetNote(ctx, owner, args[0], strings.Join(args[1:], " "))
	if err != nil {
		b.replyMutationError(ctx, msg, err, msgNotFoundList)
		return
	}
	b.reply(ctx, msg, fmt.Sprintf("Updated note for %s.", item.ID))
}

func (b *Bot) handleDelete(ctx context.Context, msg *telegram.Message, args []string) {
	owner, ok := ownerID(msg)
	if !ok {
		b.reply(ctx, msg, msgNoUser)
		return
	}
	if len(args) == 0 {
		b.reply(ctx, msg, "Usage: /delete <id>")
		return
	}

	if err := b.items.Delete(ctx, owner, args[0]); err != nil {
		b.replyMutationError(ctx, msg, err, msgNotFound)
		return
	}
	b.reply(ctx, msg, msgDeleted)
}

func (b *Bot) replyMutationError(ctx context.Context, msg *telegram.Message, err error, notFound string) {
	if errors.Is(err, vault.ErrNotFound) {
		b.reply(ctx, msg, notFound)
		return
	}
	b.logger.Error("Item update failed", "chat_id", msg.Chat.ID, "error", err)
	b.reply(ctx, msg, msgStoreFailed)
}

func (b *Bot) handleExport(ctx context.Context, msg *telegram.Message, _ []string) {
	owner, ok := ownerID(msg)
	if !ok {
		b.reply(ctx, msg, msgNoUser)
		return
	}

	items, err := b.items.Export(ctx, owner)
	if err != nil {
		b.logger.Error("Export failed", "owner_id", owner, "error", err)
		b.reply(ctx, msg, msgStoreFailed)
		return
	}
	payload := vault.NewExportPayload(items, b.now())
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		b.logger.Error("Failed to encode export", "error", err)
		b.reply(ctx, msg, msgStoreFailed)
		return
	}

	if utf8.RuneCount(data) <= MaxReplyLength {
		b.reply(ctx, msg, string(data))
		return
	}
	caption := fmt.Sprintf("Exported %d items (metadata only).", payload.Count)
	if err := b.sender.SendDocumentBytes(ctx, msg.Chat.ID, exportFileName, data, caption); err != nil {
		b.logger.Error("Failed to send export document", "error", err)
		b.reply(ctx, msg, msgExportTooBig)
	}
}

func (b *Bot) handleReset(ctx context.Context, msg *telegram.Message, _ []string) {
	owner, ok := ownerID(msg)
	if !ok {
		b.reply(ctx, msg, msgNoUser)
		return
	}
	b.memory.Clear(ctx, memoryKey(msg, owner))
	b.reply(ctx, msg, msgMemoryCleared)
}
