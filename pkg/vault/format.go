package vault

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	savedCaptionPreview = 80
	listCaptionPreview  = 50

	isoMillis = "2006-01-02T15:04:05.000Z07:00"
)

// CaptionPreview trims s and cuts it to n runes, appending an ellipsis when cut.
func CaptionPreview(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}

func orNone(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "(none)"
	}
	return s
}

// FormatSaved is the confirmation sent after a save.
func FormatSaved(res SaveResult) string {
	preview := CaptionPreview(res.Item.Caption, savedCaptionPreview)
	if preview == "" {
		preview = "(no caption)"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Saved. Item id: %s\nCaption: %s", res.Item.ID, preview)
	if res.Deduped {
		fmt.Fprintf(&b, "\nAlready saved (de-duplicated by %s). Updated timestamp.", res.Reason)
	}
	fmt.Fprintf(&b, "\n\nAdd tags: /tag %s receipts,travel\nAdd a note: /note %s <text>", res.Item.ID, res.Item.ID)
	return b.String()
}

func formatLine(it Item) string {
	meta := []string{it.CreatedAt.UTC().Format(time.DateOnly)}
	if preview := CaptionPreview(it.Caption, listCaptionPreview); preview != "" {
		meta = append(meta, preview)
	}
	line := it.ID + ": " + strings.Join(meta, " | ")
	if len(it.Tags) > 0 {
		line += " [" + strings.Join(it.Tags, ", ") + "]"
	}
	return line
}

// FormatPage renders a list or search page under header.
func FormatPage(header string, p Page, footer string) string {
	lines := []string{fmt.Sprintf("%s (page %d/%d):", header, p.Page, p.Pages())}
	for _, it := range p.Items {
		lines = append(lines, formatLine(it))
	}
	if footer != "" {
		lines = append(lines, "\n"+footer)
	}
	return strings.Join(lines, "\n")
}

// FormatItem renders the metadata block shown by /view.
func FormatItem(it Item) string {
	return strings.Join([]string{
		"Item id: " + it.ID,
		"Saved: " + it.CreatedAt.UTC().Format(time.RFC3339),
		"Caption: " + orNone(it.Caption),
		"Tags: " + orNone(strings.Join(it.Tags, ", ")),
		"Note: " + orNone(it.Note),
	}, "\n")
}

// ExportPayload is the JSON document produced by /export and vault-export.
type ExportPayload struct {
	ExportedAt string       `json:"exportedAt"`
	Count      int          `json:"count"`
	Items      []ExportItem `json:"items"`
}

func NewExportPayload(items []ExportItem, now time.Time) ExportPayload {
	if items == nil {
		items = []ExportItem{}
	}
	return ExportPayload{
		ExportedAt: now.UTC().Format(isoMillis),
		Count:      len(items),
		Items:      items,
	}
}
