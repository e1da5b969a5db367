package vault

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
)

// NormalizeTags trims, lowercases, splits on commas, drops empties and
// duplicates (first occurrence wins) and caps the result at MaxTags.
func NormalizeTags(tags []string) []string {
	parts := lo.FlatMap(tags, func(t string, _ int) []string {
		return strings.Split(t, ",")
	})
	cleaned := lo.FilterMap(parts, func(t string, _ int) (string, bool) {
		t = strings.ToLower(strings.TrimSpace(t))
		return t, t != ""
	})
	out := lo.Uniq(cleaned)
	if len(out) > MaxTags {
		out = out[:MaxTags]
	}
	return out
}

// ParseTags splits a comma-separated argument such as "receipts, travel".
func ParseTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}
	return NormalizeTags([]string{raw})
}

// SearchTerms splits a query on whitespace, keeping at most MaxSearchTerms terms.
func SearchTerms(query string) []string {
	terms := strings.Fields(query)
	if len(terms) > MaxSearchTerms {
		terms = terms[:MaxSearchTerms]
	}
	return terms
}

func normalizeNote(note string) string {
	return truncateRunes(strings.TrimSpace(note), MaxNoteLength)
}

func tagsText(tags []string) string {
	return strings.Join(tags, " ")
}

// clampPage clamps size to [1, MaxPageSize] and page to [1, MaxInt/size]
// so the offset (page-1)*size never overflows.
func clampPage(page, pageSize int) (int, int) {
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	page = max(1, min(page, math.MaxInt/pageSize))
	return page, pageSize
}

func pageOffset(page, pageSize int) int {
	return (page - 1) * pageSize
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
