// Package redact scrubs secret-shaped substrings from text before it is persisted.
package redact

import (
	"regexp"
	"strings"
)

const Placeholder = "[REDACTED]"

type Redactor struct {
	patterns []namedRe
}

type namedRe struct {
	name string
	re   *regexp.Regexp
}

var builtins = []namedRe{
	{name: "private_key_block", re: regexp.MustCompile(`(?s)-----BEGIN [A-Z0-9 ]*PRIVATE KEY-----.*?-----END [A-Z0-9 ]*PRIVATE KEY-----`)},
	{name: "openai_key", re: regexp.MustCompile(`\bsk-[A-Za-z0-9]{10,}\b`)},
	{name: "bearer", re: regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9\-_.]{10,}\b`)},
	{name: "google_api_key", re: regexp.MustCompile(`\bAIza[0-9A-Za-z\-_]{20,}\b`)},
	{name: "slack_token", re: regexp.MustCompile(`\bxox[baprs]-[0-9A-Za-z\-]{10,}\b`)},
	{name: "telegram_bot_token", re: regexp.MustCompile(`\d{5,}:[A-Za-z0-9_-]{30,}`)},
	{name: "jwt_like", re: regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\b`)},
}

var defaultRedactor = New()

// New returns a Redactor with the built-in patterns plus any extra expressions.
// Extra expressions that fail to compile are skipped.
func New(extra ...string) *Redactor {
	patterns := make([]namedRe, 0, len(builtins)+len(extra))
	patterns = append(patterns, builtins...)
	for _, expr := range extra {
		if strings.TrimSpace(expr) == "" {
			continue
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			continue
		}
		patterns = append(patterns, namedRe{name: "custom", re: re})
	}
	return &Redactor{patterns: patterns}
}

// Redact replaces every match with Placeholder and reports whether anything changed.
func (r *Redactor) Redact(s string) (string, bool) {
	if r == nil || strings.TrimSpace(s) == "" {
		return s, false
	}
	out := s
	for _, p := range r.patterns {
		out = p.re.ReplaceAllString(out, Placeholder)
	}
	return out, out != s
}

// Secrets redacts s with the default pattern set.
func Secrets(s string) string {
	out, _ := defaultRedactor.Redact(s)
	return out
}
