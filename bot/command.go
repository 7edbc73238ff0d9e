package bot

import (
	"strings"
	"unicode"
)

// Invocation is a parsed command: the lower-cased first token and the raw
// remainder.
type Invocation struct {
	Verb    string
	RawArgs string
}

// ParseInvocation splits command text on the first run of whitespace.
// Empty or whitespace-only input yields the synthetic help verb.
func ParseInvocation(text string) Invocation {
	text = strings.TrimSpace(text)
	if text == "" {
		return Invocation{Verb: "help"}
	}
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		return Invocation{Verb: strings.ToLower(text[:i]), RawArgs: strings.TrimSpace(text[i:])}
	}
	return Invocation{Verb: strings.ToLower(text)}
}

// TextPair is the (top, bottom) caption halves of a meme request.
type TextPair struct {
	Top    string
	Bottom string
}

// ParseTextPair splits on the first literal "|". Each side is trimmed and has
// at most one matching pair of surrounding quotes stripped, independently.
// Without a "|" the whole text becomes the top half.
func ParseTextPair(text string) TextPair {
	if top, bottom, ok := strings.Cut(text, "|"); ok {
		return TextPair{Top: unquote(top), Bottom: unquote(bottom)}
	}
	return TextPair{Top: unquote(text)}
}

// unquote trims whitespace and strips one pair of matching surrounding quote
// characters (double or single).
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
