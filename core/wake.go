package assistant

import (
	"strings"
	"unicode"
)

var DefaultWakePhrases = []string{"hey pixel", "ok pixel", "okay pixel"}

// WakeMatcher finds a wake phrase in recognized text. Text matches when it
// contains a wake phrase anywhere, or starts with the bare keyword (the last
// word of a phrase, e.g. "pixel"). Case and punctuation are ignored.
type WakeMatcher struct {
	phrases  []string
	keywords []string
}

func NewWakeMatcher(phrases ...string) *WakeMatcher {
	if len(phrases) == 0 {
		phrases = DefaultWakePhrases
	}

	m := &WakeMatcher{}
	seen := make(map[string]bool)
	for _, phrase := range phrases {
		normalized := normalizeUtterance(phrase).text
		if normalized == "" {
			continue
		}
		m.phrases = append(m.phrases, normalized)

		words := strings.Fields(normalized)
		keyword := words[len(words)-1]
		if !seen[keyword] {
			seen[keyword] = true
			m.keywords = append(m.keywords, keyword)
		}
	}
	return m
}

// Match reports whether text carries a wake phrase and returns whatever was
// said after it, with the original casing kept, as the inline command.
func (m *WakeMatcher) Match(text string) (inlineCommand string, ok bool) {
	n := normalizeUtterance(text)
	if n.text == "" {
		return "", false
	}

	for _, phrase := range m.phrases {
		if idx := strings.Index(n.text, phrase); idx >= 0 {
			return n.rest(text, wordEnd(n.text, idx+len(phrase))), true
		}
	}

	for _, keyword := range m.keywords {
		if n.text == keyword || strings.HasPrefix(n.text, keyword+" ") {
			return n.rest(text, len(keyword)), true
		}
	}
	return "", false
}

// wordEnd moves i forward to the end of the word it falls in, so the inline
// command never starts with the tail of a word.
func wordEnd(text string, i int) int {
	if end := strings.IndexByte(text[i:], ' '); end >= 0 {
		return i + end
	}
	return len(text)
}

// normalizedUtterance is text lowercased with punctuation folded into single
// spaces. offsets maps each byte of text back to its byte offset in the
// original, with one extra entry for the end.
type normalizedUtterance struct {
	text    string
	offsets []int
}

func normalizeUtterance(original string) normalizedUtterance {
	var b strings.Builder
	var offsets []int
	pendingSpace := -1

	for i, r := range original {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			if pendingSpace >= 0 && b.Len() > 0 {
				b.WriteByte(' ')
				offsets = append(offsets, pendingSpace)
			}
			pendingSpace = -1

			start := b.Len()
			b.WriteRune(unicode.ToLower(r))
			for range b.Len() - start {
				offsets = append(offsets, i)
			}
			continue
		}
		if pendingSpace < 0 {
			pendingSpace = i
		}
	}

	return normalizedUtterance{text: b.String(), offsets: append(offsets, len(original))}
}

// rest returns the original text following normalized byte position end.
func (n normalizedUtterance) rest(original string, end int) string {
	if end >= len(n.offsets) {
		return ""
	}
	rest := original[n.offsets[end]:]
	rest = strings.TrimLeftFunc(rest, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.TrimSpace(rest)
}
