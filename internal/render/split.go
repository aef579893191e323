package render

import (
	"strings"
	"unicode/utf8"
)

// SplitMessage cuts text into chunks of at most limit runes.
// Chunks break after the last newline inside the window when there is one,
// otherwise at the rune limit. Empty text yields no chunks.
func SplitMessage(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	rest := text

	for utf8.RuneCountInString(rest) > limit {
		cut := byteOffset(rest, limit)
		window := rest[:cut]

		if nl := strings.LastIndexByte(window, '\n'); nl > 0 {
			cut = nl + 1
		}

		parts = append(parts, rest[:cut])
		rest = rest[cut:]
	}

	if rest != "" {
		parts = append(parts, rest)
	}

	return parts
}

// byteOffset returns the byte index just past the first n runes of s
func byteOffset(s string, n int) int {
	count := 0
	for i := range s {
		if count == n {
			return i
		}
		count++
	}
	return len(s)
}
