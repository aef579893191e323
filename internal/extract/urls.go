package extract

import "regexp"

// urlPattern matches http(s) URLs up to whitespace or a closing bracket.
// Whitespace includes Unicode spaces so URLs glued to NBSP-separated text stop cleanly.
var urlPattern = regexp.MustCompile(`https?://[^\s\v\p{Z}\x{85}\x{1c}-\x{1f})\]}]+`)

// URLExtractor finds URLs in free text
type URLExtractor struct{}

// NewURLExtractor creates a new URL extractor
func NewURLExtractor() *URLExtractor {
	return &URLExtractor{}
}

// Extract returns every URL in text in order of appearance.
// Repeated URLs are kept so citation counts stay reproducible.
func (e *URLExtractor) Extract(text string) []string {
	return ExtractURLs(text)
}

// ExtractURLs returns every URL in text in order of appearance
func ExtractURLs(text string) []string {
	if text == "" {
		return []string{}
	}

	matches := urlPattern.FindAllString(text, -1)
	if matches == nil {
		return []string{}
	}
	return matches
}
