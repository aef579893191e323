package render

import (
	"fmt"
	"strings"

	"github.com/ppiankov/factbot/internal/model"
)

// deepResearchHeadings maps known Deep Research section headings to their glyph.
// Headings are disjoint literals, so substitution order does not matter.
var deepResearchHeadings = []struct {
	heading string
	glyph   string
}{
	{"**DETAILED ANALYSIS**", "📊"},
	{"**EXPERT OPINIONS**", "🔍"},
	{"**AUTHORITATIVE SOURCES**", "📚"},
	{"**STATISTICS AND DATA**", "📈"},
	{"**MULTIPLE PERSPECTIVES**", "⚖️"},
	{"**PRACTICAL CONCLUSIONS**", "🎯"},
}

// DeepResearchHeadings returns the headings the formatter decorates
func DeepResearchHeadings() []string {
	headings := make([]string, len(deepResearchHeadings))
	for i, h := range deepResearchHeadings {
		headings[i] = h.heading
	}
	return headings
}

// Formatter renders upstream analysis text and source reports for chat display
type Formatter struct {
	maxListed int
}

// NewFormatter creates a formatter that lists at most maxListed sources in a report.
// A non-positive value lists every source.
func NewFormatter(maxListed int) *Formatter {
	return &Formatter{maxListed: maxListed}
}

// FormatAnalysis returns article or text analysis verbatim
func (f *Formatter) FormatAnalysis(text string) string {
	return text
}

// FormatFactCheck returns fact-check output verbatim
func (f *Formatter) FormatFactCheck(text string) string {
	return text
}

// FormatDeepResearch prefixes known section headings with a glyph.
// Anything that is not an exact known heading is left unchanged.
func (f *Formatter) FormatDeepResearch(text string) string {
	formatted := text
	for _, h := range deepResearchHeadings {
		formatted = strings.ReplaceAll(formatted, h.heading, h.glyph+" "+h.heading)
	}
	return formatted
}

// FormatSourceReport renders a source report as Markdown text
func (f *Formatter) FormatSourceReport(report model.SourceReport) string {
	var b strings.Builder

	b.WriteString("📎 **Source reliability**\n\n")

	if report.Empty() {
		b.WriteString(report.Analysis)
		return b.String()
	}

	b.WriteString(report.Analysis)
	b.WriteString("\n")

	listed := report.RankedSources
	if f.maxListed > 0 && len(listed) > f.maxListed {
		listed = listed[:f.maxListed]
	}

	if len(listed) > 0 {
		b.WriteString("\n**Top sources:**\n")
		for i, src := range listed {
			b.WriteString(fmt.Sprintf("%d. %s %s (%.1f)", i+1, tierMarker(src), displayDomain(src), src.Score))
			if src.Advisory != "" {
				b.WriteString(" — ")
				b.WriteString(src.Advisory)
			}
			b.WriteString("\n")
		}
		if hidden := len(report.RankedSources) - len(listed); hidden > 0 {
			b.WriteString(fmt.Sprintf("…and %d more\n", hidden))
		}
	}

	if len(report.Recommendations) > 0 {
		b.WriteString("\n**Recommendations:**\n")
		for _, rec := range report.Recommendations {
			b.WriteString("• ")
			b.WriteString(rec)
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func tierMarker(src model.ScoredSource) string {
	switch model.BucketFor(src.Score) {
	case model.BucketHigh:
		return "✅"
	case model.BucketMedium:
		return "⚠️"
	case model.BucketBiased:
		if src.Tier == model.TierUnknown {
			return "▫️"
		}
		return "⚠️"
	default:
		return "❌"
	}
}

func displayDomain(src model.ScoredSource) string {
	if src.Domain == "" {
		return src.URL
	}
	return src.Domain
}
