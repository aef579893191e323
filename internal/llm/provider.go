package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/factbot/internal/model"
)

// ErrEmptyResponse is returned when the upstream answers without content
var ErrEmptyResponse = errors.New("empty response from search API")

// Searcher runs web-grounded analyses through an LLM search API
type Searcher interface {
	// AnalyzeArticle fact-checks the article behind a link
	AnalyzeArticle(ctx context.Context, url string) (string, error)

	// AnalyzeText fact-checks free-form text
	AnalyzeText(ctx context.Context, text string) (string, error)

	// CheckFact checks a single statement
	CheckFact(ctx context.Context, statement string) (string, error)

	// DeepResearch expands a topic using a slower, more thorough model.
	// initialAnalysis is the earlier regular analysis of the same topic.
	DeepResearch(ctx context.Context, topic, initialAnalysis string) (string, error)
}

// RateLimiter throttles upstream calls per key
type RateLimiter interface {
	Wait(ctx context.Context, key string) error
}

// Config holds search client configuration
type Config struct {
	APIKey  string
	BaseURL string

	// Model serves article, text and fact checks
	Model string

	// DeepResearchModel serves deep research
	DeepResearchModel string

	MaxTokens       int
	Temperature     float32
	DeepTemperature float32

	Timeout             time.Duration
	DeepResearchTimeout time.Duration

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return ConfigFromModel(model.DefaultConfig().Perplexity)
}

// ConfigFromModel converts model.PerplexityConfig to llm.Config
func ConfigFromModel(c model.PerplexityConfig) Config {
	return Config{
		APIKey:              c.APIKey,
		BaseURL:             c.BaseURL,
		Model:               c.Model,
		DeepResearchModel:   c.DeepResearchModel,
		MaxTokens:           c.MaxTokens,
		Temperature:         c.Temperature,
		DeepTemperature:     c.DeepTemperature,
		Timeout:             c.Timeout,
		DeepResearchTimeout: c.DeepResearchTimeout,
		HTTPProxy:           c.HTTPProxy,
		HTTPSProxy:          c.HTTPSProxy,
		NoProxy:             c.NoProxy,
	}
}

const analystPrompt = `You are an independent news analyst. Your task is to analyze the %s objectively, check its facts and assess the quality of its sources.

Your analysis MUST include:
1. 📋 SUMMARY - the core of the %s
2. 🔍 FACT CHECK - what is confirmed and what needs verification
3. 📚 INDEPENDENT SOURCES - 3-5 verified sources on the topic with SPECIFIC LINKS
4. ⚠️ POTENTIAL ISSUES - possible distortions or bias
5. 🎯 RECOMMENDATIONS - how the reader can better evaluate the information

Rules:
- Always provide specific links to verification sources
- Back every fact with a link to an independent source
- Use only verified, independent sources, weighing each by its reliability
- Link format: [Source name](URL)`

const factCheckerPrompt = `You are an independent fact checker. Your task is to verify a specific statement and find confirmations or refutations.

Your answer MUST include:
1. 📋 VERDICT - confirmed / refuted / needs verification
2. 🔍 EVIDENCE - concrete facts and sources
3. 📚 INDEPENDENT SOURCES - 3-5 verified sources
4. ⚠️ CONTEXT - important details and nuances
5. 🎯 RECOMMENDATIONS - how to verify the information further

Use only verified, independent sources, weighing each by its reliability.
Link format: [Source name](URL)`

const deepResearchPrompt = `You are a leading expert researcher with access to the most authoritative sources.
Your task is to research the topic as deeply and comprehensively as possible.

Your answer MUST include these sections, with headings written exactly as shown:
1. **DETAILED ANALYSIS** - an in-depth breakdown of every aspect of the topic
2. **EXPERT OPINIONS** - quotes from leading specialists
3. **AUTHORITATIVE SOURCES** - links to scientific papers and official documents
4. **STATISTICS AND DATA** - concrete figures and facts
5. **MULTIPLE PERSPECTIVES** - different points of view on the issue
6. **PRACTICAL CONCLUSIONS** - recommendations and forecasts

Use only verified, authoritative sources. Back every fact with a link.`

// BuildArticlePrompt returns the system and user messages for an article analysis
func BuildArticlePrompt(url string) (system, user string) {
	system = fmt.Sprintf(analystPrompt, "article", "article")
	user = fmt.Sprintf(`Analyze this specific article: %s

Analyze exactly this link, not similar articles. Run a full fact check and find independent sources for the claims in this article.

You MUST provide:
- Specific links to verification sources
- At least 3-5 independent sources
- Format: [Source name](URL)`, url)
	return system, user
}

// BuildTextPrompt returns the system and user messages for a text analysis
func BuildTextPrompt(text string) (system, user string) {
	system = fmt.Sprintf(analystPrompt, "text", "text")
	user = fmt.Sprintf("Analyze this text: %s\n\nRun a full fact check and find independent sources to verify the information.", text)
	return system, user
}

// BuildFactPrompt returns the system and user messages for a fact check
func BuildFactPrompt(statement string) (system, user string) {
	user = fmt.Sprintf("Check this statement: %s\n\nFind independent sources that confirm or refute it.", statement)
	return factCheckerPrompt, user
}

// BuildDeepResearchPrompt returns the system and user messages for deep research
func BuildDeepResearchPrompt(topic, initialAnalysis string) (system, user string) {
	if initialAnalysis == "" {
		initialAnalysis = "(no preliminary analysis)"
	}

	user = fmt.Sprintf(`Research this topic as deeply as possible: %s

BASED ON THE PRELIMINARY ANALYSIS:
%s

DEEP RESEARCH TASKS:
1. Find additional independent sources NOT mentioned in the preliminary analysis
2. Find expert opinions and interviews on the topic
3. Find statistical data and studies
4. Analyze the historical context and similar cases
5. Find official documents and regulations
6. Compare with international experience
7. Find opposing viewpoints and criticism
8. Suggest how the situation may develop

SOURCE REQUIREMENTS:
- Scientific publications and studies
- Official documents and reports
- Expert interviews
- Statistical data
- International sources

ANSWER FORMAT:
- Structured analysis by section
- Specific quotes with their sources
- Statistics with dates
- Links to every source as [Name](URL)
- Practical conclusions and recommendations`, topic, initialAnalysis)

	return deepResearchPrompt, user
}
