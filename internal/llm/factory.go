package llm

import (
	"github.com/ppiankov/factbot/internal/model"
	"github.com/ppiankov/factbot/internal/worker"
)

// NewSearcher builds the configured search client with an upstream rate limiter
func NewSearcher(c model.PerplexityConfig) (Searcher, error) {
	return newPerplexity(c)
}

func newPerplexity(c model.PerplexityConfig) (*PerplexityClient, error) {
	config := ConfigFromModel(c)
	if config.DeepResearchModel == "" {
		config.DeepResearchModel = DefaultConfig().DeepResearchModel
	}

	var limiter RateLimiter
	if c.RequestsPerSecond > 0 {
		l := worker.NewLimiter(c.RequestsPerSecond, c.Burst)
		// Deep research calls run for minutes and are billed separately
		if c.DeepResearchRate > 0 {
			l.SetRate(config.DeepResearchModel, c.DeepResearchRate, 1)
		}
		limiter = l
	}

	return NewPerplexityClient(config, limiter)
}
