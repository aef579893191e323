package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/factbot/internal/util"
	"github.com/sashabaranov/go-openai"
)

// PerplexityClient implements Searcher over Perplexity's OpenAI-compatible API
type PerplexityClient struct {
	client  *openai.Client
	config  Config
	limiter RateLimiter
}

// NewPerplexityClient creates a new Perplexity search client.
// limiter may be nil.
func NewPerplexityClient(config Config, limiter RateLimiter) (*PerplexityClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("perplexity API key is required")
	}

	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.DeepResearchModel == "" {
		config.DeepResearchModel = defaults.DeepResearchModel
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = defaults.MaxTokens
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.DeepResearchTimeout == 0 {
		config.DeepResearchTimeout = defaults.DeepResearchTimeout
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	clientConfig.HTTPClient = &http.Client{Transport: newTransport(config)}

	return &PerplexityClient{
		client:  openai.NewClientWithConfig(clientConfig),
		config:  config,
		limiter: limiter,
	}, nil
}

// newTransport keeps the default dialer, TLS and HTTP/2 settings and only
// replaces proxy selection
func newTransport(config Config) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy)
	return transport
}

// Name returns the provider name
func (p *PerplexityClient) Name() string {
	return "perplexity"
}

// AnalyzeArticle fact-checks the article behind url
func (p *PerplexityClient) AnalyzeArticle(ctx context.Context, url string) (string, error) {
	system, user := BuildArticlePrompt(url)
	return p.complete(ctx, p.config.Model, p.config.Temperature, p.config.Timeout, system, user)
}

// AnalyzeText fact-checks free-form text
func (p *PerplexityClient) AnalyzeText(ctx context.Context, text string) (string, error) {
	system, user := BuildTextPrompt(text)
	return p.complete(ctx, p.config.Model, p.config.Temperature, p.config.Timeout, system, user)
}

// CheckFact checks a single statement
func (p *PerplexityClient) CheckFact(ctx context.Context, statement string) (string, error) {
	system, user := BuildFactPrompt(statement)
	return p.complete(ctx, p.config.Model, p.config.Temperature, p.config.Timeout, system, user)
}

// DeepResearch runs the deep research model on a topic
func (p *PerplexityClient) DeepResearch(ctx context.Context, topic, initialAnalysis string) (string, error) {
	system, user := BuildDeepResearchPrompt(topic, initialAnalysis)
	return p.complete(ctx, p.config.DeepResearchModel, p.config.DeepTemperature, p.config.DeepResearchTimeout, system, user)
}

// complete makes a single chat completion call. There is no retry.
func (p *PerplexityClient) complete(ctx context.Context, model string, temperature float32, timeout time.Duration, system, user string) (string, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, model); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   p.config.MaxTokens,
		Temperature: temperature,
	}

	resp, err := p.client.CreateChatCompletion(ctxWithTimeout, req)
	if err != nil {
		return "", fmt.Errorf("perplexity API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}

	return content, nil
}
