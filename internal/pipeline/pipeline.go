package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/factbot/internal/llm"
	"github.com/ppiankov/factbot/internal/metrics"
	"github.com/ppiankov/factbot/internal/model"
	"github.com/ppiankov/factbot/internal/render"
	"github.com/ppiankov/factbot/internal/score"
	"github.com/ppiankov/factbot/internal/usage"
	"github.com/ppiankov/factbot/internal/validate"
)

// Request kinds, also used as metric labels
const (
	KindArticle      = "article"
	KindText         = "text"
	KindFact         = "fact"
	KindDeepResearch = "deep_research"
)

// maxListedSources caps the source list appended to a chat answer
const maxListedSources = 10

// ErrEmptyInput is returned when there is nothing to analyze
var ErrEmptyInput = errors.New("empty input")

// Result is a rendered answer ready to be sent to the user
type Result struct {
	Kind     string
	Text     string
	Report   model.SourceReport
	Account  model.Account
	Duration time.Duration
	Free     bool // deep research only: paid with the free credit
}

// Service runs user requests: quota check, search API call, charge,
// formatting and the source reliability report
type Service struct {
	searcher  llm.Searcher
	ledger    *usage.Ledger
	ranker    *score.Ranker
	formatter *render.Formatter
	metrics   *metrics.Metrics
	logger    *zerolog.Logger
	deepModel string
	now       func() time.Time
}

// NewService creates a new service with the given configuration
func NewService(cfg *model.Config, searcher llm.Searcher, ledger *usage.Ledger, m *metrics.Metrics, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	table := validate.NewDefaultReputationTable(cfg.Sources)

	return &Service{
		searcher:  searcher,
		ledger:    ledger,
		ranker:    score.NewRanker(validate.NewReliabilityScorer(table)),
		formatter: render.NewFormatter(maxListedSources),
		metrics:   m,
		logger:    logger,
		deepModel: cfg.Perplexity.DeepResearchModel,
		now:       time.Now,
	}
}

// IsArticleLink reports whether user input should be treated as an article link
func IsArticleLink(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "http")
}

// Analyze routes input to AnalyzeArticle or AnalyzeText
func (s *Service) Analyze(ctx context.Context, userID, input string) (*Result, error) {
	if IsArticleLink(input) {
		return s.AnalyzeArticle(ctx, userID, input)
	}
	return s.AnalyzeText(ctx, userID, input)
}

// AnalyzeArticle fact-checks the article behind a link
func (s *Service) AnalyzeArticle(ctx context.Context, userID, url string) (*Result, error) {
	return s.run(ctx, KindArticle, userID, url, s.searcher.AnalyzeArticle, s.formatter.FormatAnalysis)
}

// AnalyzeText fact-checks free-form text
func (s *Service) AnalyzeText(ctx context.Context, userID, text string) (*Result, error) {
	return s.run(ctx, KindText, userID, text, s.searcher.AnalyzeText, s.formatter.FormatAnalysis)
}

// CheckFact checks a single statement
func (s *Service) CheckFact(ctx context.Context, userID, statement string) (*Result, error) {
	return s.run(ctx, KindFact, userID, statement, s.searcher.CheckFact, s.formatter.FormatFactCheck)
}

type searchFunc func(ctx context.Context, input string) (string, error)

func (s *Service) run(ctx context.Context, kind, userID, input string, search searchFunc, format func(string) string) (*Result, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		s.metrics.ObserveRequest(kind, metrics.OutcomeRejected)
		return nil, ErrEmptyInput
	}

	reservation, _, err := s.ledger.Reserve(userID)
	if err != nil {
		s.metrics.ObserveRequest(kind, metrics.OutcomeLimited)
		return nil, err
	}

	start := s.now()
	answer, err := search(ctx, input)
	elapsed := s.now().Sub(start)
	s.metrics.ObserveUpstream(kind, elapsed)

	if err != nil {
		s.ledger.Release(reservation)
		s.metrics.ObserveRequest(kind, metrics.OutcomeError)
		s.logger.Error().Err(err).Str("kind", kind).Str("user_id", userID).Msg("search request failed")
		return nil, fmt.Errorf("%s: %w", kind, err)
	}

	account := s.ledger.Stats(userID)
	s.metrics.ObserveRequest(kind, metrics.OutcomeOK)

	text, report := s.withSources(format(answer), answer)

	s.logger.Info().
		Str("kind", kind).
		Str("user_id", userID).
		Dur("duration", elapsed).
		Int("sources", report.TotalFound).
		Msg("request served")

	return &Result{
		Kind:     kind,
		Text:     text,
		Report:   report,
		Account:  account,
		Duration: elapsed,
	}, nil
}

// DeepResearch runs a deep research on topic. The first one is free, later
// ones cost DeepResearchCost requests. The charge is reverted if the call fails.
func (s *Service) DeepResearch(ctx context.Context, userID, topic, initialAnalysis string) (*Result, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		s.metrics.ObserveRequest(KindDeepResearch, metrics.OutcomeRejected)
		return nil, ErrEmptyInput
	}

	free, err := s.ledger.ChargeDeepResearch(userID)
	if err != nil {
		s.metrics.ObserveRequest(KindDeepResearch, metrics.OutcomeLimited)
		return nil, err
	}

	start := s.now()
	answer, err := s.searcher.DeepResearch(ctx, topic, initialAnalysis)
	elapsed := s.now().Sub(start)
	s.metrics.ObserveUpstream(KindDeepResearch, elapsed)

	if err != nil {
		s.ledger.RefundDeepResearch(userID, free)
		s.metrics.ObserveRequest(KindDeepResearch, metrics.OutcomeError)
		s.logger.Error().Err(err).Str("user_id", userID).Bool("free", free).Msg("deep research failed, charge reverted")
		return nil, fmt.Errorf("%s: %w", KindDeepResearch, err)
	}
	s.metrics.ObserveRequest(KindDeepResearch, metrics.OutcomeOK)

	body := s.deepResearchHeader(elapsed) + s.formatter.FormatDeepResearch(answer)
	text, report := s.withSources(body, answer)

	s.logger.Info().
		Str("user_id", userID).
		Bool("free", free).
		Dur("duration", elapsed).
		Int("sources", report.TotalFound).
		Msg("deep research served")

	return &Result{
		Kind:     KindDeepResearch,
		Text:     text,
		Report:   report,
		Account:  s.ledger.Stats(userID),
		Duration: elapsed,
		Free:     free,
	}, nil
}

// SourceReport analyzes the sources cited in text without calling the search API
func (s *Service) SourceReport(text string) model.SourceReport {
	return s.ranker.Analyze(text)
}

// withSources appends the rendered source report when the answer cites any URL
func (s *Service) withSources(text, answer string) (string, model.SourceReport) {
	report := s.ranker.Analyze(answer)
	s.metrics.ObserveReport(report)

	if report.Empty() {
		return text, report
	}
	return text + "\n\n" + s.formatter.FormatSourceReport(report), report
}

func (s *Service) deepResearchHeader(elapsed time.Duration) string {
	var b strings.Builder
	b.WriteString("🔬 **DEEP RESEARCH COMPLETE**\n\n")
	b.WriteString(fmt.Sprintf("⏱️ **Duration:** %d seconds\n", int(elapsed.Seconds())))
	b.WriteString(fmt.Sprintf("🧠 **Model:** %s\n", s.deepModel))
	b.WriteString("📊 **Analysis type:** in-depth research\n\n")
	b.WriteString("---\n\n")
	return b.String()
}
