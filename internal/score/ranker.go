package score

import (
	"fmt"
	"sort"

	"github.com/ppiankov/factbot/internal/extract"
	"github.com/ppiankov/factbot/internal/model"
	"github.com/ppiankov/factbot/internal/validate"
)

// Recommendation texts, appended in this order
const (
	RecommendBiased     = "Sources with potential bias detected — evaluate critically"
	RecommendLow        = "Some sources have low reliability"
	RecommendFindHigher = "Consider finding additional high-reliability sources"
)

// NoSourcesAnalysis is the analysis text of an empty report
const NoSourcesAnalysis = "No sources found"

// Ranker scores, ranks and aggregates the sources cited in a text.
// It holds no mutable state and is safe for concurrent use.
type Ranker struct {
	extractor *extract.URLExtractor
	scorer    *validate.ReliabilityScorer
}

// NewRanker creates a new ranker backed by the given scorer.
// A nil scorer uses the built-in reputation table.
func NewRanker(scorer *validate.ReliabilityScorer) *Ranker {
	if scorer == nil {
		scorer = validate.NewReliabilityScorer(nil)
	}
	return &Ranker{
		extractor: extract.NewURLExtractor(),
		scorer:    scorer,
	}
}

// Analyze extracts every URL from text and produces the aggregated source report
func (r *Ranker) Analyze(text string) model.SourceReport {
	urls := r.extractor.Extract(text)
	if len(urls) == 0 {
		return model.SourceReport{
			TotalFound:      0,
			Analysis:        NoSourcesAnalysis,
			RankedSources:   []model.ScoredSource{},
			Recommendations: []string{},
		}
	}

	ranked := r.Rank(urls)

	var counts model.BucketCounts
	for _, src := range ranked {
		counts.Add(model.BucketFor(src.Score))
	}

	return model.SourceReport{
		TotalFound:      len(urls),
		Counts:          counts,
		Analysis:        describeCounts(len(urls), counts),
		RankedSources:   ranked,
		Recommendations: recommend(counts),
	}
}

// Rank scores each URL and orders the result by score, highest first.
// Equal scores keep their input order.
func (r *Ranker) Rank(urls []string) []model.ScoredSource {
	ranked := make([]model.ScoredSource, 0, len(urls))
	for _, u := range urls {
		ranked = append(ranked, r.scorer.Score(u))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked
}

// recommend derives advice lines from the bucket counts
func recommend(counts model.BucketCounts) []string {
	recommendations := []string{}

	if counts.Biased > 0 {
		recommendations = append(recommendations, RecommendBiased)
	}
	if counts.Low > 0 {
		recommendations = append(recommendations, RecommendLow)
	}
	if counts.High == 0 {
		recommendations = append(recommendations, RecommendFindHigher)
	}

	return recommendations
}

// describeCounts renders the bucket breakdown as plain text
func describeCounts(total int, counts model.BucketCounts) string {
	return fmt.Sprintf("Sources found: %d\nHigh reliability: %d\nMedium reliability: %d\nPotential bias: %d\nLow reliability: %d",
		total, counts.High, counts.Medium, counts.Biased, counts.Low)
}
