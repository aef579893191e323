package model

// ReliabilityTier represents the reputation class of a source domain
type ReliabilityTier int

const (
	TierUnknown ReliabilityTier = 0 // Not present in the reputation table
	TierHigh    ReliabilityTier = 1 // Journals, international bodies, wire agencies, universities
	TierMedium  ReliabilityTier = 2 // Regional and specialist press
	TierBiased  ReliabilityTier = 3 // State, partisan, or opposition outlets
	TierLow     ReliabilityTier = 4 // Social networks, blogs, user-generated content
)

// TierPriority is the order in which tiers win when a domain is listed more than once
var TierPriority = []ReliabilityTier{TierHigh, TierMedium, TierBiased, TierLow}

func (t ReliabilityTier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierBiased:
		return "biased"
	case TierLow:
		return "low"
	default:
		return "unknown"
	}
}

// MarshalText renders the tier by name in JSON and YAML output
func (t ReliabilityTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts the names written by MarshalText
func (t *ReliabilityTier) UnmarshalText(text []byte) error {
	*t = ParseTier(string(text))
	return nil
}

// ParseTier converts a tier name to ReliabilityTier
func ParseTier(s string) ReliabilityTier {
	switch s {
	case "high", "1":
		return TierHigh
	case "medium", "2":
		return TierMedium
	case "biased", "3":
		return TierBiased
	case "low", "4":
		return TierLow
	default:
		return TierUnknown
	}
}

// ScoredSource is a single URL with its reliability assessment
type ScoredSource struct {
	URL      string          `json:"url" yaml:"url"`
	Domain   string          `json:"domain" yaml:"domain"` // Normalized host, empty when unparseable
	Score    float64         `json:"score" yaml:"score"`   // 0.0 - 1.0
	Tier     ReliabilityTier `json:"tier" yaml:"tier"`
	Advisory string          `json:"advisory,omitempty" yaml:"advisory,omitempty"` // Empty for unclassified domains
}

// Bucket is the aggregate quality group a score falls into.
// Bucket boundaries are coarser than tiers: an unknown domain (0.5) counts as Biased.
type Bucket string

const (
	BucketHigh   Bucket = "high"   // score >= 0.8
	BucketMedium Bucket = "medium" // 0.6 <= score < 0.8
	BucketBiased Bucket = "biased" // 0.3 <= score < 0.6
	BucketLow    Bucket = "low"    // score < 0.3
)

// BucketFor returns the aggregate bucket for a score
func BucketFor(score float64) Bucket {
	switch {
	case score >= 0.8:
		return BucketHigh
	case score >= 0.6:
		return BucketMedium
	case score >= 0.3:
		return BucketBiased
	default:
		return BucketLow
	}
}

// BucketCounts holds the number of sources per aggregate bucket
type BucketCounts struct {
	High   int `json:"high" yaml:"high"`
	Medium int `json:"medium" yaml:"medium"`
	Biased int `json:"biased" yaml:"biased"`
	Low    int `json:"low" yaml:"low"`
}

// Add increments the counter for b
func (c *BucketCounts) Add(b Bucket) {
	switch b {
	case BucketHigh:
		c.High++
	case BucketMedium:
		c.Medium++
	case BucketBiased:
		c.Biased++
	default:
		c.Low++
	}
}

// Total returns the sum over all buckets
func (c BucketCounts) Total() int {
	return c.High + c.Medium + c.Biased + c.Low
}

// SourceReport is the ranked and bucketed assessment of every URL in a text
type SourceReport struct {
	TotalFound      int            `json:"total_found" yaml:"total_found"`
	Counts          BucketCounts   `json:"counts" yaml:"counts"`
	Analysis        string         `json:"analysis" yaml:"analysis"`               // Short human-readable summary
	RankedSources   []ScoredSource `json:"ranked_sources" yaml:"ranked_sources"`   // Descending by score, stable
	Recommendations []string       `json:"recommendations" yaml:"recommendations"` // 0-3 lines
}

// Empty reports whether no sources were found
func (r SourceReport) Empty() bool {
	return r.TotalFound == 0
}
