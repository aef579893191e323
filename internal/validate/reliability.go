package validate

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/idna"

	"github.com/ppiankov/factbot/internal/model"
)

// Advisory texts shown next to a scored source
const (
	AdvisoryHigh   = "High-reliability source"
	AdvisoryMedium = "Medium-reliability source"
	AdvisoryBiased = "Source with potential bias — evaluate critically"
	AdvisoryLow    = "Low reliability source"
)

// Reliability scores per tier
const (
	ScoreHigh       = 0.9
	ScoreMedium     = 0.7
	ScoreBiased     = 0.3
	ScoreLow        = 0.1
	ScoreUnknown    = 0.5
	ScoreUnparsable = 0.1
)

// ReliabilityScorer converts URLs into scored sources
type ReliabilityScorer struct {
	table *ReputationTable
}

// NewReliabilityScorer creates a scorer backed by the given table.
// A nil table falls back to the built-in lists.
func NewReliabilityScorer(table *ReputationTable) *ReliabilityScorer {
	if table == nil {
		table = NewReputationTable(DefaultTierLists())
	}
	return &ReliabilityScorer{table: table}
}

// Score assesses a single URL. It never fails: URLs without a usable host
// get the lowest score.
func (s *ReliabilityScorer) Score(rawURL string) model.ScoredSource {
	domain := ExtractDomain(rawURL)
	if domain == "" {
		return model.ScoredSource{
			URL:      rawURL,
			Score:    ScoreUnparsable,
			Tier:     model.TierUnknown,
			Advisory: AdvisoryLow,
		}
	}

	tier := s.table.Classify(domain)

	return model.ScoredSource{
		URL:      rawURL,
		Domain:   domain,
		Score:    ScoreForTier(tier),
		Tier:     tier,
		Advisory: AdvisoryForTier(tier),
	}
}

// ScoreForTier maps a tier to its fixed reliability score
func ScoreForTier(tier model.ReliabilityTier) float64 {
	switch tier {
	case model.TierHigh:
		return ScoreHigh
	case model.TierMedium:
		return ScoreMedium
	case model.TierBiased:
		return ScoreBiased
	case model.TierLow:
		return ScoreLow
	default:
		return ScoreUnknown
	}
}

// AdvisoryForTier maps a tier to its advisory text. Unknown tiers carry none.
func AdvisoryForTier(tier model.ReliabilityTier) string {
	switch tier {
	case model.TierHigh:
		return AdvisoryHigh
	case model.TierMedium:
		return AdvisoryMedium
	case model.TierBiased:
		return AdvisoryBiased
	case model.TierLow:
		return AdvisoryLow
	default:
		return ""
	}
}

// ExtractDomain returns the normalized host of a URL, or "" if it has none
func ExtractDomain(rawURL string) string {
	var host string
	if parsed, err := url.Parse(rawURL); err == nil {
		host = parsed.Hostname()
	} else {
		// A bad escape in the path or a non-numeric port fails the whole
		// parse even when the host itself is fine
		host = authorityHost(rawURL)
	}

	host = NormalizeHost(host)
	if host == "" {
		return ""
	}

	// Internationalized hosts are compared in their ASCII form
	if !isASCII(host) {
		if ascii, err := idna.Punycode.ToASCII(host); err == nil {
			host = ascii
		}
	}

	return host
}

// authorityHost reads the host between "://" and the first "/", "?" or "#",
// without userinfo and port. It returns "" unless the host is made of
// letters, digits, dots and hyphens.
func authorityHost(rawURL string) string {
	i := strings.Index(rawURL, "://")
	if i < 0 {
		return ""
	}

	authority := rawURL[i+3:]
	if j := strings.IndexAny(authority, "/?#"); j >= 0 {
		authority = authority[:j]
	}
	if j := strings.LastIndex(authority, "@"); j >= 0 {
		authority = authority[j+1:]
	}
	if strings.HasPrefix(authority, "[") {
		return ""
	}
	if j := strings.Index(authority, ":"); j >= 0 {
		authority = authority[:j]
	}

	for _, r := range authority {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '-' {
			return ""
		}
	}
	return authority
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
