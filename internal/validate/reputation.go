package validate

import (
	"strings"

	"github.com/ppiankov/factbot/internal/model"
)

// TierLists holds the domains assigned to each reputation tier
type TierLists struct {
	High   []string
	Medium []string
	Biased []string
	Low    []string
}

// ReputationTable classifies normalized domains into reliability tiers.
// It is immutable after construction and safe for concurrent readers.
type ReputationTable struct {
	domains map[string]model.ReliabilityTier
}

// DefaultTierLists returns the built-in reputation lists.
// Some domains appear in more than one list; the higher tier wins.
func DefaultTierLists() TierLists {
	return TierLists{
		High: []string{
			// Scientific journals and databases
			"nature.com", "science.org", "pubmed.ncbi.nlm.nih.gov", "scholar.google.com",
			"arxiv.org", "jstor.org", "springer.com", "wiley.com", "elsevier.com",

			// International organizations and agencies
			"un.org", "who.int", "imf.org", "worldbank.org", "oecd.org", "europa.eu",
			"fda.gov", "cdc.gov", "nih.gov", "nsa.gov", "cia.gov",

			// International news agencies
			"reuters.com", "ap.org", "afp.com", "bbc.com", "dw.com", "france24.com",
			"aljazeera.com", "rt.com", "sputniknews.com",

			// Academic institutions
			"harvard.edu", "mit.edu", "stanford.edu", "yale.edu", "princeton.edu",
			"oxford.ac.uk", "cambridge.ac.uk", "sorbonne.fr", "mpg.de",

			// Business and technology press
			"bloomberg.com", "wsj.com", "ft.com", "economist.com", "forbes.com",
			"wired.com", "techcrunch.com", "venturebeat.com",
		},
		Medium: []string{
			// Regional news
			"cnn.com", "foxnews.com", "msnbc.com", "npr.org", "pbs.org",
			"guardian.com", "independent.co.uk", "telegraph.co.uk",
			"lemonde.fr", "spiegel.de", "repubblica.it", "elpais.com",

			// Specialist press
			"wired.com", "techcrunch.com", "venturebeat.com", "arstechnica.com",
			"theverge.com", "engadget.com", "gizmodo.com",
		},
		Biased: []string{
			// State media
			"ria.ru", "tass.ru", "rt.com", "sputniknews.com", "gazeta.ru",
			"lenta.ru", "rbc.ru", "interfax.ru", "kommersant.ru",

			// Opposition and foreign-funded outlets
			"meduza.io", "currenttime.tv", "svoboda.org", "dw.com",
			"bbc.com", "voanews.com", "rferl.org",

			// Government and party sites
			"kremlin.ru", "government.ru", "duma.gov.ru",
		},
		Low: []string{
			"wikipedia.org", "reddit.com", "twitter.com", "facebook.com",
			"instagram.com", "tiktok.com", "youtube.com", "blogspot.com",
			"wordpress.com", "medium.com", "substack.com",
		},
	}
}

// NewReputationTable builds a table from tier lists.
// Lists are applied in priority order High > Medium > Biased > Low and the
// first tier that claims a domain keeps it.
func NewReputationTable(lists TierLists) *ReputationTable {
	table := &ReputationTable{
		domains: make(map[string]model.ReliabilityTier),
	}

	for _, tier := range model.TierPriority {
		for _, domain := range lists.forTier(tier) {
			domain = NormalizeHost(domain)
			if domain == "" {
				continue
			}
			if _, exists := table.domains[domain]; exists {
				continue
			}
			table.domains[domain] = tier
		}
	}

	return table
}

// NewDefaultReputationTable builds the built-in table extended with configured domains
func NewDefaultReputationTable(extra model.SourcesConfig) *ReputationTable {
	lists := DefaultTierLists()
	lists.High = append(lists.High, extra.High...)
	lists.Medium = append(lists.Medium, extra.Medium...)
	lists.Biased = append(lists.Biased, extra.Biased...)
	lists.Low = append(lists.Low, extra.Low...)
	return NewReputationTable(lists)
}

// Classify returns the tier of an already normalized domain.
// Unlisted domains are TierUnknown.
func (r *ReputationTable) Classify(domain string) model.ReliabilityTier {
	if tier, ok := r.domains[domain]; ok {
		return tier
	}
	return model.TierUnknown
}

// Len returns the number of classified domains
func (r *ReputationTable) Len() int {
	return len(r.domains)
}

func (l TierLists) forTier(tier model.ReliabilityTier) []string {
	switch tier {
	case model.TierHigh:
		return l.High
	case model.TierMedium:
		return l.Medium
	case model.TierBiased:
		return l.Biased
	case model.TierLow:
		return l.Low
	default:
		return nil
	}
}

// NormalizeHost lower-cases a host and strips one leading "www."
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(host, "www.")
}
