// Package normalize converts raw extracted strings into canonical typed
// values. Every entry point is a total function: malformed input yields a
// zero value, never an error or panic.
package normalize

import (
	"time"

	"github.com/bolpress/newsharvest/internal/pipeline"
)

// Rules bundles the per-source normalization configuration.
type Rules struct {
	Source       string
	SectionDepth int
	Dates        *DateGrammar
	Agency       AgencyRules
}

// Normalizer implements pipeline.Normalizer for one source.
type Normalizer struct {
	rules Rules
}

// New builds a Normalizer from the given rules.
func New(rules Rules) *Normalizer {
	return &Normalizer{rules: rules}
}

// Normalize maps a raw record onto the canonical article shape. Pure: the
// only inputs are the record and the snapshot date supplied by the caller.
func (n *Normalizer) Normalize(raw pipeline.RawArticle, snapshot time.Time) pipeline.Article {
	city, agency := n.rules.Agency.Parse(raw.DateAgency)

	return pipeline.Article{
		URL:          raw.URL,
		Headline:     raw.Headline,
		Subheadline:  raw.Subheadline,
		Author:       raw.Author,
		Content:      raw.Content,
		Related:      raw.Related,
		PublishedAt:  n.rules.Dates.Parse(raw.DateText),
		Section:      Section(raw.URL, n.rules.SectionDepth),
		Source:       n.rules.Source,
		City:         city,
		Agency:       agency,
		SnapshotDate: snapshot,
	}
}
