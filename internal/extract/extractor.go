// Package extract pulls structured fields out of article HTML using
// per-source selector profiles.
package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bolpress/newsharvest/internal/pipeline"
)

// Extractor implements pipeline.Extractor for one selector profile.
type Extractor struct {
	profile Profile
}

// New builds an Extractor from a profile.
func New(profile Profile) *Extractor {
	return &Extractor{profile: profile}
}

// Extract applies the profile to the document. A selector that matches
// nothing leaves the field absent with a gap reason; it never fails the
// record. A record with only the URL populated is still returned.
func (e *Extractor) Extract(doc pipeline.Document) pipeline.RawArticle {
	raw := pipeline.RawArticle{
		URL:  doc.URL,
		Gaps: make(map[pipeline.Field]pipeline.GapReason),
	}

	root, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		for field := range e.profile.Fields {
			raw.Gaps[field] = pipeline.GapUnparseableDoc
		}
		return raw
	}

	for field, rule := range e.profile.Fields {
		value, gap := e.extractField(root, rule)
		if gap != "" {
			raw.Gaps[field] = gap
			continue
		}
		e.assign(&raw, field, value)
	}

	if raw.Content != "" && e.profile.BodyMarker != "" {
		raw.Content, raw.Related = SplitContent(raw.Content, e.profile.BodyMarker)
	}
	return raw
}

func (e *Extractor) extractField(root *goquery.Document, rule FieldRule) (string, pipeline.GapReason) {
	sel := root.Find(rule.Selector)
	if sel.Length() == 0 {
		return "", pipeline.GapSelectorNoMatch
	}

	var value string
	switch {
	case rule.JoinAll:
		parts := make([]string, 0, sel.Length())
		sel.Each(func(_ int, s *goquery.Selection) {
			if p := CleanText(nodeValue(s, rule.Attr)); p != "" {
				parts = append(parts, p)
			}
		})
		value = strings.Join(parts, " ")
	case rule.Last:
		value = CleanText(nodeValue(sel.Last(), rule.Attr))
	default:
		value = CleanText(nodeValue(sel.First(), rule.Attr))
	}

	if rule.TrimChars != "" {
		value = strings.Trim(value, rule.TrimChars)
	}
	if value == "" {
		return "", pipeline.GapEmptyAfterClean
	}
	return value, ""
}

func (e *Extractor) assign(raw *pipeline.RawArticle, field pipeline.Field, value string) {
	switch field {
	case pipeline.FieldHeadline:
		raw.Headline = value
	case pipeline.FieldSubheadline:
		raw.Subheadline = value
	case pipeline.FieldDate:
		raw.DateText = value
	case pipeline.FieldAuthor:
		raw.Author = value
	case pipeline.FieldContent:
		raw.Content = value
	case pipeline.FieldDateAgency:
		raw.DateAgency = value
	}
}

func nodeValue(s *goquery.Selection, attr string) string {
	if attr != "" {
		v, _ := s.Attr(attr)
		return v
	}
	return s.Text()
}
