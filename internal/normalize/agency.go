package normalize

import (
	"regexp"
	"strings"
)

// AgencyAlias canonicalizes a known agency name variant. Prefix matches a
// cleaned token starting with the given uppercase prefix, Squash matches the
// token with all spaces removed.
type AgencyAlias struct {
	Prefix    string
	Squash    string
	Canonical string
}

// AgencyRules parses the city/agency fragment leading the first content
// paragraph, e.g. "La Paz, 12 jun (ANF).-".
type AgencyRules struct {
	// Replacements fix known punctuation drift before tokenizing,
	// e.g. "La Paz." -> "La Paz,".
	Replacements map[string]string
	Aliases      []AgencyAlias
}

var (
	cityPattern   = regexp.MustCompile(`^([^,.]+)`)
	parenPattern  = regexp.MustCompile(`\(([^)]+)\)`)
	dashVariants  = regexp.MustCompile(`[–—−]`)
	agencyLetters = regexp.MustCompile(`[^A-Za-zÁÉÍÓÚÜÑáéíóúüñ ]`)
	spaceRuns     = regexp.MustCompile(`\s+`)
)

// NewANFAgencyRules returns the rules for the ANF-style wire prefix.
func NewANFAgencyRules() AgencyRules {
	return AgencyRules{
		Replacements: map[string]string{
			"MADRID ": "MADRID,",
			"La Paz.": "La Paz,",
		},
		Aliases: []AgencyAlias{
			{Prefix: "ANF", Canonical: "ANF"},
			{Squash: "EUROPAPRESS", Canonical: "EUROPA PRESS"},
		},
	}
}

// Parse extracts the city and canonical agency token from the fragment.
// Total over string input: malformed fragments yield empty strings.
func (r AgencyRules) Parse(text string) (city, agency string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}
	for old, repl := range r.Replacements {
		text = strings.ReplaceAll(text, old, repl)
	}

	if m := cityPattern.FindStringSubmatch(text); m != nil {
		city = strings.TrimSpace(m[1])
	}

	// Parenthesized text is the preferred agency token; otherwise fall back
	// to the last whitespace-delimited token of the prefix.
	raw := ""
	if m := parenPattern.FindStringSubmatch(text); m != nil {
		raw = m[1]
	} else {
		fields := strings.Fields(text)
		if len(fields) > 0 {
			raw = fields[len(fields)-1]
		}
	}

	agency = r.canonicalize(cleanAgencyToken(raw))
	return city, agency
}

func cleanAgencyToken(raw string) string {
	raw = dashVariants.ReplaceAllString(raw, "-")
	raw = agencyLetters.ReplaceAllString(raw, "")
	raw = spaceRuns.ReplaceAllString(raw, " ")
	return strings.TrimSpace(raw)
}

func (r AgencyRules) canonicalize(token string) string {
	if token == "" {
		return ""
	}
	upper := strings.ToUpper(token)
	squashed := strings.ReplaceAll(upper, " ", "")
	for _, alias := range r.Aliases {
		if alias.Prefix != "" && strings.HasPrefix(upper, alias.Prefix) {
			return alias.Canonical
		}
		if alias.Squash != "" && squashed == alias.Squash {
			return alias.Canonical
		}
	}
	// Unrecognized but well-formed tokens pass through unchanged.
	return token
}
