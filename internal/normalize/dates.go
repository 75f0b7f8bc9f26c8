package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SpanishMonths maps lowercase Spanish month names to months.
var SpanishMonths = map[string]time.Month{
	"enero":      time.January,
	"febrero":    time.February,
	"marzo":      time.March,
	"abril":      time.April,
	"mayo":       time.May,
	"junio":      time.June,
	"julio":      time.July,
	"agosto":     time.August,
	"septiembre": time.September,
	"octubre":    time.October,
	"noviembre":  time.November,
	"diciembre":  time.December,
}

// DateRule is one entry in the ordered date grammar. The pattern must expose
// named captures "day", "month" and "year"; a "time" capture is optional and
// falls back to the grammar-level time pattern.
type DateRule struct {
	Pattern *regexp.Regexp
}

// DateGrammar parses locale-specific date text declaratively: an ordered list
// of rules plus a month lookup table. Adding a source format is a data change.
type DateGrammar struct {
	Months      map[string]time.Month
	Rules       []DateRule
	TimePattern *regexp.Regexp
	Location    *time.Location
}

var defaultTimePattern = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)

// NewSpanishGrammar returns the grammar for the bundled Spanish-language
// sources: "12 de junio de 2025", optionally followed elsewhere by "14:30".
func NewSpanishGrammar() *DateGrammar {
	return &DateGrammar{
		Months: SpanishMonths,
		Rules: []DateRule{
			{Pattern: regexp.MustCompile(`(?i)(?P<day>\d{1,2})\s+de\s+(?P<month>[a-záéíóúñ]+)\s+de\s+(?P<year>\d{4})`)},
			{Pattern: regexp.MustCompile(`(?P<day>\d{1,2})[/-](?P<month>\d{1,2})[/-](?P<year>\d{4})`)},
		},
		TimePattern: defaultTimePattern,
		Location:    time.UTC,
	}
}

// CompileRules turns regex source strings into date rules, for grammars
// loaded from configuration.
func CompileRules(patterns []string) ([]DateRule, error) {
	rules := make([]DateRule, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		rules = append(rules, DateRule{Pattern: re})
	}
	return rules, nil
}

// Parse converts raw date text into a timestamp. It is total over string
// input: any text that fails tokenization or month lookup yields nil.
func (g *DateGrammar) Parse(text string) *time.Time {
	if g == nil {
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// The weekday prefix, when present, is the text before the first comma
	// ("jueves, 12 de junio de 2025 14:30").
	if idx := strings.Index(text, ","); idx >= 0 {
		rest := strings.TrimSpace(text[idx+1:])
		if rest != "" {
			text = rest
		}
	}

	for _, rule := range g.Rules {
		if ts, ok := g.applyRule(rule, text); ok {
			return ts
		}
	}
	return nil
}

func (g *DateGrammar) applyRule(rule DateRule, text string) (*time.Time, bool) {
	groups := namedCaptures(rule.Pattern, text)
	if groups == nil {
		return nil, false
	}

	day, err := strconv.Atoi(groups["day"])
	if err != nil || day < 1 || day > 31 {
		return nil, false
	}
	month, ok := g.lookupMonth(groups["month"])
	if !ok {
		return nil, false
	}
	year, err := strconv.Atoi(groups["year"])
	if err != nil || year < 1000 {
		return nil, false
	}

	hour, minute := g.findTime(groups["time"], text)

	loc := g.Location
	if loc == nil {
		loc = time.UTC
	}
	ts := time.Date(year, month, day, hour, minute, 0, 0, loc)
	// time.Date normalizes out-of-range days (31 de febrero rolls over);
	// reject those instead of persisting a wrong date.
	if ts.Day() != day || ts.Month() != month {
		return nil, false
	}
	return &ts, true
}

func (g *DateGrammar) lookupMonth(raw string) (time.Month, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return 0, false
	}
	if m, ok := g.Months[raw]; ok {
		return m, true
	}
	if n, err := strconv.Atoi(raw); err == nil && n >= 1 && n <= 12 {
		return time.Month(n), true
	}
	return 0, false
}

func (g *DateGrammar) findTime(captured, text string) (int, int) {
	candidate := captured
	if candidate == "" {
		tp := g.TimePattern
		if tp == nil {
			tp = defaultTimePattern
		}
		candidate = tp.FindString(text)
	}
	parts := strings.SplitN(strings.TrimSpace(candidate), ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0
	}
	return hour, minute
}

func namedCaptures(re *regexp.Regexp, text string) map[string]string {
	match := re.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	groups := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(match) {
			groups[name] = match[i]
		}
	}
	return groups
}
