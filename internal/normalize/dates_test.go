package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseWeekdayPrefixedDate(t *testing.T) {
	t.Parallel()

	g := NewSpanishGrammar()
	ts := g.Parse("jueves, 12 de junio de 2025 14:30")
	require.NotNil(t, ts)
	require.Equal(t, time.Date(2025, time.June, 12, 14, 30, 0, 0, time.UTC), *ts)
}

func TestParseDateWithoutWeekday(t *testing.T) {
	t.Parallel()

	g := NewSpanishGrammar()
	ts := g.Parse("1 de enero de 2024")
	require.NotNil(t, ts)
	require.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), *ts)
}

func TestParseDateEmbeddedInLongerText(t *testing.T) {
	t.Parallel()

	// ANF renders the date inside a longer fragment with the time elsewhere.
	g := NewSpanishGrammar()
	ts := g.Parse("Publicado el 3 de agosto de 2025 · 09:15 am")
	require.NotNil(t, ts)
	require.Equal(t, time.Date(2025, time.August, 3, 9, 15, 0, 0, time.UTC), *ts)
}

func TestParseNumericFallbackRule(t *testing.T) {
	t.Parallel()

	g := NewSpanishGrammar()
	ts := g.Parse("12/06/2025 14:30")
	require.NotNil(t, ts)
	require.Equal(t, time.Date(2025, time.June, 12, 14, 30, 0, 0, time.UTC), *ts)
}

func TestParseIsTotalOverMalformedInput(t *testing.T) {
	t.Parallel()

	g := NewSpanishGrammar()
	cases := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"garbage", "hace 3 horas"},
		{"unknown month", "12 de brumario de 2025"},
		{"missing year", "12 de junio"},
		{"impossible day", "31 de febrero de 2025"},
		{"comma only", ","},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Nil(t, g.Parse(tc.in))
		})
	}
}

func TestParseIgnoresOutOfRangeTime(t *testing.T) {
	t.Parallel()

	g := NewSpanishGrammar()
	ts := g.Parse("12 de junio de 2025 99:99")
	require.NotNil(t, ts)
	require.Equal(t, 0, ts.Hour(), "unparseable time should fall back to midnight")
	require.Equal(t, 0, ts.Minute())
}

func TestCompileRules(t *testing.T) {
	t.Parallel()

	rules, err := CompileRules([]string{`(?P<year>\d{4})-(?P<month>\d{2})-(?P<day>\d{2})`})
	require.NoError(t, err)

	g := NewSpanishGrammar()
	g.Rules = rules
	ts := g.Parse("2025-06-12")
	require.NotNil(t, ts)
	require.Equal(t, time.Date(2025, time.June, 12, 0, 0, 0, 0, time.UTC), *ts)

	_, err = CompileRules([]string{`(`})
	require.Error(t, err)
}

func TestParseNilGrammar(t *testing.T) {
	t.Parallel()

	var g *DateGrammar
	require.Nil(t, g.Parse("12 de junio de 2025"))
}
