package format

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// irregular plurals; everything else takes an "s".
var plurals = map[string]string{
	"entity":   "entities",
	"entry":    "entries",
	"query":    "queries",
	"analysis": "analyses",
	"gap":      "gaps",
}

// Plural formats n with the singular or plural form of noun.
func Plural(n int64, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	if p, ok := plurals[noun]; ok {
		return fmt.Sprintf("%d %s", n, p)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// Percent renders a 0-1 ratio as a rounded percentage. Values outside the
// range are clamped.
func Percent(ratio float64) string {
	if math.IsNaN(ratio) || ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return fmt.Sprintf("%d%%", int(math.Round(ratio*100)))
}

// Elapsed renders a duration in milliseconds the way the runtime counter
// does: "1h 5m", "3m 12s" or "42s".
func Elapsed(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	secs := ms / 1000
	hours := secs / 3600
	mins := secs / 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins%60)
	case mins > 0:
		return fmt.Sprintf("%dm %ds", mins, secs%60)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

// ShortDuration renders an operation duration: "850ms" up to a second,
// "1.2s" beyond.
func ShortDuration(ms int64) string {
	if ms > 1000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%dms", ms)
}

// Cost renders a dollar amount with three decimals, or "" when zero.
func Cost(usd float64) string {
	if usd <= 0 {
		return ""
	}
	return fmt.Sprintf("$%.3f", usd)
}

// Truncate shortens s to n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

// AgentTitle turns an agent id such as "web-researcher" into "Web Researcher".
func AgentTitle(agent string) string {
	if agent == "" {
		return "Unknown Agent"
	}
	words := strings.NewReplacer("-", " ", "_", " ").Replace(agent)
	// Casers are stateful; one per call.
	return cases.Title(language.English).String(words)
}
