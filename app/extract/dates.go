package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DatePatterns are tried in order when no explicit date format is configured.
var DatePatterns = []string{
	"yyyy-MM-dd HH:mm:ss",
	"yyyy-MM-dd",
	"yyyy/MM/dd HH:mm:ss",
	"yyyy/MM/dd",
	"yyyy年MM月dd日 HH:mm:ss",
	"yyyy年MM月dd日",
	"MM-dd HH:mm",
	"MM/dd HH:mm",
}

var dateCandidate = regexp.MustCompile(
	`\d{4}\s*[-/年]\s*\d{1,2}\s*[-/月]\s*\d{1,2}\s*日?(?:\s+\d{1,2}:\d{1,2}(?::\d{1,2})?)?` +
		`|\d{1,2}[-/]\d{1,2}\s+\d{1,2}:\d{1,2}`)

// javaLayoutTokens maps date pattern letters onto Go layout elements. Go's
// single digit elements accept one or two digit values, which keeps parsing
// lenient about zero padding.
var javaLayoutTokens = []struct {
	token, layout string
}{
	{"yyyy", "2006"},
	{"yy", "06"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "1"},
	{"M", "1"},
	{"dd", "2"},
	{"d", "2"},
	{"HH", "15"},
	{"H", "15"},
	{"hh", "3"},
	{"h", "3"},
	{"mm", "4"},
	{"m", "4"},
	{"ss", "5"},
	{"s", "5"},
	{"SSS", "000"},
	{"a", "PM"},
	{"EEEE", "Monday"},
	{"EEE", "Mon"},
	{"Z", "-0700"},
	{"XXX", "Z07:00"},
}

// GoLayout converts a pattern such as "yyyy/M/d HH:mm:ss" to a Go time layout.
// Characters that are not pattern letters are copied literally.
func GoLayout(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		matched := false
		for _, t := range javaLayoutTokens {
			if strings.HasPrefix(pattern[i:], t.token) {
				b.WriteString(t.layout)
				i += len(t.token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(pattern[i])
			i++
		}
	}
	return b.String()
}

// ParseDate reads a publish date from raw text. An explicit format is the only
// one tried when set; otherwise DatePatterns are tried, then free-form
// detection. Patterns without a year
// resolve to the most recent matching date not after now.
func ParseDate(raw, format string, now time.Time) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	candidates := []string{raw}
	if c := strings.TrimSpace(dateCandidate.FindString(raw)); c != "" && c != raw {
		candidates = append(candidates, c)
	}

	if format != "" {
		for _, c := range candidates {
			if t, ok := parseWithPattern(c, format, now); ok {
				return &t
			}
		}
		return nil
	}

	for _, c := range candidates {
		for _, pattern := range DatePatterns {
			if t, ok := parseWithPattern(c, pattern, now); ok {
				return &t
			}
		}
	}

	if t, err := dateparse.ParseIn(raw, now.Location()); err == nil {
		return &t
	}

	return nil
}

func parseWithPattern(value, pattern string, now time.Time) (time.Time, bool) {
	t, err := time.ParseInLocation(GoLayout(pattern), value, now.Location())
	if err != nil {
		return time.Time{}, false
	}

	if !strings.Contains(pattern, "y") {
		t = time.Date(now.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
		if t.After(now.Add(24 * time.Hour)) {
			t = t.AddDate(-1, 0, 0)
		}
	}

	return t, true
}
