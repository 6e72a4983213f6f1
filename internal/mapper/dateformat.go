package mapper

import (
	"fmt"
	"strings"
	"time"
)

// DateFormat is one date-detection pattern: a format string holding one or
// more layout alternatives separated by "||", tried in order. Patterns use
// the conventional letter notation (yyyy, MM, dd, HH, mm, ss) or one of the
// named formats.
type DateFormat struct {
	format  string
	layouts []string
}

// Named formats resolvable without pattern translation.
var namedLayouts = map[string][]string{
	"date_optional_time": {
		"2006-01-02T15:04:05.000Z07:00",
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	},
}

// DefaultDateFormats is the default detection pair: the strict ISO-like
// format plus the slash/space form.
var DefaultDateFormats = []DateFormat{
	MustDateFormat("date_optional_time"),
	MustDateFormat("yyyy/MM/dd HH:mm:ss||yyyy/MM/dd"),
}

// ParseDateFormat compiles a date format pattern.
func ParseDateFormat(pattern string) (DateFormat, error) {
	if pattern == "" {
		return DateFormat{}, parsingErrorf("empty date format")
	}
	var layouts []string
	for _, alt := range strings.Split(pattern, "||") {
		if named, ok := namedLayouts[alt]; ok {
			layouts = append(layouts, named...)
			continue
		}
		layout, err := translatePattern(alt)
		if err != nil {
			return DateFormat{}, err
		}
		layouts = append(layouts, layout)
	}
	return DateFormat{format: pattern, layouts: layouts}, nil
}

// MustDateFormat compiles a pattern or panics. For package defaults and
// tests only.
func MustDateFormat(pattern string) DateFormat {
	f, err := ParseDateFormat(pattern)
	if err != nil {
		panic(err)
	}
	return f
}

// Format returns the original pattern string.
func (f DateFormat) Format() string { return f.format }

// Zero reports whether the format is the zero value.
func (f DateFormat) Zero() bool { return f.format == "" }

// Parse parses s against the format's alternatives in order. The whole
// input must match; a partial match is a failure.
func (f DateFormat) Parse(s string) (time.Time, error) {
	for _, layout := range f.layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("value %q does not match format %q", s, f.format)
}

// pattern letters in longest-match-first order
var patternTokens = []struct {
	pat    string
	layout string
}{
	{"yyyy", "2006"},
	{"yy", "06"},
	{"MM", "01"},
	{"dd", "02"},
	{"HH", "15"},
	{"mm", "04"},
	{"ss", "05"},
	{"SSS", "000"},
	{"Z", "-0700"},
}

// translatePattern converts a letter pattern into a Go time layout.
func translatePattern(pattern string) (string, error) {
	var sb strings.Builder
	i := 0
outer:
	for i < len(pattern) {
		c := pattern[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			for _, tok := range patternTokens {
				if strings.HasPrefix(pattern[i:], tok.pat) {
					sb.WriteString(tok.layout)
					i += len(tok.pat)
					continue outer
				}
			}
			if c == 'T' {
				// literal separator in ISO-like patterns
				sb.WriteByte('T')
				i++
				continue
			}
			return "", parsingErrorf("unsupported date pattern letter %q in [%s]", string(c), pattern)
		}
		sb.WriteByte(c)
		i++
	}
	return sb.String(), nil
}
