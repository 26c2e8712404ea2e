// Package locator implements the element query grammar used by scenarios.
//
// Supported forms:
//
//	xpath=html/body/div[2]/form/button   XPath expression
//	css=form button[type=submit]          CSS selector
//	text=sent successfully                case-insensitive substring
//	text="Message sent successfully!"     exact text
//	text=/giriş yapılamadı/i              regular expression
//
// Bare strings starting with "/" or "(" are XPath, bare double-quoted strings
// are exact text and anything else is CSS. A trailing " >> nth=<k>" selects the
// k-th match in document order.
package locator

import (
	"fmt"
	"strconv"
	"strings"
)

// Strategy identifies how a Locator query is evaluated.
type Strategy string

const (
	XPath Strategy = "xpath"
	CSS   Strategy = "css"
	Text  Strategy = "text"
)

const nthSuffix = ">> nth="

// Locator is a parsed element query.
type Locator struct {
	Strategy Strategy
	Query    string
	// Nth selects the n-th match in document order. Zero is the first match.
	Nth int
}

// Parse converts a locator string into a Locator.
func Parse(raw string) (Locator, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Locator{}, fmt.Errorf("locator is empty")
	}

	nth := 0
	if idx := strings.LastIndex(s, nthSuffix); idx >= 0 {
		n, err := strconv.Atoi(strings.TrimSpace(s[idx+len(nthSuffix):]))
		if err != nil || n < 0 {
			return Locator{}, fmt.Errorf("invalid nth index in locator %q", raw)
		}
		nth = n
		s = strings.TrimSpace(s[:idx])
	}

	var loc Locator
	switch {
	case strings.HasPrefix(s, "xpath="):
		loc = Locator{Strategy: XPath, Query: strings.TrimPrefix(s, "xpath=")}
	case strings.HasPrefix(s, "css="):
		loc = Locator{Strategy: CSS, Query: strings.TrimPrefix(s, "css=")}
	case strings.HasPrefix(s, "text="):
		loc = Locator{Strategy: Text, Query: strings.TrimPrefix(s, "text=")}
	case strings.HasPrefix(s, "/"), strings.HasPrefix(s, "("):
		loc = Locator{Strategy: XPath, Query: s}
	case len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`):
		loc = Locator{Strategy: Text, Query: s}
	default:
		loc = Locator{Strategy: CSS, Query: s}
	}
	loc.Nth = nth

	if strings.TrimSpace(loc.Query) == "" {
		return Locator{}, fmt.Errorf("locator %q has an empty %s query", raw, loc.Strategy)
	}
	if loc.Strategy == Text {
		if _, err := ParseTextMatcher(loc.Query); err != nil {
			return Locator{}, err
		}
	}
	return loc, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level constants.
func MustParse(raw string) Locator {
	loc, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return loc
}

// ForText builds a text locator matching the given needle as a substring.
func ForText(needle string) Locator {
	return Locator{Strategy: Text, Query: needle}
}

// String renders the locator in its canonical prefixed form. The output is
// accepted by Parse and by Playwright selector engines.
func (l Locator) String() string {
	s := string(l.Strategy) + "=" + l.Query
	if l.Nth > 0 {
		s += " " + nthSuffix + strconv.Itoa(l.Nth)
	}
	return s
}

// IsZero reports whether the locator is unset.
func (l Locator) IsZero() bool {
	return l.Query == ""
}

// TextMode describes how a text locator compares element text.
type TextMode string

const (
	TextSubstring TextMode = "substring"
	TextExact     TextMode = "exact"
	TextRegex     TextMode = "regex"
)

// TextMatcher is the decoded form of a text locator query.
type TextMatcher struct {
	Mode    TextMode
	Pattern string
	// Flags holds regular expression flags (for example "i"). Only set for TextRegex.
	Flags string
}

// ParseTextMatcher decodes the query part of a text locator.
func ParseTextMatcher(query string) (TextMatcher, error) {
	q := strings.TrimSpace(query)
	switch {
	case q == "":
		return TextMatcher{}, fmt.Errorf("text locator is empty")
	case len(q) >= 2 && strings.HasPrefix(q, `"`) && strings.HasSuffix(q, `"`):
		return TextMatcher{Mode: TextExact, Pattern: q[1 : len(q)-1]}, nil
	case strings.HasPrefix(q, "/"):
		end := strings.LastIndex(q, "/")
		if end <= 0 {
			return TextMatcher{}, fmt.Errorf("unterminated regular expression in text locator %q", query)
		}
		flags := q[end+1:]
		for _, f := range flags {
			if !strings.ContainsRune("imsu", f) {
				return TextMatcher{}, fmt.Errorf("unsupported regular expression flag %q in text locator %q", f, query)
			}
		}
		pattern := q[1:end]
		if pattern == "" {
			return TextMatcher{}, fmt.Errorf("empty regular expression in text locator %q", query)
		}
		return TextMatcher{Mode: TextRegex, Pattern: pattern, Flags: flags}, nil
	default:
		return TextMatcher{Mode: TextSubstring, Pattern: q}, nil
	}
}
