package scenario

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/xkilldash9x/uiprobe/internal/locator"
)

// URLMatcher compares the active page URL. A "/re/" form is a JavaScript
// regular expression over the full URL; anything else is resolved against the target
// and compared exactly, ignoring a trailing slash.
type URLMatcher struct {
	raw string
	re  *regexp2.Regexp
}

// ParseURLMatcher decodes the url field of an assert_url step.
func ParseURLMatcher(raw string) (URLMatcher, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return URLMatcher{}, fmt.Errorf("url is empty")
	}
	if len(s) > 2 && strings.HasPrefix(s, "/") && strings.HasSuffix(s, "/") {
		re, err := locator.CompileJS(s[1:len(s)-1], "")
		if err != nil {
			return URLMatcher{}, fmt.Errorf("invalid url pattern %q: %w", raw, err)
		}
		return URLMatcher{raw: s, re: re}, nil
	}
	if _, err := url.Parse(s); err != nil {
		return URLMatcher{}, fmt.Errorf("invalid url %q: %w", raw, err)
	}
	return URLMatcher{raw: s}, nil
}

// Matches reports whether current satisfies the matcher, resolving relative
// expectations against base.
func (m URLMatcher) Matches(current, base string) bool {
	if m.re != nil {
		return locator.MatchJS(m.re, current)
	}
	want, err := ResolveURL(base, m.raw)
	if err != nil {
		return false
	}
	return strings.TrimSuffix(current, "/") == strings.TrimSuffix(want, "/")
}

func (m URLMatcher) String() string { return m.raw }

// ResolveURL resolves ref against base. Absolute refs are returned unchanged.
func ResolveURL(base, ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", ref, err)
	}
	if r.IsAbs() {
		return r.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	return b.ResolveReference(r).String(), nil
}
