package locator

import (
	"fmt"
	"strings"
)

// NormalizeSpace collapses runs of whitespace and trims the result, the way
// browsers compare rendered text.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Compile returns a predicate over element text. Substring matches ignore
// case, exact matches do not, and both compare whitespace-normalized text.
func (m TextMatcher) Compile() (func(string) bool, error) {
	switch m.Mode {
	case TextSubstring:
		needle := strings.ToLower(NormalizeSpace(m.Pattern))
		return func(s string) bool {
			return strings.Contains(strings.ToLower(NormalizeSpace(s)), needle)
		}, nil
	case TextExact:
		want := NormalizeSpace(m.Pattern)
		return func(s string) bool { return NormalizeSpace(s) == want }, nil
	case TextRegex:
		re, err := CompileJS(m.Pattern, m.Flags)
		if err != nil {
			return nil, fmt.Errorf("invalid regular expression /%s/%s: %w", m.Pattern, m.Flags, err)
		}
		return func(s string) bool { return MatchJS(re, NormalizeSpace(s)) }, nil
	default:
		return nil, fmt.Errorf("unknown text mode %q", m.Mode)
	}
}
