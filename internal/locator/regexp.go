package locator

import (
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
)

// regexpMatchTimeout bounds a single match; the engine backtracks.
const regexpMatchTimeout = time.Second

// CompileJS compiles a JavaScript regular expression body with its flags.
// ECMAScript mode accepts what the page's RegExp accepts, including lookaround
// and backreferences, so a pattern that validates here also runs in the page.
func CompileJS(pattern, flags string) (*regexp2.Regexp, error) {
	opts := regexp2.ECMAScript
	for _, f := range flags {
		switch f {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's', 'u':
			// dotAll is moot on whitespace-normalized text; u needs no option.
		default:
			return nil, fmt.Errorf("unsupported regular expression flag %q", f)
		}
	}
	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = regexpMatchTimeout
	return re, nil
}

// MatchJS reports whether re matches s. A match that exceeds its timeout
// counts as no match.
func MatchJS(re *regexp2.Regexp, s string) bool {
	ok, err := re.MatchString(s)
	return err == nil && ok
}
