package locator

import (
	"errors"
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ErrNotCheckable is returned for strategies a static snapshot cannot evaluate.
var ErrNotCheckable = errors.New("locator cannot be checked against a static snapshot")

// Snapshot is a parsed HTML document used to check locators without a browser.
type Snapshot struct {
	doc *goquery.Document
}

// LoadSnapshot parses an HTML document.
func LoadSnapshot(r io.Reader) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html snapshot: %w", err)
	}
	return &Snapshot{doc: doc}, nil
}

// Count returns how many elements in the snapshot match loc, ignoring Nth.
func (s *Snapshot) Count(loc Locator) (int, error) {
	switch loc.Strategy {
	case CSS:
		sel, err := cascadia.Compile(loc.Query)
		if err != nil {
			return 0, fmt.Errorf("invalid css selector %q: %w", loc.Query, err)
		}
		return s.doc.FindMatcher(sel).Length(), nil
	case Text:
		return len(s.textMatches(loc)), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrNotCheckable, loc.Strategy)
	}
}

// Resolves reports whether loc, including its Nth index, selects an element.
func (s *Snapshot) Resolves(loc Locator) (bool, int, error) {
	n, err := s.Count(loc)
	if err != nil {
		return false, 0, err
	}
	return n > loc.Nth, n, nil
}

// textMatches returns the innermost elements whose text matches, in document order.
func (s *Snapshot) textMatches(loc Locator) []*html.Node {
	tm, err := ParseTextMatcher(loc.Query)
	if err != nil {
		return nil
	}
	match, err := tm.Compile()
	if err != nil {
		return nil
	}

	var out []*html.Node
	s.doc.Find("body *").Each(func(_ int, sel *goquery.Selection) {
		node := sel.Get(0)
		if skipText(node) || !match(sel.Text()) {
			return
		}
		inner := false
		sel.Children().EachWithBreak(func(_ int, child *goquery.Selection) bool {
			if !skipText(child.Get(0)) && match(child.Text()) {
				inner = true
			}
			return !inner
		})
		if !inner {
			out = append(out, node)
		}
	})
	return out
}

func skipText(n *html.Node) bool {
	switch n.Data {
	case "script", "style", "noscript", "template":
		return true
	}
	return false
}
