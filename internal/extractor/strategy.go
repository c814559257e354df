package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// page is the parsed listing page handed to every strategy. Script bodies
// are collected once since most embedded-data strategies scan them.
type page struct {
	doc     *goquery.Document
	scripts []string
}

func newPage(doc *goquery.Document) *page {
	p := &page{doc: doc}
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if text := s.Text(); strings.TrimSpace(text) != "" {
			p.scripts = append(p.scripts, text)
		}
	})
	return p
}

// Strategy recovers one value from a page, reporting false on a miss
type Strategy[T any] func(p *page) (T, bool)

// firstOf evaluates strategies in order and returns the first hit
func firstOf[T any](p *page, strategies []Strategy[T]) (T, bool) {
	for _, s := range strategies {
		if v, ok := s(p); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// ptr runs strategies and returns the hit as a pointer, nil on a miss
func ptr[T any](p *page, strategies []Strategy[T]) *T {
	if v, ok := firstOf(p, strategies); ok {
		return &v
	}
	return nil
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// selectorText returns the text of the first element of the first selector
// whose text is accepted
func selectorText(selectors []string, accept func(string) bool) Strategy[string] {
	return func(p *page) (string, bool) {
		for _, sel := range selectors {
			if t := text(p.doc.Find(sel).First()); t != "" && accept(t) {
				return t, true
			}
		}
		return "", false
	}
}

// scriptPattern returns the first capture group of the first pattern that
// matches an embedded script and is accepted
func scriptPattern(patterns []*regexp.Regexp, accept func(string) bool) Strategy[string] {
	return func(p *page) (string, bool) {
		for _, script := range p.scripts {
			for _, re := range patterns {
				m := re.FindStringSubmatch(script)
				if len(m) < 2 {
					continue
				}
				if v := strings.TrimSpace(m[1]); v != "" && accept(v) {
					return v, true
				}
			}
		}
		return "", false
	}
}

// metaContent returns the content of <meta property=...>
func metaContent(property string) Strategy[string] {
	return func(p *page) (string, bool) {
		v, ok := p.doc.Find(`meta[property="` + property + `"]`).Attr("content")
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
}

// mapped turns a string strategy into another type, treating a failed
// conversion as a miss
func mapped[T any](s Strategy[string], convert func(string) (T, bool)) Strategy[T] {
	return func(p *page) (T, bool) {
		var zero T
		v, ok := s(p)
		if !ok {
			return zero, false
		}
		return convert(v)
	}
}

func anyText(string) bool { return true }

func longerThan(n int) func(string) bool {
	return func(s string) bool { return len([]rune(s)) > n }
}

func shorterThan(n int) func(string) bool {
	return func(s string) bool { return len([]rune(s)) < n }
}

func mustCompile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v, err == nil
}
