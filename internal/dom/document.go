// Package dom wraps page HTML snapshots behind a small query API so the
// extraction logic never touches the browser directly. Live snapshots come
// from chromedp; tests parse literal HTML.
package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a parsed point-in-time snapshot of the page
type Document struct {
	doc *goquery.Document
}

// Parse builds a Document from raw HTML
func Parse(html string) (*Document, error) {
	gd, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &Document{doc: gd}, nil
}

// MustParse is a test helper; it panics on malformed input
func MustParse(html string) *Document {
	d, err := Parse(html)
	if err != nil {
		panic(err)
	}
	return d
}

// Find returns all nodes matching the selector
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// First walks an ordered selector chain and returns the first selection that
// matches at least one node, or nil if the whole chain comes up empty.
func (d *Document) First(chain []string) *goquery.Selection {
	for _, sel := range chain {
		if s := d.doc.Find(sel); s.Length() > 0 {
			return s
		}
	}
	return nil
}

// Exists reports whether any selector in the chain resolves
func (d *Document) Exists(chain []string) bool {
	return d.First(chain) != nil
}

// Text returns the visible text of the whole page
func (d *Document) Text() string {
	return d.doc.Text()
}

// CleanText trims and collapses internal whitespace runs to single spaces
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
