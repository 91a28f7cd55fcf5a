// Package extract locates labelled values in DART disclosure documents.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DART's document.xml marks data cells as TE and unit cells as TU. The HTML
// parser would foster-parent those out of the table, so they are read as td.
var cellTagReplacer = strings.NewReplacer(
	"<TE>", "<td>", "<TE ", "<td ", "</TE>", "</td>",
	"<TU>", "<td>", "<TU ", "<td ", "</TU>", "</td>",
	"<te>", "<td>", "<te ", "<td ", "</te>", "</td>",
	"<tu>", "<td>", "<tu ", "<td ", "</tu>", "</td>",
)

var whitespace = regexp.MustCompile(`\s+`)

// Document is a parsed filing, or a scoped part of one.
type Document struct {
	raw  string
	root *goquery.Selection
	rows []row
	// scanned marks rows as loaded; a document without tables has none.
	scanned bool
}

type row struct {
	cells []string
}

// NewDocument parses decoded document markup.
func NewDocument(markup string) (*Document, error) {
	markup = cellTagReplacer.Replace(markup)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Document{raw: markup, root: doc.Selection}, nil
}

// Raw returns the markup the document was parsed from.
func (d *Document) Raw() string {
	return d.raw
}

// Text returns the visible text with whitespace runs collapsed.
func (d *Document) Text() string {
	return cleanText(d.root.Text())
}

// Section narrows the document to the markup starting at the first occurrence
// of heading. It reports false when the heading does not occur.
func (d *Document) Section(heading string) (*Document, bool) {
	i := strings.Index(d.raw, heading)
	if i < 0 {
		return nil, false
	}
	sub, err := NewDocument(d.raw[i:])
	if err != nil {
		return nil, false
	}
	return sub, true
}

// Table returns the first table whose text contains any of the anchors.
func (d *Document) Table(anchors ...string) (*Document, bool) {
	var found *goquery.Selection
	d.root.Find("table").EachWithBreak(func(_ int, tbl *goquery.Selection) bool {
		text := tbl.Text()
		for _, a := range anchors {
			if strings.Contains(text, a) {
				found = tbl
				return false
			}
		}
		return true
	})
	if found == nil {
		return nil, false
	}
	html, _ := goquery.OuterHtml(found)
	return &Document{raw: html, root: found}, true
}

// FirstParagraph returns the text of the first non-empty paragraph.
func (d *Document) FirstParagraph() string {
	var text string
	d.root.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text = cleanText(p.Text())
		return text == ""
	})
	return text
}

func (d *Document) tableRows() []row {
	if d.scanned {
		return d.rows
	}
	d.scanned = true
	d.root.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var r row
		tr.ChildrenFiltered("td").Each(func(_ int, td *goquery.Selection) {
			r.cells = append(r.cells, cleanText(td.Text()))
		})
		if len(r.cells) >= 2 {
			d.rows = append(d.rows, r)
		}
	})
	return d.rows
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
