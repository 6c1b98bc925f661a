// Package pdfdoc reads positioned text from PDF files and writes highlight
// annotations onto them.
package pdfdoc

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
)

// Document is an open PDF file. Pages are numbered from 1.
type Document struct {
	f *os.File
	r *pdf.Reader
}

// Open opens the PDF at path for reading.
func Open(path string) (doc *Document, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = eris.Errorf("pdfdoc: open %s: %v", path, p)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pdfdoc: open %s", path)
	}
	return &Document{f: f, r: r}, nil
}

// Close releases the underlying file.
func (d *Document) Close() error {
	return d.f.Close()
}

// NumPages returns the number of pages.
func (d *Document) NumPages() int {
	return d.r.NumPage()
}

// PageText returns the plain text of page n.
func (d *Document) PageText(n int) (text string, err error) {
	defer recoverPage(n, &err)
	p := d.r.Page(n)
	if p.V.IsNull() {
		return "", nil
	}
	text, err = p.GetPlainText(nil)
	if err != nil {
		return "", eris.Wrapf(err, "pdfdoc: page %d text", n)
	}
	return text, nil
}

// Text returns the plain text of every page in page order. Each page is
// followed by a newline.
func (d *Document) Text() (string, error) {
	var b strings.Builder
	for i := 1; i <= d.NumPages(); i++ {
		text, err := d.PageText(i)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// Glyphs returns the positioned text runs of page n in content order.
func (d *Document) Glyphs(n int) (glyphs []Glyph, err error) {
	defer recoverPage(n, &err)
	p := d.r.Page(n)
	if p.V.IsNull() {
		return nil, nil
	}
	for _, t := range p.Content().Text {
		glyphs = append(glyphs, Glyph{X: t.X, Y: t.Y, W: t.W, FontSize: t.FontSize, S: t.S})
	}
	return glyphs, nil
}

// Search returns every occurrence of needle on page n.
func (d *Document) Search(n int, needle string) ([]Match, error) {
	glyphs, err := d.Glyphs(n)
	if err != nil {
		return nil, err
	}
	var matches []Match
	for _, rects := range FindMatches(glyphs, needle) {
		matches = append(matches, Match{Page: n, Rects: rects})
	}
	return matches, nil
}

// SearchAll returns every occurrence of needle across all pages.
func (d *Document) SearchAll(needle string) ([]Match, error) {
	var all []Match
	for i := 1; i <= d.NumPages(); i++ {
		m, err := d.Search(i, needle)
		if err != nil {
			return nil, err
		}
		all = append(all, m...)
	}
	return all, nil
}

// The reader panics on some malformed content streams.
func recoverPage(n int, err *error) {
	if p := recover(); p != nil {
		*err = eris.New(fmt.Sprintf("pdfdoc: page %d: %v", n, p))
	}
}
