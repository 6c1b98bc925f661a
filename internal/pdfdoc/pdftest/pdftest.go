// Package pdftest builds small, valid PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Line is one line of text placed at (X, Y) on a page.
type Line struct {
	X, Y float64
	Text string
}

// Page is the text content of one page.
type Page []Line

// Lines lays out text top-down on a page starting near the upper margin.
func Lines(text ...string) Page {
	p := make(Page, 0, len(text))
	for i, s := range text {
		p = append(p, Line{X: 72, Y: 720 - float64(i)*18, Text: s})
	}
	return p
}

// Write builds a PDF with one Helvetica 12pt page per entry and writes it to
// dir/name, returning the full path.
func Write(t testing.TB, dir, name string, pages ...Page) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Build(pages...), 0o644); err != nil {
		t.Fatalf("pdftest: write %s: %v", path, err)
	}
	return path
}

// Build returns the bytes of a PDF holding pages.
func Build(pages ...Page) []byte {
	// Objects: 1 catalog, 2 pages, 3 font, then a page and a content stream
	// per page.
	var objs []string
	kids := make([]string, 0, len(pages))
	for i := range pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", 4+2*i))
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, p := range pages {
		content := contentStream(p)
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}

func contentStream(p Page) string {
	var b strings.Builder
	for _, l := range p {
		fmt.Fprintf(&b, "BT /F1 12 Tf %.2f %.2f Td (%s) Tj ET\n", l.X, l.Y, escape(l.Text))
	}
	return strings.TrimRight(b.String(), "\n")
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return r.Replace(s)
}
