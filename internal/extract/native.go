package extract

import (
	"context"

	"github.com/R204570/LexAudit-Flow/internal/pdfdoc"
)

// Native extracts text in-process, page by page.
type Native struct{}

// NewNative creates a Native extractor.
func NewNative() *Native {
	return &Native{}
}

// ExtractText returns the plain text of every page in page order, each page
// followed by a newline so words never run together across a page break.
func (n *Native) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	doc, err := pdfdoc.Open(pdfPath)
	if err != nil {
		return "", err
	}
	defer doc.Close() //nolint:errcheck

	return doc.Text()
}
