package extract

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// PdfToText shells out to poppler's pdftotext, which copes with some
// encodings the native reader cannot decode.
type PdfToText struct {
	binPath string
}

// NewPdfToText uses binPath, or "pdftotext" from PATH when empty.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractText returns the layout-preserving text of pdfPath. Page breaks
// (form feeds) become newlines so the result matches the native provider.
func (p *PdfToText) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	var out, errOut bytes.Buffer
	cmd := exec.CommandContext(ctx, p.binPath, "-q", "-layout", "-enc", "UTF-8", pdfPath, "-")
	cmd.Stdout, cmd.Stderr = &out, &errOut

	switch err := cmd.Run(); {
	case errors.Is(err, exec.ErrNotFound):
		return "", eris.Wrapf(err, "extract: %s not installed", p.binPath)
	case err != nil:
		return "", eris.Wrapf(err, "extract: pdftotext %s: %s", pdfPath, strings.TrimSpace(errOut.String()))
	}
	return strings.ReplaceAll(out.String(), "\f", "\n"), nil
}
