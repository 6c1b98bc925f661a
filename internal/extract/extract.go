// Package extract turns downloaded PDF documents into plain text.
package extract

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/R204570/LexAudit-Flow/internal/config"
)

// Extractor extracts text content from PDF files.
type Extractor interface {
	ExtractText(ctx context.Context, pdfPath string) (string, error)
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.ExtractConfig) (Extractor, error) {
	switch cfg.Provider {
	case "native", "":
		return NewNative(), nil
	case "pdftotext":
		return NewPdfToText(cfg.PdfToTextPath), nil
	default:
		return nil, eris.Errorf("extract: unknown provider %q", cfg.Provider)
	}
}

// Text extracts the text of pdfPath, logging and returning "" on failure.
func Text(ctx context.Context, ex Extractor, pdfPath string) string {
	text, err := ex.ExtractText(ctx, pdfPath)
	if err != nil {
		zap.L().Warn("extract: text extraction failed",
			zap.String("path", pdfPath),
			zap.Error(err),
		)
		return ""
	}
	return text
}
