// Package evidence produces annotated copies of source documents that show
// reviewers exactly where a detected change was quoted.
package evidence

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/R204570/LexAudit-Flow/internal/artifacts"
	"github.com/R204570/LexAudit-Flow/internal/pdfdoc"
)

// Locator finds a quote in a PDF and writes a highlighted copy.
type Locator struct {
	dir       string
	annotator pdfdoc.Annotator
	mirror    artifacts.Mirror
}

// Option configures a Locator.
type Option func(*Locator)

// WithAnnotator replaces the default pdfcpu annotator.
func WithAnnotator(a pdfdoc.Annotator) Option {
	return func(l *Locator) { l.annotator = a }
}

// WithMirror uploads every generated artifact. A nil mirror is ignored.
func WithMirror(m artifacts.Mirror) Option {
	return func(l *Locator) { l.mirror = m }
}

// NewLocator writes annotated artifacts into dir.
func NewLocator(dir string, opts ...Option) *Locator {
	l := &Locator{dir: dir, annotator: pdfdoc.NewAnnotator()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// OutputPath returns where the artifact for updateID is written.
func (l *Locator) OutputPath(updateID string) string {
	return filepath.Join(l.dir, updateID+"_highlighted.pdf")
}

// GenerateProof highlights every occurrence of quote in docPath and returns
// the annotated artifact's path. When the quote is empty or not found the
// artifact is an unannotated copy.
func (l *Locator) GenerateProof(ctx context.Context, docPath, quote, updateID string) (string, error) {
	if updateID == "" || strings.ContainsAny(updateID, `/\`) || updateID == "." || updateID == ".." {
		return "", eris.Errorf("evidence: invalid update id %q", updateID)
	}
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "evidence: generate proof")
	}

	log := zap.L().With(
		zap.String("update_id", updateID),
		zap.String("document", docPath),
	)

	matches, err := l.locate(docPath, quote)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 && pdfdoc.NormalizeSpace(quote) != "" {
		log.Warn("evidence: quote not found, writing unannotated copy",
			zap.String("quote", quote),
		)
	}

	out := l.OutputPath(updateID)
	if err := l.annotator.Highlight(docPath, out, matches); err != nil {
		return "", eris.Wrap(err, "evidence: write artifact")
	}
	log.Info("evidence: proof generated",
		zap.String("path", out),
		zap.Int("matches", len(matches)),
	)

	if l.mirror != nil {
		key := "highlighted/" + filepath.Base(out)
		if _, err := l.mirror.Put(ctx, key, out); err != nil {
			log.Warn("evidence: mirror upload failed", zap.String("key", key), zap.Error(err))
		}
	}
	return out, nil
}

func (l *Locator) locate(docPath, quote string) ([]pdfdoc.Match, error) {
	doc, err := pdfdoc.Open(docPath)
	if err != nil {
		return nil, eris.Wrap(err, "evidence: open document")
	}
	defer doc.Close() //nolint:errcheck

	if pdfdoc.NormalizeSpace(quote) == "" {
		return nil, nil
	}
	matches, err := doc.SearchAll(quote)
	if err != nil {
		return nil, eris.Wrap(err, "evidence: search document")
	}
	return matches, nil
}
