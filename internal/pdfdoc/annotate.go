package pdfdoc

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rotisserie/eris"
)

// Annotator writes a copy of src to dst with every match highlighted.
type Annotator interface {
	Highlight(src, dst string, matches []Match) error
}

// highlightColor is yellow in DeviceRGB.
var highlightColor = []float64{1, 1, 0}

// PDFCPU highlights matches by appending Highlight annotation dictionaries
// to each page's /Annots array.
type PDFCPU struct{}

// NewAnnotator returns the pdfcpu-backed Annotator.
func NewAnnotator() *PDFCPU {
	return &PDFCPU{}
}

// Highlight writes dst. With no matches dst is a byte copy of src.
func (PDFCPU) Highlight(src, dst string, matches []Match) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return eris.Wrap(err, "pdfdoc: create output dir")
	}
	if len(matches) == 0 {
		return CopyFile(src, dst)
	}

	ctx, err := api.ReadContextFile(src)
	if err != nil {
		return eris.Wrapf(err, "pdfdoc: read %s", src)
	}

	for _, m := range matches {
		if err := addHighlight(ctx, m); err != nil {
			return err
		}
	}

	if err := api.WriteContextFile(ctx, dst); err != nil {
		return eris.Wrapf(err, "pdfdoc: write %s", dst)
	}
	return nil
}

func addHighlight(ctx *model.Context, m Match) error {
	if len(m.Rects) == 0 {
		return nil
	}
	pageDict, pageRef, _, err := ctx.PageDict(m.Page, false)
	if err != nil {
		return eris.Wrapf(err, "pdfdoc: page %d", m.Page)
	}
	if pageDict == nil || pageRef == nil {
		return eris.Errorf("pdfdoc: page %d not found", m.Page)
	}

	b := m.Bounds()
	annot := types.Dict{
		"Type":       types.Name("Annot"),
		"Subtype":    types.Name("Highlight"),
		"Rect":       types.NewNumberArray(b.LLX, b.LLY, b.URX, b.URY),
		"QuadPoints": types.NewNumberArray(quadPoints(m.Rects)...),
		"C":          types.NewNumberArray(highlightColor...),
		"F":          types.Integer(4),
		"P":          *pageRef,
	}
	ref, err := ctx.IndRefForNewObject(annot)
	if err != nil {
		return eris.Wrap(err, "pdfdoc: add annotation object")
	}

	annots, err := ctx.DereferenceArray(pageDict["Annots"])
	if err != nil {
		return eris.Wrapf(err, "pdfdoc: page %d annotations", m.Page)
	}
	pageDict["Annots"] = append(annots, *ref)
	return nil
}

// quadPoints lists each rectangle's corners in the order viewers expect:
// upper-left, upper-right, lower-left, lower-right.
func quadPoints(rects []Rect) []float64 {
	out := make([]float64, 0, 8*len(rects))
	for _, r := range rects {
		out = append(out,
			r.LLX, r.URY,
			r.URX, r.URY,
			r.LLX, r.LLY,
			r.URX, r.LLY,
		)
	}
	return out
}

// CopyFile copies src to dst, replacing dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "pdfdoc: open %s", src)
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return eris.Wrapf(err, "pdfdoc: create %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck
		return eris.Wrapf(err, "pdfdoc: copy to %s", dst)
	}
	return eris.Wrapf(out.Close(), "pdfdoc: close %s", dst)
}
