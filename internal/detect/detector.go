// Package detect asks the inference oracle whether a document changes any
// authoritative rate and records positive answers as pending updates.
package detect

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/R204570/LexAudit-Flow/internal/extract"
	"github.com/R204570/LexAudit-Flow/internal/model"
	"github.com/R204570/LexAudit-Flow/internal/oracle"
	"github.com/R204570/LexAudit-Flow/internal/store"
)

// DefaultMaxDocumentChars bounds the document text sent to the oracle.
const DefaultMaxDocumentChars = 100000

// Detection is the outcome of analyzing one document. Update is set only
// when a change was detected and recorded.
type Detection struct {
	Proposal model.ChangeProposal
	Update   *model.PendingUpdate
}

// Detector compares documents against the authoritative item set.
type Detector struct {
	oracle    oracle.Oracle
	store     store.Store
	extractor extract.Extractor
	maxChars  int
}

// New creates a Detector. A non-positive maxChars uses the default.
func New(o oracle.Oracle, st store.Store, ex extract.Extractor, maxChars int) *Detector {
	if maxChars <= 0 {
		maxChars = DefaultMaxDocumentChars
	}
	return &Detector{oracle: o, store: st, extractor: ex, maxChars: maxChars}
}

// AnalyzeDocument extracts the text of path and analyzes it. A nil
// Detection means the document could not be judged.
func (d *Detector) AnalyzeDocument(ctx context.Context, path string) (*Detection, error) {
	return d.Analyze(ctx, extract.Text(ctx, d.extractor, path), path)
}

// Analyze judges already-extracted text. source is recorded as the
// evidence path of any pending update. Only store failures are returned
// as errors.
func (d *Detector) Analyze(ctx context.Context, text, source string) (*Detection, error) {
	log := zap.L().With(zap.String("document", source))

	if strings.TrimSpace(text) == "" {
		log.Warn("detect: no text extracted, skipping")
		return nil, nil
	}

	items, err := d.store.ListItems(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "detect: list items")
	}

	raw, err := d.oracle.Complete(ctx, SystemPrompt, UserPrompt(items, Truncate(text, d.maxChars)))
	if err != nil {
		log.Error("detect: oracle unavailable, skipping document", zap.Error(err))
		return nil, nil
	}

	verdict := ParseVerdict(raw)
	switch verdict.Kind {
	case model.VerdictUnparseable:
		log.Warn("detect: unparseable oracle response, treating as no change",
			zap.String("reason", verdict.Reason),
			zap.String("raw", verdict.Raw),
		)
		return &Detection{}, nil
	case model.VerdictNoChange:
		log.Info("detect: no change")
		return &Detection{}, nil
	}

	proposal := verdict.Proposal()
	update, err := d.record(ctx, proposal, source)
	if err != nil {
		return nil, err
	}
	log.Info("detect: change detected",
		zap.String("item", update.DetectedItem),
		zap.Float64("proposed_rate", update.ProposedRate),
		zap.String("update_id", update.ID),
	)
	return &Detection{Proposal: proposal, Update: update}, nil
}

// record creates the pending update, snapshotting the item's live rate.
func (d *Detector) record(ctx context.Context, p model.ChangeProposal, source string) (*model.PendingUpdate, error) {
	current, err := d.store.GetItem(ctx, p.Item)
	if err != nil {
		return nil, eris.Wrapf(err, "detect: snapshot rate of %q", p.Item)
	}

	u := &model.PendingUpdate{
		DetectedItem:  p.Item,
		ProposedRate:  *p.NewRate,
		EvidencePath:  source,
		EvidenceQuote: p.Quote,
	}
	if current != nil {
		u.CurrentRate = model.Float(current.Rate)
	}
	if err := d.store.CreatePendingUpdate(ctx, u); err != nil {
		return nil, eris.Wrap(err, "detect: create pending update")
	}
	return u, nil
}
