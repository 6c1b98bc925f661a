// Package pipeline runs the crawl, detect and evidence stages for a source
// URL and reports what was found.
package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/R204570/LexAudit-Flow/internal/config"
	"github.com/R204570/LexAudit-Flow/internal/detect"
	"github.com/R204570/LexAudit-Flow/internal/model"
)

// ErrCrawlingDisabled is returned by Run when the crawling feature is off.
var ErrCrawlingDisabled = eris.New("pipeline: crawling is disabled")

const defaultMaxConcurrent = 4

// Crawler downloads candidate documents from a source page.
type Crawler interface {
	CrawlAndDownload(ctx context.Context, url string) []string
}

// Analyzer judges one document.
type Analyzer interface {
	AnalyzeDocument(ctx context.Context, path string) (*detect.Detection, error)
}

// Prover writes an annotated evidence artifact.
type Prover interface {
	GenerateProof(ctx context.Context, docPath, quote, updateID string) (string, error)
}

// EvidenceRecorder points a pending update at its evidence artifact.
type EvidenceRecorder interface {
	SetEvidencePath(ctx context.Context, id, path string) error
}

// Pipeline orchestrates the stages. Stages are toggled by config features.
type Pipeline struct {
	crawler  Crawler
	analyzer Analyzer
	prover   Prover
	evidence EvidenceRecorder
	features config.FeaturesConfig
	limit    int
}

// New creates a Pipeline.
func New(c Crawler, a Analyzer, p Prover, ev EvidenceRecorder, features config.FeaturesConfig, maxConcurrent int) *Pipeline {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Pipeline{
		crawler:  c,
		analyzer: a,
		prover:   p,
		evidence: ev,
		features: features,
		limit:    maxConcurrent,
	}
}

// Run crawls url and processes every downloaded document.
func (p *Pipeline) Run(ctx context.Context, url string) (*Report, error) {
	if !p.features.Crawling {
		return nil, ErrCrawlingDisabled
	}
	log := zap.L().With(zap.String("url", url))
	log.Info("pipeline: crawl started")

	docs := p.crawler.CrawlAndDownload(ctx, url)
	report := p.Process(ctx, docs)
	report.URL = url

	log.Info("pipeline: complete",
		zap.Int("documents", len(report.Documents)),
		zap.Int("changes", report.Changes()),
	)
	return report, nil
}

// Process analyzes docs concurrently. Evidence for positive detections is
// generated in the background; Process returns once all of it is written.
func (p *Pipeline) Process(ctx context.Context, docs []string) *Report {
	results := make([]DocumentResult, len(docs))
	var proofs sync.WaitGroup

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)
	for i, doc := range docs {
		g.Go(func() error {
			results[i] = DocumentResult{Document: doc}
			if !p.features.Analysis {
				return nil
			}

			det, err := p.analyzer.AnalyzeDocument(gCtx, doc)
			if err != nil {
				zap.L().Error("pipeline: analysis failed", zap.String("document", doc), zap.Error(err))
				results[i].Error = err.Error()
				return nil
			}
			if det == nil || det.Update == nil {
				return nil
			}

			u := det.Update
			results[i].ChangeDetected = true
			results[i].Item = u.DetectedItem
			results[i].NewRate = model.Float(u.ProposedRate)
			results[i].UpdateID = u.ID
			results[i].EvidencePath = u.EvidencePath

			if p.features.Highlighting && p.prover != nil {
				proofs.Add(1)
				// Outlives gCtx, which is canceled once the analysis group finishes.
				go func() {
					defer proofs.Done()
					if path, ok := p.prove(ctx, u); ok {
						results[i].EvidencePath = path
					}
				}()
			}
			return nil
		})
	}
	_ = g.Wait()
	proofs.Wait()

	if docs == nil {
		docs = []string{}
	}
	return &Report{Documents: docs, Results: results}
}

// prove generates the artifact for u and records it on the update. On any
// failure the update keeps its original document path.
func (p *Pipeline) prove(ctx context.Context, u *model.PendingUpdate) (string, bool) {
	log := zap.L().With(zap.String("update_id", u.ID), zap.String("document", u.EvidencePath))

	path, err := p.prover.GenerateProof(ctx, u.EvidencePath, u.EvidenceQuote, u.ID)
	if err != nil {
		log.Warn("pipeline: evidence generation failed, keeping original document", zap.Error(err))
		return "", false
	}
	if p.evidence != nil {
		if err := p.evidence.SetEvidencePath(ctx, u.ID, path); err != nil {
			log.Warn("pipeline: record evidence path", zap.String("path", path), zap.Error(err))
			return "", false
		}
	}
	return path, true
}
