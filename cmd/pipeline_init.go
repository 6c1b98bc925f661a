package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/R204570/LexAudit-Flow/internal/artifacts"
	"github.com/R204570/LexAudit-Flow/internal/browser"
	"github.com/R204570/LexAudit-Flow/internal/config"
	"github.com/R204570/LexAudit-Flow/internal/crawl"
	"github.com/R204570/LexAudit-Flow/internal/detect"
	"github.com/R204570/LexAudit-Flow/internal/evidence"
	"github.com/R204570/LexAudit-Flow/internal/extract"
	"github.com/R204570/LexAudit-Flow/internal/oracle"
	"github.com/R204570/LexAudit-Flow/internal/pipeline"
	"github.com/R204570/LexAudit-Flow/internal/review"
	"github.com/R204570/LexAudit-Flow/internal/store"
)

// pipelineEnv holds the store and every stage needed by the serve, crawl
// and analyze commands.
type pipelineEnv struct {
	Store    store.Store
	Engine   *review.Engine
	Detector *detect.Detector
	Locator  *evidence.Locator
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "lexaudit.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the store. Callers should defer Close.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initLocator builds the evidence locator with the optional blob mirror.
func initLocator(ctx context.Context) (*evidence.Locator, error) {
	opts := []evidence.Option{}
	mirror, err := artifacts.New(cfg.Evidence.Azure)
	if err != nil {
		return nil, err
	}
	if mirror != nil {
		if az, ok := mirror.(*artifacts.AzureMirror); ok {
			if err := az.EnsureContainer(ctx); err != nil {
				return nil, err
			}
		}
		opts = append(opts, evidence.WithMirror(mirror))
		zap.L().Info("evidence mirror enabled", zap.String("container", cfg.Evidence.Azure.Container))
	}
	return evidence.NewLocator(cfg.Evidence.HighlightedDir(), opts...), nil
}

// newChrome builds the browser launcher, honoring crawl.chrome_path.
func newChrome(c config.CrawlConfig) *browser.Chrome {
	var opts []browser.ChromeOption
	if c.ChromePath != "" {
		opts = append(opts, browser.WithExecPath(c.ChromePath))
	}
	return browser.NewChrome(c.Headless, opts...)
}

// initPipeline validates config for mode, opens the store and wires every
// stage. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	o, err := oracle.New(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	ex, err := extract.NewExtractor(cfg.Extract)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	locator, err := initLocator(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	profiles, err := browser.NewRandomProfiles(cfg.Crawl.UserAgents, cfg.Crawl.Viewports)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	fetcher := crawl.NewFetcher(newChrome(cfg.Crawl), profiles, cfg.Crawl, cfg.Evidence.RawDir)

	detector := detect.New(o, st, ex, cfg.Detect.MaxDocumentChars)
	p := pipeline.New(fetcher, detector, locator, st, cfg.Features, cfg.Pipeline.MaxConcurrentAnalyses)

	zap.L().Info("pipeline ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("oracle", cfg.Oracle.Provider),
		zap.String("extract", cfg.Extract.Provider),
		zap.Bool("crawling", cfg.Features.Crawling),
		zap.Bool("analysis", cfg.Features.Analysis),
		zap.Bool("highlighting", cfg.Features.Highlighting),
	)

	return &pipelineEnv{
		Store:    st,
		Engine:   review.NewEngine(st),
		Detector: detector,
		Locator:  locator,
		Pipeline: p,
	}, nil
}
