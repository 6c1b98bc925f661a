// Package crawl discovers and downloads regulatory PDF documents linked from
// a source page.
package crawl

import (
	"context"
	"math/rand/v2"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/R204570/LexAudit-Flow/internal/browser"
	"github.com/R204570/LexAudit-Flow/internal/config"
)

// Fetcher crawls a source page in a browser session and downloads matching
// documents into a raw evidence directory.
type Fetcher struct {
	browser  browser.Browser
	profiles browser.ProfileSource
	cfg      config.CrawlConfig
	rawDir   string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFetcher creates a Fetcher that saves into rawDir.
func NewFetcher(b browser.Browser, profiles browser.ProfileSource, cfg config.CrawlConfig, rawDir string) *Fetcher {
	return &Fetcher{
		browser:  b,
		profiles: profiles,
		cfg:      cfg,
		rawDir:   rawDir,
		limiters: make(map[string]*rate.Limiter),
	}
}

// CrawlAndDownload returns the local paths of the documents saved from
// seedURL. Failures are logged; whatever was saved before a failure is
// still returned.
func (f *Fetcher) CrawlAndDownload(ctx context.Context, seedURL string) []string {
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}
	log := zap.L().With(zap.String("url", seedURL))

	if err := os.MkdirAll(f.rawDir, 0o755); err != nil {
		log.Error("crawl: create raw dir", zap.String("dir", f.rawDir), zap.Error(err))
		return nil
	}

	sess, err := f.browser.NewSession(ctx, f.profiles.Next())
	if err != nil {
		log.Error("crawl: start browser session", zap.Error(err))
		return nil
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn("crawl: close browser session", zap.Error(err))
		}
	}()

	if err := sess.Navigate(ctx, seedURL); err != nil {
		log.Error("crawl: navigate", zap.Error(err))
		return nil
	}
	if err := sleep(ctx, jitter(f.cfg.NavDelayMin, f.cfg.NavDelayMax)); err != nil {
		return nil
	}

	pageURL := seedURL
	if loc, err := sess.Location(ctx); err == nil && loc != "" {
		pageURL = loc
	}
	links, err := sess.Links(ctx)
	if err != nil {
		log.Error("crawl: list links", zap.Error(err))
		return nil
	}
	candidates := Candidates(pageURL, links, f.cfg.Keywords)
	log.Info("crawl: candidate documents",
		zap.Int("links", len(links)),
		zap.Int("candidates", len(candidates)),
	)

	var paths []string
	used := make(map[string]bool)
	for _, link := range candidates {
		if f.cfg.MaxDownloads > 0 && len(paths) >= f.cfg.MaxDownloads {
			break
		}
		if err := f.limiter(link.URL).Wait(ctx); err != nil {
			log.Warn("crawl: stopped before all downloads", zap.Error(err))
			break
		}

		dest := filepath.Join(f.rawDir, uniqueName(FileName(link.URL, len(paths)), used))
		if err := sess.Download(ctx, link, dest); err != nil {
			log.Warn("crawl: download failed", zap.String("link", link.URL), zap.Error(err))
		} else if _, err := os.Stat(dest); err != nil {
			log.Warn("crawl: download not saved", zap.String("link", link.URL), zap.Error(err))
		} else {
			used[filepath.Base(dest)] = true
			paths = append(paths, dest)
			log.Info("crawl: downloaded", zap.String("link", link.URL), zap.String("path", dest))
		}

		if err := sleep(ctx, jitter(f.cfg.DownloadDelayMin, f.cfg.DownloadDelayMax)); err != nil {
			log.Warn("crawl: stopped before all downloads", zap.Error(err))
			break
		}
	}

	log.Info("crawl: complete", zap.Int("downloaded", len(paths)))
	return paths
}

// limiter returns the pacing limiter for rawURL's host.
func (f *Fetcher) limiter(rawURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if lim, ok := f.limiters[host]; ok {
		return lim
	}
	limit := rate.Inf
	if f.cfg.HostRPS > 0 {
		limit = rate.Limit(f.cfg.HostRPS)
	}
	lim := rate.NewLimiter(limit, 1)
	f.limiters[host] = lim
	return lim
}

// uniqueName prefixes name with a counter when an earlier download in the
// same crawl already used it.
func uniqueName(name string, used map[string]bool) string {
	if !used[name] {
		return name
	}
	for i := 1; ; i++ {
		candidate := strconv.Itoa(i) + "_" + name
		if !used[candidate] {
			return candidate
		}
	}
}

// jitter returns a random duration in [lo, hi]. A non-positive hi disables
// the delay.
func jitter(lo, hi time.Duration) time.Duration {
	if hi <= 0 {
		return 0
	}
	if lo < 0 {
		lo = 0
	}
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
