package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the configuration required by the given command mode
// is present. Modes: "serve", "crawl", "analyze", "review", "store".
func (c *Config) Validate(mode string) error {
	var errs []string

	needStore := false
	needOracle := false
	needCrawl := false

	switch mode {
	case "serve":
		needStore, needOracle, needCrawl = true, true, true
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Monitoring.Enabled && c.Monitoring.WebhookURL == "" {
			errs = append(errs, "monitoring.webhook_url is required when monitoring is enabled")
		}
	case "crawl":
		needStore, needOracle, needCrawl = true, true, true
	case "analyze":
		needStore, needOracle = true, true
	case "review", "store":
		needStore = true
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needStore {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	}

	if needOracle {
		switch c.Oracle.Provider {
		case "anthropic":
			if c.Anthropic.Key == "" {
				errs = append(errs, "anthropic.key is required")
			}
		case "ollama":
			if c.Ollama.BaseURL == "" {
				errs = append(errs, "ollama.base_url is required")
			}
		default:
			errs = append(errs, "oracle.provider must be anthropic or ollama")
		}
		if c.Detect.MaxDocumentChars < 0 {
			errs = append(errs, "detect.max_document_chars must be >= 0")
		}
		if c.Pipeline.MaxConcurrentAnalyses < 1 || c.Pipeline.MaxConcurrentAnalyses > 32 {
			errs = append(errs, "pipeline.max_concurrent_analyses must be between 1 and 32")
		}
	}

	if needCrawl {
		if c.Crawl.MaxDownloads < 1 {
			errs = append(errs, "crawl.max_downloads must be > 0")
		}
		if c.Crawl.NavDelayMax < c.Crawl.NavDelayMin {
			errs = append(errs, "crawl.nav_delay_max must be >= crawl.nav_delay_min")
		}
		if c.Crawl.DownloadDelayMax < c.Crawl.DownloadDelayMin {
			errs = append(errs, "crawl.download_delay_max must be >= crawl.download_delay_min")
		}
		if c.Evidence.RawDir == "" {
			errs = append(errs, "evidence.raw_dir is required")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
