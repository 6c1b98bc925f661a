package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Oracle     OracleConfig     `yaml:"oracle" mapstructure:"oracle"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Ollama     OllamaConfig     `yaml:"ollama" mapstructure:"ollama"`
	Crawl      CrawlConfig      `yaml:"crawl" mapstructure:"crawl"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Detect     DetectConfig     `yaml:"detect" mapstructure:"detect"`
	Evidence   EvidenceConfig   `yaml:"evidence" mapstructure:"evidence"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Features   FeaturesConfig   `yaml:"features" mapstructure:"features"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// OracleConfig selects and tunes the inference oracle.
type OracleConfig struct {
	Provider  string        `yaml:"provider" mapstructure:"provider"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens int64         `yaml:"max_tokens" mapstructure:"max_tokens"`
	Retry     RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Circuit   CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
}

// RetryConfig configures bounded retry for transient oracle failures.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures the oracle circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// OllamaConfig holds settings for a local Ollama server.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// CrawlConfig configures the document fetcher.
type CrawlConfig struct {
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxDownloads     int           `yaml:"max_downloads" mapstructure:"max_downloads"`
	Keywords         []string      `yaml:"keywords" mapstructure:"keywords"`
	NavDelayMin      time.Duration `yaml:"nav_delay_min" mapstructure:"nav_delay_min"`
	NavDelayMax      time.Duration `yaml:"nav_delay_max" mapstructure:"nav_delay_max"`
	DownloadDelayMin time.Duration `yaml:"download_delay_min" mapstructure:"download_delay_min"`
	DownloadDelayMax time.Duration `yaml:"download_delay_max" mapstructure:"download_delay_max"`
	HostRPS          float64       `yaml:"host_rps" mapstructure:"host_rps"`
	Headless         bool          `yaml:"headless" mapstructure:"headless"`
	UserAgents       []string      `yaml:"user_agents" mapstructure:"user_agents"`
	Viewports        []string      `yaml:"viewports" mapstructure:"viewports"`
	ChromePath       string        `yaml:"chrome_path" mapstructure:"chrome_path"`
}

// ExtractConfig configures PDF text extraction.
type ExtractConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// DetectConfig configures change detection.
type DetectConfig struct {
	MaxDocumentChars int `yaml:"max_document_chars" mapstructure:"max_document_chars"`
}

// EvidenceConfig configures where downloaded and annotated documents live.
type EvidenceConfig struct {
	Dir    string      `yaml:"dir" mapstructure:"dir"`
	RawDir string      `yaml:"raw_dir" mapstructure:"raw_dir"`
	Azure  AzureConfig `yaml:"azure" mapstructure:"azure"`
}

// AzureConfig configures the optional blob mirror for evidence artifacts.
type AzureConfig struct {
	ConnectionString string `yaml:"connection_string" mapstructure:"connection_string"`
	Container        string `yaml:"container" mapstructure:"container"`
}

// HighlightedDir returns the directory holding annotated evidence.
func (e EvidenceConfig) HighlightedDir() string {
	return strings.TrimRight(e.Dir, "/") + "/highlighted"
}

// PipelineConfig configures the crawl-to-review pipeline.
type PipelineConfig struct {
	MaxConcurrentAnalyses int `yaml:"max_concurrent_analyses" mapstructure:"max_concurrent_analyses"`
}

// FeaturesConfig toggles pipeline stages.
type FeaturesConfig struct {
	Crawling     bool `yaml:"crawling" mapstructure:"crawling"`
	Analysis     bool `yaml:"analysis" mapstructure:"analysis"`
	Highlighting bool `yaml:"highlighting" mapstructure:"highlighting"`
}

// ServerConfig configures the review API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures review-backlog alerting.
type MonitoringConfig struct {
	Enabled          bool          `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL       string        `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckInterval    time.Duration `yaml:"check_interval" mapstructure:"check_interval"`
	LookbackHours    int           `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	PendingThreshold int           `yaml:"pending_threshold" mapstructure:"pending_threshold"`
	StaleAfter       time.Duration `yaml:"stale_after" mapstructure:"stale_after"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultUserAgents is the client identity pool used when none is configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEXAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "lexaudit.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("oracle.provider", "ollama")
	v.SetDefault("oracle.timeout", 120*time.Second)
	v.SetDefault("oracle.max_tokens", 1024)
	v.SetDefault("oracle.retry.max_attempts", 2)
	v.SetDefault("oracle.retry.initial_backoff_ms", 500)
	v.SetDefault("oracle.retry.max_backoff_ms", 10000)
	v.SetDefault("oracle.retry.multiplier", 2.0)
	v.SetDefault("oracle.retry.jitter_fraction", 0.25)
	v.SetDefault("oracle.circuit.failure_threshold", 5)
	v.SetDefault("oracle.circuit.reset_timeout_secs", 30)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.model", "llama2")
	v.SetDefault("crawl.timeout", 60*time.Second)
	v.SetDefault("crawl.max_downloads", 20)
	v.SetDefault("crawl.keywords", []string{"tax", "amendment", "scheme", "regulation", "pdf", "policy"})
	v.SetDefault("crawl.nav_delay_min", 2*time.Second)
	v.SetDefault("crawl.nav_delay_max", 5*time.Second)
	v.SetDefault("crawl.download_delay_min", 1*time.Second)
	v.SetDefault("crawl.download_delay_max", 3*time.Second)
	v.SetDefault("crawl.host_rps", 1.0)
	v.SetDefault("crawl.headless", true)
	v.SetDefault("crawl.user_agents", DefaultUserAgents)
	v.SetDefault("crawl.viewports", []string{"1280x720", "1366x768", "1440x900", "1920x1080"})
	v.SetDefault("crawl.chrome_path", "")
	v.SetDefault("extract.provider", "native")
	v.SetDefault("extract.pdftotext_path", "pdftotext")
	v.SetDefault("detect.max_document_chars", 100000)
	v.SetDefault("evidence.dir", "evidence")
	v.SetDefault("evidence.raw_dir", "evidence/raw")
	v.SetDefault("evidence.azure.connection_string", "")
	v.SetDefault("evidence.azure.container", "evidence")
	v.SetDefault("pipeline.max_concurrent_analyses", 4)
	v.SetDefault("features.crawling", true)
	v.SetDefault("features.analysis", true)
	v.SetDefault("features.highlighting", true)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval", 5*time.Minute)
	v.SetDefault("monitoring.lookback_hours", 24)
	v.SetDefault("monitoring.pending_threshold", 10)
	v.SetDefault("monitoring.stale_after", 48*time.Hour)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
