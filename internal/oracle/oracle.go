// Package oracle abstracts the natural-language inference service used to
// judge documents. Providers are interchangeable behind Oracle.
package oracle

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/R204570/LexAudit-Flow/internal/config"
	"github.com/R204570/LexAudit-Flow/internal/resilience"
	"github.com/R204570/LexAudit-Flow/pkg/anthropic"
	"github.com/R204570/LexAudit-Flow/pkg/ollama"
)

// Oracle completes a prompt under a system instruction and returns the raw
// text response.
type Oracle interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Func adapts a plain function to Oracle.
type Func func(ctx context.Context, system, prompt string) (string, error)

func (f Func) Complete(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}

// New builds the configured provider and wraps it with timeout, retry and
// circuit breaking.
func New(cfg *config.Config) (Oracle, error) {
	var base Oracle
	switch cfg.Oracle.Provider {
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("oracle: anthropic.key is required")
		}
		base = NewAnthropic(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, cfg.Oracle.MaxTokens)
	case "ollama", "":
		base = NewOllama(ollama.NewClient(
			ollama.WithBaseURL(cfg.Ollama.BaseURL),
			ollama.WithModel(cfg.Ollama.Model),
		))
	default:
		return nil, eris.Errorf("oracle: unknown provider %q", cfg.Oracle.Provider)
	}

	provider := cfg.Oracle.Provider
	if provider == "" {
		provider = "ollama"
	}
	return NewResilient(base, provider, cfg.Oracle.Timeout,
		resilience.FromRetryConfig(cfg.Oracle.Retry),
		resilience.NewCircuitBreaker(resilience.FromCircuitConfig("oracle."+provider, cfg.Oracle.Circuit)),
	), nil
}

// Resilient decorates an Oracle with a per-call timeout, bounded retry of
// transient failures, and a circuit breaker.
type Resilient struct {
	next    Oracle
	name    string
	timeout time.Duration
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewResilient wraps next. A zero timeout leaves deadlines to the caller.
func NewResilient(next Oracle, name string, timeout time.Duration, retry resilience.RetryConfig, breaker *resilience.CircuitBreaker) *Resilient {
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("oracle."+name, "complete")
	}
	return &Resilient{next: next, name: name, timeout: timeout, retry: retry, breaker: breaker}
}

func (r *Resilient) Complete(ctx context.Context, system, prompt string) (string, error) {
	start := time.Now()
	out, err := resilience.DoVal(ctx, r.retry, func(ctx context.Context) (string, error) {
		return resilience.ExecuteVal(ctx, r.breaker, func(ctx context.Context) (string, error) {
			if r.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, r.timeout)
				defer cancel()
			}
			return r.next.Complete(ctx, system, prompt)
		})
	})
	if err != nil {
		return "", eris.Wrapf(err, "oracle: %s complete", r.name)
	}
	zap.L().Debug("oracle: completed",
		zap.String("provider", r.name),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("response_chars", len(out)),
	)
	return out, nil
}
