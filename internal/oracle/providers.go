package oracle

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/R204570/LexAudit-Flow/internal/resilience"
	"github.com/R204570/LexAudit-Flow/pkg/anthropic"
	"github.com/R204570/LexAudit-Flow/pkg/ollama"
)

const defaultMaxTokens = 1024

// Anthropic answers prompts with the Anthropic Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic creates an Anthropic-backed oracle.
func NewAnthropic(client anthropic.Client, model string, maxTokens int64) *Anthropic {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Anthropic{client: client, model: model, maxTokens: maxTokens}
}

func (a *Anthropic) Complete(ctx context.Context, system, prompt string) (string, error) {
	temp := 0.0
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		if code := anthropic.StatusCode(err); resilience.IsTransientHTTPStatus(code) || code == 529 {
			return "", resilience.NewTransientError(err, code)
		}
		return "", err
	}
	resp.Usage.Log(a.model, "complete")
	return resp.Text(), nil
}

// Ollama answers prompts with a local Ollama model.
type Ollama struct {
	client ollama.Client
}

// NewOllama creates an Ollama-backed oracle.
func NewOllama(client ollama.Client) *Ollama {
	return &Ollama{client: client}
}

func (o *Ollama) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := o.client.Generate(ctx, ollama.GenerateRequest{
		Prompt: prompt,
		System: system,
	})
	if err != nil {
		var se *ollama.StatusError
		if errors.As(err, &se) && resilience.IsTransientHTTPStatus(se.StatusCode) {
			return "", resilience.NewTransientError(err, se.StatusCode)
		}
		return "", err
	}
	if !resp.Done {
		return "", eris.New("ollama: incomplete response")
	}
	return resp.Response, nil
}
