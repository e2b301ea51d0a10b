package llm

import (
	"context"
	"strings"
)

// GenerateOptions tunes a single generation call. Zero values mean provider
// defaults.
type GenerateOptions struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Provider is one hosted LLM backend. Implementations read credentials at
// construction and report missing configuration through IsAvailable rather
// than failing.
type Provider interface {
	Name() string
	// Configure (re)reads credentials and returns whether the provider is usable.
	Configure() bool
	IsAvailable() bool
	// Generate returns the completion text. Failures map onto the package's
	// error taxonomy: AuthError, RateLimitError, NetworkError, ResponseError,
	// ConfigurationError.
	Generate(ctx context.Context, prompt, systemPrompt string, opts GenerateOptions) (string, error)
	ValidateResponse(response string) bool
}

// ProviderStatus is the diagnostic view of one provider.
type ProviderStatus struct {
	Name         string `json:"name"`
	IsConfigured bool   `json:"is_configured"`
	IsAvailable  bool   `json:"is_available"`
}

func validResponse(response string) bool {
	return strings.TrimSpace(response) != ""
}
