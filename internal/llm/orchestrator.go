package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/creditmate/bankcrawler/internal/logging"
)

// Request is one orchestrated generation call.
type Request struct {
	Prompt            string
	SystemPrompt      string
	PreferredProvider string
	// MaxRetries is the extra attempts per provider after the first.
	MaxRetries int
	Options    GenerateOptions
}

// Result carries the winning response plus provenance for the audit trail.
type Result struct {
	Response string
	Provider string
	Attempts []string
	Errors   map[string]string
}

// Diagnostics summarizes provider health for operators. Not used in the hot path.
type Diagnostics struct {
	IsValid         bool                      `json:"is_valid"`
	AvailableCount  int                       `json:"available_count"`
	TotalCount      int                       `json:"total_count"`
	Providers       map[string]ProviderStatus `json:"providers"`
	Recommendations []string                  `json:"recommendations"`
}

// Orchestrator sequences providers with per-provider retries and fallback.
// It never inspects concrete provider types.
type Orchestrator struct {
	providers []Provider
}

// NewOrchestrator keeps the given provider order as the default preference.
func NewOrchestrator(providers ...Provider) *Orchestrator {
	kept := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p == nil {
			continue
		}
		kept = append(kept, p)
		logging.Infof("[llm] initialized provider %s: available=%v", p.Name(), p.IsAvailable())
	}
	return &Orchestrator{providers: kept}
}

// AvailableProviders returns the names of providers that are ready to serve.
func (o *Orchestrator) AvailableProviders() []string {
	var names []string
	for _, p := range o.providers {
		if p.IsAvailable() {
			names = append(names, p.Name())
		}
	}
	return names
}

func (o *Orchestrator) IsAnyProviderAvailable() bool {
	return len(o.AvailableProviders()) > 0
}

// ProviderByName returns the provider with the given name, or nil.
func (o *Orchestrator) ProviderByName(name string) Provider {
	for _, p := range o.providers {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// GenerateResponse tries each available provider in order, preferred one
// first. A rate-limited provider is skipped without further retries; other
// provider errors burn the retry budget before falling through. Exhaustion
// raises AllProvidersFailedError with the per-attempt error map.
func (o *Orchestrator) GenerateResponse(ctx context.Context, req Request) (*Result, error) {
	ordered := o.providerOrder(req.PreferredProvider)
	if len(ordered) == 0 {
		return nil, &ConfigurationError{Message: "no LLM providers are available"}
	}

	attempts := []string{}
	errs := map[string]string{}

	for _, provider := range ordered {
		if result := o.tryProvider(ctx, provider, req, &attempts, errs); result != nil {
			return result, nil
		}
	}

	return nil, &AllProvidersFailedError{Attempts: len(attempts), Failures: errs}
}

func (o *Orchestrator) providerOrder(preferred string) []Provider {
	var ordered []Provider
	for _, p := range o.providers {
		if p.IsAvailable() {
			ordered = append(ordered, p)
		}
	}
	if preferred == "" {
		return ordered
	}
	for i, p := range ordered {
		if p.Name() == preferred {
			ordered = append([]Provider{p}, append(append([]Provider{}, ordered[:i]...), ordered[i+1:]...)...)
			break
		}
	}
	return ordered
}

func (o *Orchestrator) tryProvider(ctx context.Context, provider Provider, req Request, attempts *[]string, errs map[string]string) *Result {
	name := provider.Name()

	for attempt := 0; attempt <= req.MaxRetries; attempt++ {
		attemptKey := fmt.Sprintf("%s_attempt_%d", name, attempt+1)
		*attempts = append(*attempts, attemptKey)

		response, err := provider.Generate(ctx, req.Prompt, req.SystemPrompt, req.Options)
		if err == nil {
			if provider.ValidateResponse(response) {
				logging.Infof("[llm] response generated by %s (attempt %d)", name, attempt+1)
				return &Result{
					Response: response,
					Provider: name,
					Attempts: *attempts,
					Errors:   errs,
				}
			}
			err = &ResponseError{Provider: name, Message: "response failed validation"}
		}

		errs[attemptKey] = err.Error()

		var rateErr *RateLimitError
		if errors.As(err, &rateErr) {
			logging.Warnf("[llm] %s rate limited, moving to next provider", name)
			return nil
		}
		if !isProviderError(err) {
			logging.Errorf("[llm] unexpected error from %s: %v", name, err)
			return nil
		}
		if attempt < req.MaxRetries {
			logging.Infof("[llm] retrying %s (attempt %d)", name, attempt+2)
			continue
		}
		logging.Warnf("[llm] retries exhausted for %s", name)
	}
	return nil
}

// isProviderError reports whether the error belongs to the retryable part of
// the taxonomy.
func isProviderError(err error) bool {
	var (
		authErr *AuthError
		netErr  *NetworkError
		respErr *ResponseError
		cfgErr  *ConfigurationError
	)
	return errors.As(err, &authErr) || errors.As(err, &netErr) ||
		errors.As(err, &respErr) || errors.As(err, &cfgErr)
}

// ValidateConfiguration reports provider health with remediation hints.
func (o *Orchestrator) ValidateConfiguration() Diagnostics {
	statuses := make(map[string]ProviderStatus, len(o.providers))
	available := 0
	var recommendations []string

	for _, p := range o.providers {
		status := ProviderStatus{
			Name:         p.Name(),
			IsConfigured: p.IsAvailable(),
			IsAvailable:  p.IsAvailable(),
		}
		statuses[p.Name()] = status
		if status.IsAvailable {
			available++
		} else {
			recommendations = append(recommendations,
				fmt.Sprintf("Configure the %s provider by setting its API key.", p.Name()))
		}
	}

	switch available {
	case 0:
		recommendations = append(recommendations,
			"No LLM providers are available. Configure at least one provider.")
	case 1:
		recommendations = append(recommendations,
			"Only one provider is available. Configure a second provider for fallback.")
	}

	return Diagnostics{
		IsValid:         available > 0,
		AvailableCount:  available,
		TotalCount:      len(o.providers),
		Providers:       statuses,
		Recommendations: recommendations,
	}
}
