package llm

import "fmt"

// ConfigurationError means a provider (or the whole orchestrator) has no
// usable credentials. It is an operator problem, not a source problem, and
// callers must not count it against a data source.
type ConfigurationError struct {
	Provider string
	Message  string
}

func (e *ConfigurationError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("llm: %s not configured: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("llm: %s", e.Message)
}

// AuthError means the provider rejected our credentials.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("llm: %s authentication failed: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitError means the provider throttled us. The orchestrator moves to
// the next provider instead of retrying.
type RateLimitError struct {
	Provider string
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("llm: %s rate limit exceeded: %v", e.Provider, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// NetworkError covers timeouts and transport failures talking to a provider.
type NetworkError struct {
	Provider string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("llm: %s network error: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ResponseError means the provider answered but the response was empty or
// otherwise unusable.
type ResponseError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("llm: %s response error: %s", e.Provider, e.Message)
}

func (e *ResponseError) Unwrap() error { return e.Err }

// AllProvidersFailedError carries the per-attempt error map after the
// orchestrator exhausted every provider.
type AllProvidersFailedError struct {
	Attempts int
	Failures map[string]string
}

func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("llm: all providers failed after %d attempts", e.Attempts)
}
