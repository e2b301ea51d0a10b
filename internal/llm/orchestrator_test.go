package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name      string
	available bool
	response  string
	err       error
	calls     int
}

func (f *fakeProvider) Name() string      { return f.name }
func (f *fakeProvider) Configure() bool   { return f.available }
func (f *fakeProvider) IsAvailable() bool { return f.available }

func (f *fakeProvider) ValidateResponse(response string) bool {
	return response != ""
}

func (f *fakeProvider) Generate(_ context.Context, _, _ string, _ GenerateOptions) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestGenerateResponseFallsBackToSecondProvider(t *testing.T) {
	broken := &fakeProvider{name: "gateway", available: true, err: &NetworkError{Provider: "gateway", Err: errors.New("connection refused")}}
	working := &fakeProvider{name: "gemini", available: true, response: `[{"name":"Card"}]`}
	orch := NewOrchestrator(broken, working)

	result, err := orch.GenerateResponse(context.Background(), Request{Prompt: "p", MaxRetries: 1})
	require.NoError(t, err)
	assert.Equal(t, "gemini", result.Provider)
	assert.Equal(t, `[{"name":"Card"}]`, result.Response)
	assert.Equal(t, []string{"gateway_attempt_1", "gateway_attempt_2", "gemini_attempt_1"}, result.Attempts)
	assert.Contains(t, result.Errors, "gateway_attempt_1")
	assert.Equal(t, 2, broken.calls)
}

func TestGenerateResponseRateLimitSkipsRetries(t *testing.T) {
	limited := &fakeProvider{name: "gateway", available: true, err: &RateLimitError{Provider: "gateway"}}
	working := &fakeProvider{name: "gemini", available: true, response: "ok"}
	orch := NewOrchestrator(limited, working)

	result, err := orch.GenerateResponse(context.Background(), Request{Prompt: "p", MaxRetries: 3})
	require.NoError(t, err)
	assert.Equal(t, "gemini", result.Provider)
	assert.Equal(t, 1, limited.calls)
}

func TestGenerateResponseExhaustion(t *testing.T) {
	first := &fakeProvider{name: "gateway", available: true, err: &NetworkError{Provider: "gateway", Err: errors.New("down")}}
	second := &fakeProvider{name: "gemini", available: true, err: &ResponseError{Provider: "gemini", Message: "empty"}}
	orch := NewOrchestrator(first, second)

	_, err := orch.GenerateResponse(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)

	var allErr *AllProvidersFailedError
	require.ErrorAs(t, err, &allErr)
	assert.Equal(t, 2, allErr.Attempts)
	assert.Contains(t, allErr.Failures, "gateway_attempt_1")
	assert.Contains(t, allErr.Failures, "gemini_attempt_1")
}

func TestGenerateResponsePreferredProviderGoesFirst(t *testing.T) {
	first := &fakeProvider{name: "gateway", available: true, response: "from gateway"}
	second := &fakeProvider{name: "gemini", available: true, response: "from gemini"}
	orch := NewOrchestrator(first, second)

	result, err := orch.GenerateResponse(context.Background(), Request{Prompt: "p", PreferredProvider: "gemini"})
	require.NoError(t, err)
	assert.Equal(t, "gemini", result.Provider)
	assert.Zero(t, first.calls)
}

func TestGenerateResponseNoProvidersAvailable(t *testing.T) {
	orch := NewOrchestrator(&fakeProvider{name: "gateway", available: false})

	_, err := orch.GenerateResponse(context.Background(), Request{Prompt: "p"})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestGenerateResponseEmptyResponseIsRetried(t *testing.T) {
	empty := &fakeProvider{name: "gateway", available: true, response: ""}
	orch := NewOrchestrator(empty)

	_, err := orch.GenerateResponse(context.Background(), Request{Prompt: "p", MaxRetries: 1})
	var allErr *AllProvidersFailedError
	require.ErrorAs(t, err, &allErr)
	assert.Equal(t, 2, empty.calls)
}

func TestValidateConfiguration(t *testing.T) {
	orch := NewOrchestrator(
		&fakeProvider{name: "gateway", available: true},
		&fakeProvider{name: "gemini", available: false},
	)

	diag := orch.ValidateConfiguration()
	assert.True(t, diag.IsValid)
	assert.Equal(t, 1, diag.AvailableCount)
	assert.Equal(t, 2, diag.TotalCount)
	require.Contains(t, diag.Providers, "gemini")
	assert.False(t, diag.Providers["gemini"].IsAvailable)
	assert.NotEmpty(t, diag.Recommendations)
}

func TestValidateConfigurationNothingAvailable(t *testing.T) {
	orch := NewOrchestrator(&fakeProvider{name: "gateway"})
	diag := orch.ValidateConfiguration()
	assert.False(t, diag.IsValid)
	assert.False(t, orch.IsAnyProviderAvailable())
}
