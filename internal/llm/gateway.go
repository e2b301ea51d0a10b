package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/creditmate/bankcrawler/internal/logging"
)

const (
	defaultGatewayBaseURL = "https://openrouter.ai/api/v1"
	defaultGatewayModel   = "deepseek/deepseek-chat-v3-0324:free"
	defaultGatewayTimeout = 60 * time.Second
)

// GatewayConfig holds the credentials for an OpenAI-compatible gateway.
type GatewayConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// GatewayProvider talks to a multi-model gateway (OpenRouter or compatible)
// through the chat-completion API.
type GatewayProvider struct {
	cfg        GatewayConfig
	api        *openai.Client
	configured bool
}

// NewGatewayProvider builds the provider. Missing credentials leave it
// unavailable instead of failing.
func NewGatewayProvider(cfg GatewayConfig) *GatewayProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGatewayBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultGatewayModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGatewayTimeout
	}
	p := &GatewayProvider{cfg: cfg}
	p.Configure()
	return p
}

func (p *GatewayProvider) Name() string { return "gateway" }

func (p *GatewayProvider) Configure() bool {
	apiKey := strings.TrimSpace(p.cfg.APIKey)
	if apiKey == "" {
		logging.Warnf("[llm] gateway API key not configured")
		p.configured = false
		return false
	}
	openaiCfg := openai.DefaultConfig(apiKey)
	openaiCfg.BaseURL = p.cfg.BaseURL
	p.api = openai.NewClientWithConfig(openaiCfg)
	p.configured = true
	return true
}

func (p *GatewayProvider) IsAvailable() bool {
	return p.configured && p.api != nil
}

func (p *GatewayProvider) Generate(ctx context.Context, prompt, systemPrompt string, opts GenerateOptions) (string, error) {
	if !p.IsAvailable() {
		return "", &ConfigurationError{Provider: p.Name(), Message: "missing API key"}
	}

	model := opts.Model
	if model == "" {
		model = p.cfg.Model
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4000
	}

	var messages []openai.ChatCompletionMessage
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	ctxWithTimeout, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	resp, err := p.api.CreateChatCompletion(ctxWithTimeout, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", p.mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &ResponseError{Provider: p.Name(), Message: "no response choices"}
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", &ResponseError{Provider: p.Name(), Message: "empty response content"}
	}
	return content, nil
}

func (p *GatewayProvider) ValidateResponse(response string) bool {
	return validResponse(response)
}

func (p *GatewayProvider) mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			return &AuthError{Provider: p.Name(), Err: err}
		case apiErr.HTTPStatusCode == 429:
			return &RateLimitError{Provider: p.Name(), Err: err}
		case apiErr.HTTPStatusCode >= 500:
			return &NetworkError{Provider: p.Name(), Err: err}
		default:
			return &ResponseError{Provider: p.Name(), Message: apiErr.Message, Err: err}
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "authentication"):
		return &AuthError{Provider: p.Name(), Err: err}
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota"):
		return &RateLimitError{Provider: p.Name(), Err: err}
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "connection") || strings.Contains(msg, "deadline"):
		return &NetworkError{Provider: p.Name(), Err: err}
	default:
		return &ResponseError{Provider: p.Name(), Message: err.Error(), Err: err}
	}
}
