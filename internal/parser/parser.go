package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/creditmate/bankcrawler/internal/cards"
	"github.com/creditmate/bankcrawler/internal/llm"
	"github.com/creditmate/bankcrawler/internal/logging"
)

// AIParsingError means the model output could not be turned into structured
// data, including orchestrator exhaustion. Retryable on a later cycle.
type AIParsingError struct {
	Bank    string
	Message string
	Err     error
}

func (e *AIParsingError) Error() string {
	return fmt.Sprintf("parser: %s (bank %s)", e.Message, e.Bank)
}

func (e *AIParsingError) Unwrap() error { return e.Err }

// Orchestrator is the slice of the LLM layer the parser needs.
type Orchestrator interface {
	IsAnyProviderAvailable() bool
	GenerateResponse(ctx context.Context, req llm.Request) (*llm.Result, error)
}

// Parser turns extracted document text into validated credit card records.
type Parser struct {
	orch      Orchestrator
	validator cards.Validator
}

func New(orch Orchestrator) *Parser {
	return &Parser{orch: orch}
}

// ParseCreditCardData runs the strict extraction prompt and validates the
// result. Invalid data is returned wrapped with its validation errors rather
// than rejected, so the crawler decides persistence policy.
func (p *Parser) ParseCreditCardData(ctx context.Context, content, bankName string) (any, error) {
	if err := p.checkConfigured(); err != nil {
		return nil, err
	}

	parsed, err := p.generateAndDecode(ctx, buildStructuredPrompt(content, bankName), bankName)
	if err != nil {
		return nil, err
	}
	return p.validateAndSanitize(parsed, bankName), nil
}

// ParseComprehensiveData runs both prompts: the strict one feeding the card
// upsert and the comprehensive one preserving source-specific columns for the
// audit trail.
func (p *Parser) ParseComprehensiveData(ctx context.Context, content, bankName string) (any, any, error) {
	structured, err := p.ParseCreditCardData(ctx, content, bankName)
	if err != nil {
		return nil, nil, err
	}

	comprehensive, err := p.generateAndDecode(ctx, buildComprehensivePrompt(content, bankName), bankName)
	if err != nil {
		// The audit copy is best-effort; the structured result already passed.
		logging.Warnf("[parser] comprehensive parse failed for %s: %v", bankName, err)
		comprehensive = nil
	}
	return structured, comprehensive, nil
}

func (p *Parser) checkConfigured() error {
	if p.orch == nil || !p.orch.IsAnyProviderAvailable() {
		return &llm.ConfigurationError{Message: "no LLM provider configured"}
	}
	return nil
}

func (p *Parser) generateAndDecode(ctx context.Context, prompt, bankName string) (any, error) {
	result, err := p.orch.GenerateResponse(ctx, llm.Request{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		MaxRetries:   1,
		Options:      llm.GenerateOptions{Temperature: 0.1},
	})
	if err != nil {
		var cfgErr *llm.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, &AIParsingError{Bank: bankName, Message: "all LLM providers failed", Err: err}
	}

	parsed, err := decodeJSONResponse(result.Response)
	if err != nil {
		return nil, &AIParsingError{
			Bank:    bankName,
			Message: fmt.Sprintf("invalid JSON response from %s: %v", result.Provider, err),
			Err:     err,
		}
	}
	return parsed, nil
}

// decodeJSONResponse strips markdown fences and, when the reply does not
// start with JSON, salvages the first JSON-shaped substring before giving up.
func decodeJSONResponse(raw string) (any, error) {
	cleaned := stripFences(raw)

	if !strings.HasPrefix(cleaned, "[") && !strings.HasPrefix(cleaned, "{") {
		if salvaged, ok := firstJSONSubstring(cleaned); ok {
			cleaned = salvaged
		}
	}

	var parsed any
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

func stripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
	}
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}

func firstJSONSubstring(s string) (string, bool) {
	for _, pair := range [][2]byte{{'[', ']'}, {'{', '}'}} {
		start := strings.IndexByte(s, pair[0])
		end := strings.LastIndexByte(s, pair[1])
		if start >= 0 && end > start {
			return s[start : end+1], true
		}
	}
	return "", false
}

func (p *Parser) validateAndSanitize(parsed any, bankName string) any {
	valid, validationErrors := p.validator.Validate(parsed)
	if !valid {
		logging.Warnf("[parser] validation failed for %s: %v", bankName, validationErrors)
		errsAsAny := make([]any, 0, len(validationErrors))
		for _, e := range validationErrors {
			errsAsAny = append(errsAsAny, e)
		}
		return map[string]any{"validation_errors": errsAsAny, "data": parsed}
	}

	records, err := cards.Normalize(parsed)
	if err != nil {
		// Validate already normalized once; this cannot realistically differ.
		logging.Errorf("[parser] normalize after validation failed for %s: %v", bankName, err)
		return parsed
	}
	sanitized := p.validator.Sanitize(records)
	out := make([]any, 0, len(sanitized))
	for _, rec := range sanitized {
		out = append(out, map[string]any(rec))
	}
	return out
}
