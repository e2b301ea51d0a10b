package main

import (
	"encoding/json"
	"os"

	"github.com/creditmate/bankcrawler/internal/config"
	"github.com/creditmate/bankcrawler/internal/llm"
	"github.com/creditmate/bankcrawler/internal/logging"
)

func main() {
	logging.InitFromEnv()
	cfg := config.Load()

	orch := llm.NewOrchestrator(
		llm.NewGatewayProvider(llm.GatewayConfig{
			APIKey:  cfg.OpenRouterAPIKey,
			BaseURL: cfg.OpenRouterBaseURL,
			Model:   cfg.OpenRouterModel,
		}),
		llm.NewGeminiProvider(llm.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		}),
	)

	diag := orch.ValidateConfiguration()
	out, _ := json.MarshalIndent(diag, "", "  ")
	os.Stdout.Write(append(out, '\n'))
	if !diag.IsValid {
		os.Exit(1)
	}
}
