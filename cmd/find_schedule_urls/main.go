package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/creditmate/bankcrawler/internal/config"
	"github.com/creditmate/bankcrawler/internal/finder"
	"github.com/creditmate/bankcrawler/internal/llm"
	"github.com/creditmate/bankcrawler/internal/logging"
	"github.com/creditmate/bankcrawler/internal/storage/sqlite"
)

func main() {
	oneURL := flag.String("url", "", "analyze a single page instead of all banks")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

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
	f := finder.New(orch)

	if *oneURL != "" {
		result := f.FindScheduleChargeURL(ctx, *oneURL)
		printJSON(result)
		return
	}

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[find-schedule-urls] open sqlite: %v", err)
	}
	defer store.Close()

	sum, err := f.DiscoverAll(ctx, store)
	if err != nil {
		log.Fatalf("[find-schedule-urls] %v", err)
	}
	printJSON(sum)
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	os.Stdout.Write(append(out, '\n'))
}
