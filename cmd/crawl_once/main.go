package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/creditmate/bankcrawler/internal/config"
	"github.com/creditmate/bankcrawler/internal/crawler"
	"github.com/creditmate/bankcrawler/internal/extractor"
	"github.com/creditmate/bankcrawler/internal/llm"
	"github.com/creditmate/bankcrawler/internal/locks"
	"github.com/creditmate/bankcrawler/internal/logging"
	"github.com/creditmate/bankcrawler/internal/parser"
	"github.com/creditmate/bankcrawler/internal/storage/sqlite"
)

func main() {
	sourceID := flag.Int64("source", 0, "crawl a single data source id")
	bankID := flag.Int64("bank", 0, "crawl all active sources for one bank")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logging.InitFromEnv()
	cfg := config.Load()

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[crawl-once] open sqlite: %v", err)
	}
	defer store.Close()

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
	ext := extractor.New(extractor.Config{
		Timeout:      cfg.HTTPTimeout,
		TesseractBin: cfg.TesseractBin,
		PdftoppmBin:  cfg.PdftoppmBin,
	})
	svc := crawler.New(store, ext, parser.New(orch), locks.NewMemoryLocker())

	switch {
	case *sourceID > 0:
		ok, err := svc.CrawlDataSource(ctx, *sourceID)
		if err != nil {
			log.Fatalf("[crawl-once] %v", err)
		}
		log.Printf("[crawl-once] source %d success=%t", *sourceID, ok)
		if !ok {
			os.Exit(1)
		}
	case *bankID > 0:
		sum, err := svc.CrawlForBank(ctx, *bankID)
		if err != nil {
			log.Fatalf("[crawl-once] %v", err)
		}
		printSummary(sum)
	default:
		sum, err := svc.CrawlAll(ctx)
		if err != nil {
			log.Fatalf("[crawl-once] %v", err)
		}
		printSummary(sum)
	}
}

func printSummary(sum crawler.Summary) {
	out, _ := json.Marshal(sum)
	os.Stdout.Write(append(out, '\n'))
}
