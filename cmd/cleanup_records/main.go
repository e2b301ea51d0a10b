package main

import (
	"context"
	"flag"
	"log"

	"github.com/creditmate/bankcrawler/internal/config"
	"github.com/creditmate/bankcrawler/internal/logging"
	"github.com/creditmate/bankcrawler/internal/storage/sqlite"
)

func main() {
	days := flag.Int("days", 0, "delete crawl records older than this many days")
	flag.Parse()

	logging.InitFromEnv()
	cfg := config.Load()
	if *days <= 0 {
		*days = cfg.RetentionDays
	}

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[cleanup-records] open sqlite: %v", err)
	}
	defer store.Close()

	deleted, err := store.CleanupOldCrawlRecords(context.Background(), *days)
	if err != nil {
		log.Fatalf("[cleanup-records] %v", err)
	}
	log.Printf("[cleanup-records] deleted %d crawl records older than %d days", deleted, *days)
}
