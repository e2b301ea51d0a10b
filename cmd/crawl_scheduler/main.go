package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/creditmate/bankcrawler/internal/config"
	"github.com/creditmate/bankcrawler/internal/kafka"
	"github.com/creditmate/bankcrawler/internal/logging"
	"github.com/creditmate/bankcrawler/internal/queue"
	"github.com/creditmate/bankcrawler/internal/storage/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logging.InitFromEnv()
	cfg := config.Load()

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[crawl-scheduler] open sqlite: %v", err)
	}
	defer store.Close()

	brokers := kafka.Brokers()
	topic := kafka.TopicFromEnv("CRAWLER_JOBS_TOPIC", kafka.DefaultJobsTopic)

	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
		log.Fatalf("[crawl-scheduler] wait for broker: %v", err)
	}
	cancel()

	ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
	if err := kafka.EnsureTopic(ensureCtx, brokers, topic); err != nil {
		log.Printf("[crawl-scheduler] ensure topic warning: %v", err)
	}
	cancelEnsure()

	writer := kafka.NewWriter(brokers, topic)
	defer writer.Close()

	log.Printf("[crawl-scheduler] enqueueing every %s to %s", cfg.SchedulerInterval, topic)
	ticker := time.NewTicker(cfg.SchedulerInterval)
	defer ticker.Stop()

	enqueue(ctx, store, writer)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			enqueue(ctx, store, writer)
		}
	}
}

func enqueue(ctx context.Context, store *sqlite.Store, writer queue.Writer) {
	sources, err := store.ListActiveDataSources(ctx)
	if err != nil {
		log.Printf("[crawl-scheduler] list sources: %v", err)
		return
	}
	ids := make([]int64, 0, len(sources))
	for _, src := range sources {
		ids = append(ids, src.ID)
	}
	if err := queue.PublishJobs(ctx, writer, ids); err != nil {
		log.Printf("[crawl-scheduler] publish jobs: %v", err)
		return
	}
	log.Printf("[crawl-scheduler] enqueued %d crawl jobs", len(ids))
}
