package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/creditmate/bankcrawler/internal/config"
	"github.com/creditmate/bankcrawler/internal/crawler"
	"github.com/creditmate/bankcrawler/internal/extractor"
	"github.com/creditmate/bankcrawler/internal/kafka"
	"github.com/creditmate/bankcrawler/internal/llm"
	"github.com/creditmate/bankcrawler/internal/locks"
	"github.com/creditmate/bankcrawler/internal/logging"
	"github.com/creditmate/bankcrawler/internal/parser"
	"github.com/creditmate/bankcrawler/internal/queue"
	"github.com/creditmate/bankcrawler/internal/retry"
	"github.com/creditmate/bankcrawler/internal/storage/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logging.InitFromEnv()
	cfg := config.Load()

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[crawl-worker] open sqlite: %v", err)
	}
	defer store.Close()

	locker := newLocker(cfg)
	defer locker.Close()

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
	svc := crawler.New(store, ext, parser.New(orch), locker)

	brokers := kafka.Brokers()
	jobsTopic := kafka.TopicFromEnv("CRAWLER_JOBS_TOPIC", kafka.DefaultJobsTopic)
	resultsTopic := kafka.TopicFromEnv("CRAWLER_RESULTS_TOPIC", kafka.DefaultResultsTopic)
	group := envString("CRAWL_WORKER_GROUP", "crawl-workers")

	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
		log.Fatalf("[crawl-worker] wait for broker: %v", err)
	}
	cancel()

	for _, topic := range []string{jobsTopic, resultsTopic} {
		ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
		if err := kafka.EnsureTopic(ensureCtx, brokers, topic); err != nil {
			log.Printf("[crawl-worker] ensure topic warning: %v", err)
		}
		cancelEnsure()
	}

	writer := kafka.NewWriter(brokers, resultsTopic)
	defer writer.Close()

	policy := retry.Policy{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     retry.ExponentialBackoff(time.Minute, 8*time.Minute),
	}

	workers := cfg.CrawlWorkers
	if workers < 1 {
		workers = 1
	}
	log.Printf("[crawl-worker] consuming %s with group %s (%d workers)", jobsTopic, group, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		reader := kafka.NewReader(brokers, jobsTopic, group)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer reader.Close()
			consume(ctx, reader, writer, svc, policy)
		}()
	}
	wg.Wait()
}

func consume(ctx context.Context, reader *kafkago.Reader, writer *kafkago.Writer, svc *crawler.Service, policy retry.Policy) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[crawl-worker] read message: %v", err)
			continue
		}
		job, err := queue.DecodeJob(msg.Value)
		if err != nil {
			log.Printf("[crawl-worker] skipping bad message: %v", err)
			continue
		}

		// Retry covers infrastructure errors only. A false return is a
		// content failure already recorded against the source, and
		// re-running it would multiply the failure count.
		var done bool
		err = policy.Do(ctx, func(ctx context.Context) error {
			ok, err := svc.CrawlDataSource(ctx, job.DataSourceID)
			done = ok
			return err
		})
		if err != nil {
			log.Printf("[crawl-worker] source %d: %v", job.DataSourceID, err)
		}
		result := queue.CrawlResult{
			DataSourceID: job.DataSourceID,
			Success:      err == nil && done,
			FinishedAt:   time.Now().UTC(),
		}
		if err := queue.PublishResult(ctx, writer, result); err != nil {
			log.Printf("[crawl-worker] publish result: %v", err)
		}
	}
}

func newLocker(cfg config.Config) locks.SourceLocker {
	if cfg.RedisAddr == "" {
		return locks.NewMemoryLocker()
	}
	locker, err := locks.NewRedisLocker(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, 10*time.Minute, "")
	if err != nil {
		log.Printf("[crawl-worker] redis locker unavailable, using in-process locks: %v", err)
		return locks.NewMemoryLocker()
	}
	return locker
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
