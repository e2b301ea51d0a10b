package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// CrawlJob asks a worker to crawl one data source.
type CrawlJob struct {
	DataSourceID int64     `json:"data_source_id"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

// CrawlResult is the audit event a worker emits after finishing a job.
type CrawlResult struct {
	DataSourceID int64     `json:"data_source_id"`
	Success      bool      `json:"success"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Writer is the subset of kafka.Writer the queue uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// PublishJobs enqueues one message per data source ID, keyed by source so
// jobs for the same source land on the same partition.
func PublishJobs(ctx context.Context, w Writer, sourceIDs []int64) error {
	if len(sourceIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	msgs := make([]kafkago.Message, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		payload, err := json.Marshal(CrawlJob{DataSourceID: id, EnqueuedAt: now})
		if err != nil {
			return fmt.Errorf("queue: marshal job for source %d: %w", id, err)
		}
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(strconv.FormatInt(id, 10)),
			Value: payload,
		})
	}
	if err := w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("queue: publish %d jobs: %w", len(msgs), err)
	}
	return nil
}

// DecodeJob parses a job message payload.
func DecodeJob(value []byte) (CrawlJob, error) {
	var job CrawlJob
	if err := json.Unmarshal(value, &job); err != nil {
		return CrawlJob{}, fmt.Errorf("queue: decode job: %w", err)
	}
	if job.DataSourceID <= 0 {
		return CrawlJob{}, fmt.Errorf("queue: job has no data source id")
	}
	return job, nil
}

// PublishResult emits a crawl outcome event. Best effort, caller decides
// whether a publish failure matters.
func PublishResult(ctx context.Context, w Writer, result CrawlResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("queue: marshal result: %w", err)
	}
	msg := kafkago.Message{
		Key:   []byte(strconv.FormatInt(result.DataSourceID, 10)),
		Value: payload,
	}
	if err := w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("queue: publish result: %w", err)
	}
	return nil
}
