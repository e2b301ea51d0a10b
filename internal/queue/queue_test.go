package queue

import (
	"context"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs []kafkago.Message
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func TestPublishAndDecodeJobs(t *testing.T) {
	w := &captureWriter{}
	require.NoError(t, PublishJobs(context.Background(), w, []int64{7, 8}))
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "7", string(w.msgs[0].Key))

	job, err := DecodeJob(w.msgs[1].Value)
	require.NoError(t, err)
	assert.Equal(t, int64(8), job.DataSourceID)
	assert.False(t, job.EnqueuedAt.IsZero())
}

func TestPublishJobsEmptyIsNoop(t *testing.T) {
	w := &captureWriter{}
	require.NoError(t, PublishJobs(context.Background(), w, nil))
	assert.Empty(t, w.msgs)
}

func TestDecodeJobRejectsGarbage(t *testing.T) {
	_, err := DecodeJob([]byte("not json"))
	assert.Error(t, err)

	_, err = DecodeJob([]byte(`{"data_source_id": 0}`))
	assert.Error(t, err)
}

func TestPublishResult(t *testing.T) {
	w := &captureWriter{}
	err := PublishResult(context.Background(), w, CrawlResult{
		DataSourceID: 3,
		Success:      true,
		FinishedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "3", string(w.msgs[0].Key))
}
