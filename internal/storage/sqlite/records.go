package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/creditmate/bankcrawler/internal/models"
)

// CreateCrawlRecord appends one audit row and returns its ID.
func (s *Store) CreateCrawlRecord(ctx context.Context, rec *models.CrawlRecord) (int64, error) {
	now := nowString()
	syncJSON, err := json.Marshal(rec.SyncTimestamps)
	if err != nil {
		return 0, fmt.Errorf("marshal sync timestamps: %w", err)
	}
	if rec.ProcessingStatus == "" {
		rec.ProcessingStatus = models.StatusPending
	}
	crawledAt := formatTime(rec.CrawledAt)
	if crawledAt == "" {
		crawledAt = now
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO crawl_records
			(data_source_id, raw_content, extracted_content, content_hash,
			 structured_json, comprehensive_json, processing_status, error_message,
			 sync_timestamps, crawled_at, modified)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		rec.DataSourceID, rec.RawContent, rec.ExtractedContent, rec.ContentHash,
		rec.StructuredJSON, rec.ComprehensiveJSON, string(rec.ProcessingStatus),
		rec.ErrorMessage, string(syncJSON), crawledAt, now)
	if err != nil {
		return 0, fmt.Errorf("insert crawl record: %w", err)
	}
	return res.LastInsertId()
}

// GetLatestCompletedCrawlRecord returns the newest completed record for a
// source, the comparison point for change detection.
func (s *Store) GetLatestCompletedCrawlRecord(ctx context.Context, dataSourceID int64) (*models.CrawlRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, data_source_id, raw_content, extracted_content, content_hash,
		       structured_json, comprehensive_json, processing_status, error_message,
		       sync_timestamps, crawled_at, modified
		FROM crawl_records
		WHERE data_source_id = ? AND processing_status = ?
		ORDER BY crawled_at DESC, id DESC
		LIMIT 1`, dataSourceID, string(models.StatusCompleted))
	return scanRecord(row)
}

// GetCrawlRecord loads one record by ID.
func (s *Store) GetCrawlRecord(ctx context.Context, id int64) (*models.CrawlRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, data_source_id, raw_content, extracted_content, content_hash,
		       structured_json, comprehensive_json, processing_status, error_message,
		       sync_timestamps, crawled_at, modified
		FROM crawl_records WHERE id = ?`, id)
	return scanRecord(row)
}

// AppendSyncTimestamp records one more "still unchanged" confirmation on an
// existing completed record.
func (s *Store) AppendSyncTimestamp(ctx context.Context, recordID int64, ts time.Time) error {
	rec, err := s.GetCrawlRecord(ctx, recordID)
	if err != nil {
		return err
	}
	stamps := append(rec.SyncTimestamps, ts.UTC().Format(time.RFC3339))
	syncJSON, err := json.Marshal(stamps)
	if err != nil {
		return fmt.Errorf("marshal sync timestamps: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE crawl_records SET sync_timestamps = ?, modified = ? WHERE id = ?`,
		string(syncJSON), nowString(), recordID)
	return err
}

// SetCrawlRecordStatus updates status and error message.
func (s *Store) SetCrawlRecordStatus(ctx context.Context, recordID int64, status models.ProcessingStatus, errorMessage string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE crawl_records SET processing_status = ?, error_message = ?, modified = ? WHERE id = ?`,
		string(status), errorMessage, nowString(), recordID)
	return err
}

// CleanupOldCrawlRecords deletes records older than the cutoff and returns
// how many went away.
func (s *Store) CleanupOldCrawlRecords(ctx context.Context, daysToKeep int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -daysToKeep)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM crawl_records WHERE crawled_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanRecord(row rowScanner) (*models.CrawlRecord, error) {
	var (
		rec              models.CrawlRecord
		status           string
		syncJSON         string
		crawled, updated string
	)
	err := row.Scan(&rec.ID, &rec.DataSourceID, &rec.RawContent, &rec.ExtractedContent,
		&rec.ContentHash, &rec.StructuredJSON, &rec.ComprehensiveJSON,
		&status, &rec.ErrorMessage, &syncJSON, &crawled, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.ProcessingStatus = models.ProcessingStatus(status)
	if syncJSON != "" {
		if err := json.Unmarshal([]byte(syncJSON), &rec.SyncTimestamps); err != nil {
			return nil, fmt.Errorf("unmarshal sync timestamps: %w", err)
		}
	}
	rec.CrawledAt = mustTime(crawled)
	rec.Modified = mustTime(updated)
	return &rec, nil
}
