package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creditmate/bankcrawler/internal/cards"
	"github.com/creditmate/bankcrawler/internal/extractor"
	"github.com/creditmate/bankcrawler/internal/hashutil"
	"github.com/creditmate/bankcrawler/internal/llm"
	"github.com/creditmate/bankcrawler/internal/locks"
	"github.com/creditmate/bankcrawler/internal/logging"
	"github.com/creditmate/bankcrawler/internal/models"
	"github.com/creditmate/bankcrawler/internal/storage/sqlite"
)

// Store is the persistence surface the crawler drives.
type Store interface {
	GetDataSource(ctx context.Context, id int64) (*models.DataSource, error)
	ListActiveDataSources(ctx context.Context) ([]*models.DataSource, error)
	ListActiveDataSourcesForBank(ctx context.Context, bankID int64) ([]*models.DataSource, error)
	MarkCrawled(ctx context.Context, id int64, at time.Time) error
	IncrementFailedAttempts(ctx context.Context, id int64) (int, error)
	ResetFailedAttempts(ctx context.Context, id int64) error
	MarkSuccessfulCrawl(ctx context.Context, id int64, at time.Time) error
	CreateCrawlRecord(ctx context.Context, rec *models.CrawlRecord) (int64, error)
	GetLatestCompletedCrawlRecord(ctx context.Context, dataSourceID int64) (*models.CrawlRecord, error)
	AppendSyncTimestamp(ctx context.Context, recordID int64, ts time.Time) error
	SetCrawlRecordStatus(ctx context.Context, recordID int64, status models.ProcessingStatus, errorMessage string) error
	UpsertCreditCard(ctx context.Context, card *models.CreditCard) (int64, error)
	CleanupOldCrawlRecords(ctx context.Context, daysToKeep int) (int64, error)
}

// ContentExtractor fetches a source URL and returns (raw body, extracted text).
type ContentExtractor interface {
	Extract(ctx context.Context, url string, contentType models.ContentType) (string, string, error)
}

// ContentParser turns extracted text into structured card data plus a
// comprehensive audit copy.
type ContentParser interface {
	ParseComprehensiveData(ctx context.Context, content, bankName string) (any, any, error)
}

// Service runs the fetch, hash, parse, persist pipeline for bank fee sources.
type Service struct {
	store     Store
	extractor ContentExtractor
	parser    ContentParser
	locker    locks.SourceLocker
	validator cards.Validator
}

// Summary aggregates one batch run.
type Summary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

func New(store Store, ext ContentExtractor, p ContentParser, locker locks.SourceLocker) *Service {
	if locker == nil {
		locker = locks.NewMemoryLocker()
	}
	return &Service{store: store, extractor: ext, parser: p, locker: locker}
}

// CrawlDataSource runs one full crawl for a source. All expected content
// failures end in a failed CrawlRecord and a false return. A non-nil error
// means infrastructure trouble before any crawl state changed (store or lock
// unreachable); only those are safe for a caller to retry.
func (s *Service) CrawlDataSource(ctx context.Context, sourceID int64) (bool, error) {
	src, err := s.store.GetDataSource(ctx, sourceID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			logging.Warnf("[crawler] source %d does not exist", sourceID)
			return false, nil
		}
		return false, fmt.Errorf("crawler: load source %d: %w", sourceID, err)
	}
	if !src.IsActive {
		logging.Infof("[crawler] source %d (%s) is inactive, skipping", src.ID, src.URL)
		return false, nil
	}

	ok, err := s.locker.TryLock(ctx, src.ID)
	if err != nil {
		return false, fmt.Errorf("crawler: lock source %d: %w", src.ID, err)
	}
	if !ok {
		logging.Infof("[crawler] source %d already being crawled, skipping", src.ID)
		return false, nil
	}
	defer func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), src.ID); err != nil {
			logging.Warnf("[crawler] unlock source %d: %v", src.ID, err)
		}
	}()

	return s.crawlLocked(ctx, src), nil
}

func (s *Service) crawlLocked(ctx context.Context, src *models.DataSource) bool {
	now := time.Now().UTC()
	if err := s.store.MarkCrawled(ctx, src.ID, now); err != nil {
		logging.Warnf("[crawler] mark crawled %d: %v", src.ID, err)
	}

	raw, text, err := s.extractor.Extract(ctx, src.URL, src.ContentType)
	if err != nil {
		msg := extractionMessage(err)
		logging.Warnf("[crawler] extraction failed for %s: %s", src.URL, msg)
		s.recordFailure(ctx, src, "", "", msg, true)
		return false
	}

	if strings.TrimSpace(text) == "" {
		logging.Warnf("[crawler] no content extracted from %s", src.URL)
		s.recordFailure(ctx, src, raw, "", "No content could be extracted from source", false)
		return false
	}

	hash := hashutil.HashContent(text)
	latest, err := s.store.GetLatestCompletedCrawlRecord(ctx, src.ID)
	if err != nil && !errors.Is(err, sqlite.ErrNotFound) {
		logging.Warnf("[crawler] latest record lookup %d: %v", src.ID, err)
	}
	if latest != nil && latest.ContentHash == hash {
		logging.Infof("[crawler] content unchanged for %s, recording sync", src.URL)
		if err := s.store.MarkSuccessfulCrawl(ctx, src.ID, now); err != nil {
			logging.Warnf("[crawler] mark successful %d: %v", src.ID, err)
		}
		if err := s.store.AppendSyncTimestamp(ctx, latest.ID, now); err != nil {
			logging.Warnf("[crawler] append sync timestamp %d: %v", latest.ID, err)
		}
		return true
	}

	structured, comprehensive, err := s.parser.ParseComprehensiveData(ctx, text, src.BankName)
	if err != nil {
		var cfgErr *llm.ConfigurationError
		if errors.As(err, &cfgErr) {
			logging.Errorf("[crawler] %v", cfgErr)
			s.recordFailure(ctx, src, raw, text, cfgErr.Error(), false)
			return false
		}
		logging.Warnf("[crawler] parse failed for %s: %v", src.URL, err)
		s.recordFailure(ctx, src, raw, text, err.Error(), true)
		return false
	}

	recordID, err := s.store.CreateCrawlRecord(ctx, &models.CrawlRecord{
		DataSourceID:      src.ID,
		RawContent:        raw,
		ExtractedContent:  text,
		ContentHash:       hash,
		StructuredJSON:    marshalAny(structured),
		ComprehensiveJSON: marshalAny(comprehensive),
		ProcessingStatus:  models.StatusProcessing,
		CrawledAt:         now,
	})
	if err != nil {
		logging.Errorf("[crawler] create crawl record for %d: %v", src.ID, err)
		s.incrementFailures(ctx, src)
		return false
	}

	records, failMsg := s.resolveRecords(structured, src)
	if failMsg != "" {
		s.failRecord(ctx, src, recordID, failMsg, true)
		return false
	}

	if err := s.upsertCards(ctx, src.BankID, records); err != nil {
		s.failRecord(ctx, src, recordID, "Database update failed: "+err.Error(), true)
		return false
	}

	if err := s.store.SetCrawlRecordStatus(ctx, recordID, models.StatusCompleted, ""); err != nil {
		logging.Warnf("[crawler] complete record %d: %v", recordID, err)
	}
	if err := s.store.ResetFailedAttempts(ctx, src.ID); err != nil {
		logging.Warnf("[crawler] reset failures %d: %v", src.ID, err)
	}
	if err := s.store.MarkSuccessfulCrawl(ctx, src.ID, now); err != nil {
		logging.Warnf("[crawler] mark successful %d: %v", src.ID, err)
	}
	logging.Infof("[crawler] crawl completed for %s (%d cards)", src.URL, len(records))
	return true
}

// resolveRecords unwraps the parser result into a usable card list. A
// non-empty second return is the failure message for the crawl record.
func (s *Service) resolveRecords(structured any, src *models.DataSource) ([]cards.Record, string) {
	payload := structured
	if errs, inner, wrapped := cards.ValidationWrapper(structured); wrapped {
		logging.Warnf("[crawler] validation errors for %s: %v", src.URL, errs)
		payload = inner
	}
	if msg, ok := cards.HasTopLevelError(payload); ok {
		return nil, msg
	}
	records, err := cards.Normalize(payload)
	if err != nil {
		return nil, err.Error()
	}
	if len(records) == 0 {
		return nil, "No credit card data extracted"
	}
	return s.validator.Sanitize(records), ""
}

// CrawlAll crawls every active source sequentially, never letting one
// source's failure stop the batch.
func (s *Service) CrawlAll(ctx context.Context) (Summary, error) {
	sources, err := s.store.ListActiveDataSources(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("crawler: list active sources: %w", err)
	}
	return s.crawlBatch(ctx, sources), nil
}

// CrawlForBank crawls every active source belonging to one bank.
func (s *Service) CrawlForBank(ctx context.Context, bankID int64) (Summary, error) {
	sources, err := s.store.ListActiveDataSourcesForBank(ctx, bankID)
	if err != nil {
		return Summary{}, fmt.Errorf("crawler: list sources for bank %d: %w", bankID, err)
	}
	return s.crawlBatch(ctx, sources), nil
}

func (s *Service) crawlBatch(ctx context.Context, sources []*models.DataSource) Summary {
	sum := Summary{Total: len(sources)}
	for _, src := range sources {
		ok, err := s.CrawlDataSource(ctx, src.ID)
		if err != nil {
			logging.Errorf("[crawler] source %d: %v", src.ID, err)
		}
		if ok {
			sum.Successful++
		} else {
			sum.Failed++
		}
	}
	logging.Infof("[crawler] batch done: %d total, %d successful, %d failed",
		sum.Total, sum.Successful, sum.Failed)
	return sum
}

// CleanupOldCrawlRecords removes audit rows older than daysToKeep.
func (s *Service) CleanupOldCrawlRecords(ctx context.Context, daysToKeep int) (int64, error) {
	deleted, err := s.store.CleanupOldCrawlRecords(ctx, daysToKeep)
	if err != nil {
		return 0, fmt.Errorf("crawler: cleanup old records: %w", err)
	}
	logging.Infof("[crawler] cleaned up %d crawl records older than %d days", deleted, daysToKeep)
	return deleted, nil
}

// recordFailure writes a failed crawl record before any processing row
// exists. countFailure is false for failures that say nothing about the
// source itself: configuration trouble and extraction that yielded nothing.
func (s *Service) recordFailure(ctx context.Context, src *models.DataSource, raw, text, msg string, countFailure bool) {
	if _, err := s.store.CreateCrawlRecord(ctx, &models.CrawlRecord{
		DataSourceID:     src.ID,
		RawContent:       raw,
		ExtractedContent: text,
		ProcessingStatus: models.StatusFailed,
		ErrorMessage:     msg,
	}); err != nil {
		logging.Errorf("[crawler] record failure for %d: %v", src.ID, err)
	}
	if countFailure {
		s.incrementFailures(ctx, src)
	}
}

func (s *Service) failRecord(ctx context.Context, src *models.DataSource, recordID int64, msg string, countFailure bool) {
	logging.Warnf("[crawler] crawl failed for %s: %s", src.URL, msg)
	if err := s.store.SetCrawlRecordStatus(ctx, recordID, models.StatusFailed, msg); err != nil {
		logging.Errorf("[crawler] fail record %d: %v", recordID, err)
	}
	if countFailure {
		s.incrementFailures(ctx, src)
	}
}

func (s *Service) incrementFailures(ctx context.Context, src *models.DataSource) {
	count, err := s.store.IncrementFailedAttempts(ctx, src.ID)
	if err != nil {
		logging.Errorf("[crawler] increment failures %d: %v", src.ID, err)
		return
	}
	if count >= models.MaxFailedAttempts {
		logging.Warnf("[crawler] source %d (%s) deactivated after %d failures",
			src.ID, src.URL, count)
	}
}

func extractionMessage(err error) string {
	var (
		netErr *extractor.NetworkError
		extErr *extractor.ExtractionError
		fmtErr *extractor.FileFormatError
	)
	switch {
	case errors.As(err, &netErr), errors.As(err, &extErr), errors.As(err, &fmtErr):
		return err.Error()
	default:
		return "Unexpected error: " + err.Error()
	}
}

func marshalAny(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
