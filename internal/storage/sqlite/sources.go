package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/creditmate/bankcrawler/internal/models"
)

const sourceColumns = `
	ds.id, ds.bank_id, b.name, ds.url, ds.content_type, ds.description,
	ds.failed_attempt_count, ds.is_active,
	ds.last_crawled_at, ds.last_successful_crawl_at, ds.last_verified_at,
	ds.created, ds.modified`

// CreateDataSource inserts a source and returns its ID.
func (s *Store) CreateDataSource(ctx context.Context, src *models.DataSource) (int64, error) {
	now := nowString()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO data_sources
			(bank_id, url, content_type, description, failed_attempt_count, is_active,
			 last_verified_at, created, modified)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		src.BankID, src.URL, string(src.ContentType), src.Description,
		src.FailedAttemptCount, boolToInt(src.IsActive),
		nullableTime(src.LastVerifiedAt), now, now)
	if err != nil {
		return 0, fmt.Errorf("insert data source: %w", err)
	}
	return res.LastInsertId()
}

// GetDataSource loads one source (any state) by ID.
func (s *Store) GetDataSource(ctx context.Context, id int64) (*models.DataSource, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sourceColumns+`
		FROM data_sources ds JOIN banks b ON b.id = ds.bank_id
		WHERE ds.id = ?`, id)
	return scanSource(row)
}

// FindDataSourceByURL looks up the source for (bank, url).
func (s *Store) FindDataSourceByURL(ctx context.Context, bankID int64, url string) (*models.DataSource, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sourceColumns+`
		FROM data_sources ds JOIN banks b ON b.id = ds.bank_id
		WHERE ds.bank_id = ? AND ds.url = ?`, bankID, url)
	return scanSource(row)
}

// ListActiveDataSources returns every active source, all banks.
func (s *Store) ListActiveDataSources(ctx context.Context) ([]*models.DataSource, error) {
	return s.listSources(ctx, `
		SELECT `+sourceColumns+`
		FROM data_sources ds JOIN banks b ON b.id = ds.bank_id
		WHERE ds.is_active = 1
		ORDER BY b.name, ds.url`)
}

// ListActiveDataSourcesForBank returns a single bank's active sources.
func (s *Store) ListActiveDataSourcesForBank(ctx context.Context, bankID int64) ([]*models.DataSource, error) {
	return s.listSources(ctx, `
		SELECT `+sourceColumns+`
		FROM data_sources ds JOIN banks b ON b.id = ds.bank_id
		WHERE ds.is_active = 1 AND ds.bank_id = ?
		ORDER BY ds.url`, bankID)
}

func (s *Store) listSources(ctx context.Context, query string, args ...any) ([]*models.DataSource, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*models.DataSource
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// MarkCrawled stamps last_crawled_at.
func (s *Store) MarkCrawled(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE data_sources SET last_crawled_at = ?, modified = ? WHERE id = ?`,
		formatTime(at), nowString(), id)
	return err
}

// IncrementFailedAttempts bumps the failure counter in a single row-level
// update and deactivates the source once it reaches the threshold. Returns
// the new counter value.
func (s *Store) IncrementFailedAttempts(ctx context.Context, id int64) (int, error) {
	_, err := s.db.ExecContext(ctx, `
		UPDATE data_sources SET
			failed_attempt_count = failed_attempt_count + 1,
			is_active = CASE WHEN failed_attempt_count + 1 >= ? THEN 0 ELSE is_active END,
			modified = ?
		WHERE id = ?`,
		models.MaxFailedAttempts, nowString(), id)
	if err != nil {
		return 0, err
	}
	var count int
	err = s.db.QueryRowContext(ctx,
		`SELECT failed_attempt_count FROM data_sources WHERE id = ?`, id).Scan(&count)
	return count, err
}

// ResetFailedAttempts zeroes the counter. It deliberately does not reactivate
// a deactivated source; that stays a manual operator action.
func (s *Store) ResetFailedAttempts(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE data_sources SET failed_attempt_count = 0, modified = ? WHERE id = ?`,
		nowString(), id)
	return err
}

// MarkSuccessfulCrawl stamps last_successful_crawl_at.
func (s *Store) MarkSuccessfulCrawl(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE data_sources SET last_successful_crawl_at = ?, modified = ? WHERE id = ?`,
		formatTime(at), nowString(), id)
	return err
}

// TouchVerified stamps last_verified_at, used by the URL discovery pass.
func (s *Store) TouchVerified(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE data_sources SET last_verified_at = ?, modified = ? WHERE id = ?`,
		formatTime(at), nowString(), id)
	return err
}

// SetDataSourceActive flips the active flag, the manual reactivation path.
func (s *Store) SetDataSourceActive(ctx context.Context, id int64, active bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE data_sources SET is_active = ?, modified = ? WHERE id = ?`,
		boolToInt(active), nowString(), id)
	return err
}

func scanSource(row rowScanner) (*models.DataSource, error) {
	var (
		src                          models.DataSource
		contentType                  string
		active                       int
		crawled, succeeded, verified sql.NullString
		created, updated             string
	)
	err := row.Scan(&src.ID, &src.BankID, &src.BankName, &src.URL, &contentType,
		&src.Description, &src.FailedAttemptCount, &active,
		&crawled, &succeeded, &verified, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	src.ContentType = models.ContentType(contentType)
	src.IsActive = active != 0
	src.LastCrawledAt = scanTime(crawled)
	src.LastSuccessfulCrawlAt = scanTime(succeeded)
	src.LastVerifiedAt = scanTime(verified)
	src.Created = mustTime(created)
	src.Modified = mustTime(updated)
	return &src, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
