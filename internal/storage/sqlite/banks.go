package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/creditmate/bankcrawler/internal/models"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("sqlite: not found")

// CreateBank inserts a bank and returns its ID.
func (s *Store) CreateBank(ctx context.Context, bank *models.Bank) (int64, error) {
	now := nowString()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO banks (name, logo, website, schedule_charge_url, is_active, created, modified)
		VALUES (?,?,?,?,?,?,?)`,
		bank.Name, bank.Logo, bank.Website, bank.ScheduleChargeURL, boolToInt(bank.IsActive), now, now)
	if err != nil {
		return 0, fmt.Errorf("insert bank: %w", err)
	}
	return res.LastInsertId()
}

// GetBank loads one bank by ID.
func (s *Store) GetBank(ctx context.Context, id int64) (*models.Bank, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, logo, website, schedule_charge_url, is_active, created, modified
		FROM banks WHERE id = ?`, id)
	return scanBank(row)
}

// ListBanksWithScheduleURL returns active banks whose schedule page is set,
// the candidates for URL discovery.
func (s *Store) ListBanksWithScheduleURL(ctx context.Context) ([]*models.Bank, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, logo, website, schedule_charge_url, is_active, created, modified
		FROM banks
		WHERE is_active = 1 AND schedule_charge_url != ''
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var banks []*models.Bank
	for rows.Next() {
		bank, err := scanBank(rows)
		if err != nil {
			return nil, err
		}
		banks = append(banks, bank)
	}
	return banks, rows.Err()
}

// SetBankScheduleURL updates the bank's schedule-of-charges entry page.
func (s *Store) SetBankScheduleURL(ctx context.Context, bankID int64, url string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE banks SET schedule_charge_url = ?, modified = ? WHERE id = ?`,
		url, nowString(), bankID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBank(row rowScanner) (*models.Bank, error) {
	var (
		bank             models.Bank
		active           int
		created, updated string
	)
	err := row.Scan(&bank.ID, &bank.Name, &bank.Logo, &bank.Website,
		&bank.ScheduleChargeURL, &active, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	bank.IsActive = active != 0
	bank.Created = mustTime(created)
	bank.Modified = mustTime(updated)
	return &bank, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
