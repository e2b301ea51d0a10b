package finder

import (
	"context"
	"errors"
	"time"

	"github.com/creditmate/bankcrawler/internal/logging"
	"github.com/creditmate/bankcrawler/internal/models"
	"github.com/creditmate/bankcrawler/internal/storage/sqlite"
)

// Store is the persistence surface discovery needs.
type Store interface {
	ListBanksWithScheduleURL(ctx context.Context) ([]*models.Bank, error)
	FindDataSourceByURL(ctx context.Context, bankID int64, url string) (*models.DataSource, error)
	TouchVerified(ctx context.Context, id int64, at time.Time) error
	CreateDataSource(ctx context.Context, src *models.DataSource) (int64, error)
}

// DiscoverySummary aggregates one discovery pass over all banks.
type DiscoverySummary struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Found     int `json:"found"`
	Updated   int `json:"updated"`
	Created   int `json:"created"`
	Errors    int `json:"errors"`
}

// DiscoverAll runs URL discovery for every bank with a schedule page
// configured. Known URLs get their verification timestamp refreshed, new
// ones become auto-discovered data sources.
func (f *Finder) DiscoverAll(ctx context.Context, store Store) (DiscoverySummary, error) {
	banks, err := store.ListBanksWithScheduleURL(ctx)
	if err != nil {
		return DiscoverySummary{}, err
	}
	sum := DiscoverySummary{Total: len(banks)}
	if len(banks) == 0 {
		logging.Warnf("[finder] no banks with a schedule charge URL configured")
		return sum, nil
	}

	for _, bank := range banks {
		sum.Processed++
		logging.Infof("[finder] processing bank %s: %s", bank.Name, bank.ScheduleChargeURL)

		result := f.FindScheduleChargeURL(ctx, bank.ScheduleChargeURL)
		if !result.Found {
			logging.Warnf("[finder] no schedule charge URL for %s: %s", bank.Name, result.Error)
			continue
		}
		sum.Found++

		existing, err := store.FindDataSourceByURL(ctx, bank.ID, result.URL)
		switch {
		case err == nil:
			if err := store.TouchVerified(ctx, existing.ID, time.Now().UTC()); err != nil {
				logging.Errorf("[finder] touch verified %d: %v", existing.ID, err)
				sum.Errors++
				continue
			}
			sum.Updated++
		case errors.Is(err, sqlite.ErrNotFound):
			_, err := store.CreateDataSource(ctx, &models.DataSource{
				BankID:      bank.ID,
				URL:         result.URL,
				ContentType: MapContentType(result.ContentType),
				Description: "Auto-discovered schedule of charges",
				IsActive:    true,
			})
			if err != nil {
				logging.Errorf("[finder] create source for %s: %v", bank.Name, err)
				sum.Errors++
				continue
			}
			logging.Infof("[finder] created data source for %s: %s", bank.Name, result.URL)
			sum.Created++
		default:
			logging.Errorf("[finder] lookup source for %s: %v", bank.Name, err)
			sum.Errors++
		}
	}
	logging.Infof("[finder] discovery done: %+v", sum)
	return sum, nil
}
