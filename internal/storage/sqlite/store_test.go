package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creditmate/bankcrawler/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.CreateTables(context.Background()))
	return store
}

func seedBankAndSource(t *testing.T, store *Store) (int64, int64) {
	t.Helper()
	ctx := context.Background()
	bankID, err := store.CreateBank(ctx, &models.Bank{
		Name:              "Example Bank",
		Website:           "https://bank.example",
		ScheduleChargeURL: "https://bank.example/charges",
		IsActive:          true,
	})
	require.NoError(t, err)

	sourceID, err := store.CreateDataSource(ctx, &models.DataSource{
		BankID:      bankID,
		URL:         "https://bank.example/fees.pdf",
		ContentType: models.ContentTypePDF,
		IsActive:    true,
	})
	require.NoError(t, err)
	return bankID, sourceID
}

func TestDataSourceRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, sourceID := seedBankAndSource(t, store)

	src, err := store.GetDataSource(ctx, sourceID)
	require.NoError(t, err)
	assert.Equal(t, "https://bank.example/fees.pdf", src.URL)
	assert.Equal(t, "Example Bank", src.BankName)
	assert.True(t, src.IsActive)
	assert.Zero(t, src.FailedAttemptCount)
	assert.Nil(t, src.LastCrawledAt)

	_, err = store.GetDataSource(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFailedAttemptsThresholdDeactivates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, sourceID := seedBankAndSource(t, store)

	for i := 1; i < models.MaxFailedAttempts; i++ {
		count, err := store.IncrementFailedAttempts(ctx, sourceID)
		require.NoError(t, err)
		assert.Equal(t, i, count)

		src, err := store.GetDataSource(ctx, sourceID)
		require.NoError(t, err)
		assert.True(t, src.IsActive, "must stay active below the threshold")
	}

	count, err := store.IncrementFailedAttempts(ctx, sourceID)
	require.NoError(t, err)
	assert.Equal(t, models.MaxFailedAttempts, count)

	src, err := store.GetDataSource(ctx, sourceID)
	require.NoError(t, err)
	assert.False(t, src.IsActive)
}

func TestResetFailedAttemptsDoesNotReactivate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, sourceID := seedBankAndSource(t, store)

	for i := 0; i < models.MaxFailedAttempts; i++ {
		_, err := store.IncrementFailedAttempts(ctx, sourceID)
		require.NoError(t, err)
	}
	require.NoError(t, store.ResetFailedAttempts(ctx, sourceID))

	src, err := store.GetDataSource(ctx, sourceID)
	require.NoError(t, err)
	assert.Zero(t, src.FailedAttemptCount)
	assert.False(t, src.IsActive, "reset must not reactivate a deactivated source")
}

func TestListActiveDataSourcesExcludesDeactivated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bankID, sourceID := seedBankAndSource(t, store)

	otherID, err := store.CreateDataSource(ctx, &models.DataSource{
		BankID:      bankID,
		URL:         "https://bank.example/fees.html",
		ContentType: models.ContentTypeWebpage,
		IsActive:    true,
	})
	require.NoError(t, err)
	require.NoError(t, store.SetDataSourceActive(ctx, otherID, false))

	sources, err := store.ListActiveDataSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, sourceID, sources[0].ID)
}

func TestCrawlRecordSyncTimestamps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, sourceID := seedBankAndSource(t, store)

	recordID, err := store.CreateCrawlRecord(ctx, &models.CrawlRecord{
		DataSourceID:     sourceID,
		ExtractedContent: "Annual Fee: $95",
		ContentHash:      "abc123",
		ProcessingStatus: models.StatusCompleted,
	})
	require.NoError(t, err)

	latest, err := store.GetLatestCompletedCrawlRecord(ctx, sourceID)
	require.NoError(t, err)
	assert.Equal(t, recordID, latest.ID)
	assert.Empty(t, latest.SyncTimestamps)

	now := time.Now().UTC()
	require.NoError(t, store.AppendSyncTimestamp(ctx, recordID, now))
	require.NoError(t, store.AppendSyncTimestamp(ctx, recordID, now.Add(time.Hour)))

	latest, err = store.GetLatestCompletedCrawlRecord(ctx, sourceID)
	require.NoError(t, err)
	assert.Len(t, latest.SyncTimestamps, 2)
}

func TestGetLatestCompletedIgnoresFailedRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, sourceID := seedBankAndSource(t, store)

	_, err := store.CreateCrawlRecord(ctx, &models.CrawlRecord{
		DataSourceID:     sourceID,
		ProcessingStatus: models.StatusFailed,
		ErrorMessage:     "HTTP 404",
	})
	require.NoError(t, err)

	_, err = store.GetLatestCompletedCrawlRecord(ctx, sourceID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetCrawlRecordStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, sourceID := seedBankAndSource(t, store)

	recordID, err := store.CreateCrawlRecord(ctx, &models.CrawlRecord{
		DataSourceID:     sourceID,
		ProcessingStatus: models.StatusProcessing,
	})
	require.NoError(t, err)
	require.NoError(t, store.SetCrawlRecordStatus(ctx, recordID, models.StatusFailed, "Database update failed: locked"))

	rec, err := store.GetCrawlRecord(ctx, recordID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, rec.ProcessingStatus)
	assert.Contains(t, rec.ErrorMessage, "Database update failed")
}

func TestUpsertCreditCardOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bankID, _ := seedBankAndSource(t, store)

	id1, err := store.UpsertCreditCard(ctx, &models.CreditCard{
		BankID:             bankID,
		Name:               "Platinum Card",
		AnnualFee:          95,
		InterestRateAPR:    18.99,
		RewardPointsPolicy: "1 point per dollar",
		AdditionalFeatures: []string{"EMV chip"},
	})
	require.NoError(t, err)

	id2, err := store.UpsertCreditCard(ctx, &models.CreditCard{
		BankID:          bankID,
		Name:            "Platinum Card",
		AnnualFee:       120,
		InterestRateAPR: 20.5,
	})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	card, err := store.GetCreditCard(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, 120.0, card.AnnualFee)
	assert.Equal(t, 20.5, card.InterestRateAPR)
	assert.Empty(t, card.RewardPointsPolicy, "upsert overwrites, it does not merge")

	cards, err := store.ListCreditCardsForBank(ctx, bankID)
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}

func TestUpsertCreditCardReturnsConflictRowID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bankID, _ := seedBankAndSource(t, store)

	idA, err := store.UpsertCreditCard(ctx, &models.CreditCard{
		BankID:    bankID,
		Name:      "Platinum Card",
		AnnualFee: 95,
	})
	require.NoError(t, err)

	idB, err := store.UpsertCreditCard(ctx, &models.CreditCard{
		BankID:    bankID,
		Name:      "Gold Card",
		AnnualFee: 50,
	})
	require.NoError(t, err)
	require.NotEqual(t, idA, idB)

	// Updating an earlier card must hand back that card's ID, not the
	// connection's most recent rowid.
	got, err := store.UpsertCreditCard(ctx, &models.CreditCard{
		BankID:    bankID,
		Name:      "Platinum Card",
		AnnualFee: 120,
	})
	require.NoError(t, err)
	assert.Equal(t, idA, got)
}

func TestCleanupOldCrawlRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, sourceID := seedBankAndSource(t, store)

	_, err := store.CreateCrawlRecord(ctx, &models.CrawlRecord{
		DataSourceID:     sourceID,
		ProcessingStatus: models.StatusCompleted,
		CrawledAt:        time.Now().UTC().AddDate(0, 0, -60),
	})
	require.NoError(t, err)
	keepID, err := store.CreateCrawlRecord(ctx, &models.CrawlRecord{
		DataSourceID:     sourceID,
		ProcessingStatus: models.StatusCompleted,
	})
	require.NoError(t, err)

	deleted, err := store.CleanupOldCrawlRecords(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = store.GetCrawlRecord(ctx, keepID)
	assert.NoError(t, err)
}

func TestBanksWithScheduleURL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bankID, _ := seedBankAndSource(t, store)

	noURLBank, err := store.CreateBank(ctx, &models.Bank{Name: "Other Bank", IsActive: true})
	require.NoError(t, err)

	banks, err := store.ListBanksWithScheduleURL(ctx)
	require.NoError(t, err)
	require.Len(t, banks, 1)
	assert.Equal(t, bankID, banks[0].ID)

	require.NoError(t, store.SetBankScheduleURL(ctx, noURLBank, "https://other.example/fees"))
	banks, err = store.ListBanksWithScheduleURL(ctx)
	require.NoError(t, err)
	assert.Len(t, banks, 2)
}

func TestMarkCrawlTimestamps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, sourceID := seedBankAndSource(t, store)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.MarkCrawled(ctx, sourceID, now))
	require.NoError(t, store.MarkSuccessfulCrawl(ctx, sourceID, now))
	require.NoError(t, store.TouchVerified(ctx, sourceID, now))

	src, err := store.GetDataSource(ctx, sourceID)
	require.NoError(t, err)
	require.NotNil(t, src.LastCrawledAt)
	require.NotNil(t, src.LastSuccessfulCrawlAt)
	require.NotNil(t, src.LastVerifiedAt)
	assert.Equal(t, now, src.LastCrawledAt.UTC())
}
