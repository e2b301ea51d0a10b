package finder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creditmate/bankcrawler/internal/models"
	"github.com/creditmate/bankcrawler/internal/storage/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.CreateTables(context.Background()))
	return store
}

func TestDiscoverAllCreatesSource(t *testing.T) {
	server := bankHomepage(t)
	store := newTestStore(t)
	ctx := context.Background()

	bankID, err := store.CreateBank(ctx, &models.Bank{
		Name:              "Example Bank",
		ScheduleChargeURL: server.URL,
		IsActive:          true,
	})
	require.NoError(t, err)

	f := New(&fakeOrchestrator{available: false})
	sum, err := f.DiscoverAll(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Total)
	assert.Equal(t, 1, sum.Found)
	assert.Equal(t, 1, sum.Created)
	assert.Zero(t, sum.Updated)

	sources, err := store.ListActiveDataSourcesForBank(ctx, bankID)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, models.ContentTypePDF, sources[0].ContentType)
	assert.Contains(t, sources[0].URL, "schedule-of-charges.pdf")
}

func TestDiscoverAllUpdatesExistingSource(t *testing.T) {
	server := bankHomepage(t)
	store := newTestStore(t)
	ctx := context.Background()

	bankID, err := store.CreateBank(ctx, &models.Bank{
		Name:              "Example Bank",
		ScheduleChargeURL: server.URL,
		IsActive:          true,
	})
	require.NoError(t, err)

	existingID, err := store.CreateDataSource(ctx, &models.DataSource{
		BankID:      bankID,
		URL:         server.URL + "/documents/schedule-of-charges.pdf",
		ContentType: models.ContentTypePDF,
		IsActive:    true,
	})
	require.NoError(t, err)

	f := New(&fakeOrchestrator{available: false})
	sum, err := f.DiscoverAll(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Updated)
	assert.Zero(t, sum.Created)

	src, err := store.GetDataSource(ctx, existingID)
	require.NoError(t, err)
	assert.NotNil(t, src.LastVerifiedAt)
}

func TestDiscoverAllNoBanks(t *testing.T) {
	store := newTestStore(t)
	f := New(&fakeOrchestrator{available: false})

	sum, err := f.DiscoverAll(context.Background(), store)
	require.NoError(t, err)
	assert.Zero(t, sum.Total)
}
