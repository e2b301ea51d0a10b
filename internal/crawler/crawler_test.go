package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creditmate/bankcrawler/internal/extractor"
	"github.com/creditmate/bankcrawler/internal/llm"
	"github.com/creditmate/bankcrawler/internal/models"
	"github.com/creditmate/bankcrawler/internal/storage/sqlite"
)

type stubExtractor struct {
	text  string
	err   error
	calls int
}

func (s *stubExtractor) Extract(_ context.Context, _ string, _ models.ContentType) (string, string, error) {
	s.calls++
	if s.err != nil {
		return "", "", s.err
	}
	return "<raw>" + s.text + "</raw>", s.text, nil
}

type stubParser struct {
	structured    any
	comprehensive any
	err           error
	calls         int
}

func (s *stubParser) ParseComprehensiveData(_ context.Context, _, _ string) (any, any, error) {
	s.calls++
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.structured, s.comprehensive, nil
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.CreateTables(context.Background()))
	return store
}

func seedSource(t *testing.T, store *sqlite.Store) (int64, int64) {
	t.Helper()
	ctx := context.Background()
	bankID, err := store.CreateBank(ctx, &models.Bank{Name: "Example Bank", IsActive: true})
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

func crawlOK(t *testing.T, svc *Service, sourceID int64) bool {
	t.Helper()
	ok, err := svc.CrawlDataSource(context.Background(), sourceID)
	require.NoError(t, err)
	return ok
}

func platinumCards() any {
	return []any{map[string]any{
		"name":              "Platinum Card",
		"annual_fee":        95.0,
		"interest_rate_apr": 18.99,
	}}
}

func TestCrawlDataSourceEndToEnd(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bankID, sourceID := seedSource(t, store)

	ext := &stubExtractor{text: "Platinum Card Annual Fee: $95 APR: 18.99%"}
	p := &stubParser{structured: platinumCards(), comprehensive: map[string]any{"cards": "full"}}
	svc := New(store, ext, p, nil)

	require.True(t, crawlOK(t, svc, sourceID))

	cards, err := store.ListCreditCardsForBank(ctx, bankID)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "Platinum Card", cards[0].Name)
	assert.Equal(t, 95.0, cards[0].AnnualFee)
	assert.Equal(t, 18.99, cards[0].InterestRateAPR)

	src, err := store.GetDataSource(ctx, sourceID)
	require.NoError(t, err)
	assert.Zero(t, src.FailedAttemptCount)
	assert.NotNil(t, src.LastCrawledAt)
	assert.NotNil(t, src.LastSuccessfulCrawlAt)

	rec, err := store.GetLatestCompletedCrawlRecord(ctx, sourceID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, rec.ProcessingStatus)
	assert.NotEmpty(t, rec.StructuredJSON)
	assert.NotEmpty(t, rec.ComprehensiveJSON)
}

func TestCrawlDataSourceUnchangedContentSkipsLLM(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, sourceID := seedSource(t, store)

	ext := &stubExtractor{text: "Platinum Card Annual Fee: $95"}
	p := &stubParser{structured: platinumCards()}
	svc := New(store, ext, p, nil)

	require.True(t, crawlOK(t, svc, sourceID))
	require.True(t, crawlOK(t, svc, sourceID))
	require.True(t, crawlOK(t, svc, sourceID))

	assert.Equal(t, 1, p.calls, "unchanged content must not invoke the LLM again")

	rec, err := store.GetLatestCompletedCrawlRecord(ctx, sourceID)
	require.NoError(t, err)
	assert.Len(t, rec.SyncTimestamps, 2)
}

func TestCrawlDataSourceChangedContentReparses(t *testing.T) {
	store := newTestStore(t)
	_, sourceID := seedSource(t, store)

	ext := &stubExtractor{text: "Annual Fee: $95"}
	p := &stubParser{structured: platinumCards()}
	svc := New(store, ext, p, nil)

	require.True(t, crawlOK(t, svc, sourceID))
	ext.text = "Annual Fee: $120"
	require.True(t, crawlOK(t, svc, sourceID))

	assert.Equal(t, 2, p.calls)
}

func TestCrawlDataSourceExtractionFailure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, sourceID := seedSource(t, store)

	ext := &stubExtractor{err: &extractor.NetworkError{URL: "https://bank.example/fees.pdf", Err: errors.New("timeout")}}
	p := &stubParser{}
	svc := New(store, ext, p, nil)

	assert.False(t, crawlOK(t, svc, sourceID))
	assert.Zero(t, p.calls)

	src, err := store.GetDataSource(ctx, sourceID)
	require.NoError(t, err)
	assert.Equal(t, 1, src.FailedAttemptCount)
}

func TestCrawlDataSourceEmptyExtractionSkipsLLM(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, sourceID := seedSource(t, store)

	ext := &stubExtractor{text: ""}
	p := &stubParser{structured: platinumCards()}
	svc := New(store, ext, p, nil)

	assert.False(t, crawlOK(t, svc, sourceID))
	assert.Zero(t, p.calls, "empty extraction must not reach the parser")

	src, err := store.GetDataSource(ctx, sourceID)
	require.NoError(t, err)
	assert.Zero(t, src.FailedAttemptCount, "an empty document says nothing about the source")
	assert.True(t, src.IsActive)

	rec, err := store.GetCrawlRecord(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, rec.ProcessingStatus)
	assert.Equal(t, "No content could be extracted from source", rec.ErrorMessage)
}

func TestCrawlDataSourceUnknownSourceIsNotRetryable(t *testing.T) {
	store := newTestStore(t)
	svc := New(store, &stubExtractor{}, &stubParser{}, nil)

	ok, err := svc.CrawlDataSource(context.Background(), 9999)
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestCrawlDataSourceStoreErrorIsRetryable(t *testing.T) {
	store := newTestStore(t)
	_, sourceID := seedSource(t, store)
	svc := New(store, &stubExtractor{text: "Annual Fee: $95"}, &stubParser{}, nil)

	require.NoError(t, store.Close())

	ok, err := svc.CrawlDataSource(context.Background(), sourceID)
	assert.False(t, ok)
	require.Error(t, err)
}

func TestCrawlDataSourceUnexpectedExtractionError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, sourceID := seedSource(t, store)

	ext := &stubExtractor{err: errors.New("nil pointer somewhere")}
	svc := New(store, ext, &stubParser{}, nil)

	assert.False(t, crawlOK(t, svc, sourceID))

	src, err := store.GetDataSource(ctx, sourceID)
	require.NoError(t, err)
	assert.Equal(t, 1, src.FailedAttemptCount)
}

func TestCrawlDataSourceConfigurationErrorDoesNotCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, sourceID := seedSource(t, store)

	ext := &stubExtractor{text: "Annual Fee: $95"}
	p := &stubParser{err: &llm.ConfigurationError{Message: "no LLM provider configured"}}
	svc := New(store, ext, p, nil)

	assert.False(t, crawlOK(t, svc, sourceID))

	src, err := store.GetDataSource(ctx, sourceID)
	require.NoError(t, err)
	assert.Zero(t, src.FailedAttemptCount, "configuration trouble must not count against the source")
	assert.True(t, src.IsActive)
}

func TestCrawlDataSourceParseErrorCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, sourceID := seedSource(t, store)

	ext := &stubExtractor{text: "Annual Fee: $95"}
	p := &stubParser{err: errors.New("parser: invalid JSON response")}
	svc := New(store, ext, p, nil)

	assert.False(t, crawlOK(t, svc, sourceID))

	src, err := store.GetDataSource(ctx, sourceID)
	require.NoError(t, err)
	assert.Equal(t, 1, src.FailedAttemptCount)
}

func TestCrawlDataSourceTopLevelError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, sourceID := seedSource(t, store)

	ext := &stubExtractor{text: "nothing useful"}
	p := &stubParser{structured: map[string]any{"error": "No credit card data found in content"}}
	svc := New(store, ext, p, nil)

	assert.False(t, crawlOK(t, svc, sourceID))

	src, err := store.GetDataSource(ctx, sourceID)
	require.NoError(t, err)
	assert.Equal(t, 1, src.FailedAttemptCount)

	_, err = store.GetLatestCompletedCrawlRecord(ctx, sourceID)
	assert.ErrorIs(t, err, sqlite.ErrNotFound)
}

func TestCrawlDataSourceEmptyDataFails(t *testing.T) {
	store := newTestStore(t)
	_, sourceID := seedSource(t, store)

	ext := &stubExtractor{text: "some text"}
	p := &stubParser{structured: []any{}}
	svc := New(store, ext, p, nil)

	assert.False(t, crawlOK(t, svc, sourceID))
}

func TestCrawlDataSourceEmptyNameFallback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bankID, sourceID := seedSource(t, store)

	ext := &stubExtractor{text: "fee table"}
	p := &stubParser{structured: []any{map[string]any{"name": "", "annual_fee": 150.0}}}
	svc := New(store, ext, p, nil)

	require.True(t, crawlOK(t, svc, sourceID))

	cards, err := store.ListCreditCardsForBank(ctx, bankID)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "Credit Card (Annual Fee: 150)", cards[0].Name)
}

func TestCrawlDataSourceInactiveSourceSkipped(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, sourceID := seedSource(t, store)
	require.NoError(t, store.SetDataSourceActive(ctx, sourceID, false))

	ext := &stubExtractor{text: "fee table"}
	svc := New(store, ext, &stubParser{}, nil)

	assert.False(t, crawlOK(t, svc, sourceID))
	assert.Zero(t, ext.calls)
}

func TestCrawlAllAggregates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bankID, _ := seedSource(t, store)
	_, err := store.CreateDataSource(ctx, &models.DataSource{
		BankID:      bankID,
		URL:         "https://bank.example/fees.html",
		ContentType: models.ContentTypeWebpage,
		IsActive:    true,
	})
	require.NoError(t, err)

	ext := &stubExtractor{text: "Annual Fee: $95"}
	p := &stubParser{structured: platinumCards()}
	svc := New(store, ext, p, nil)

	sum, err := svc.CrawlAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 2, Successful: 2, Failed: 0}, sum)
}

func TestCleanCardName(t *testing.T) {
	cases := []struct {
		name string
		fee  float64
		want string
	}{
		{"Platinum Card", 95, "Platinum Card"},
		{"", 150, "Credit Card (Annual Fee: 150)"},
		{"TK. 5,000", 5000, "Credit Card (Annual Fee: 5000)"},
		{"US$150", 150, "Credit Card (Annual Fee: 150)"},
		{"1500", 1500, "Credit Card (Annual Fee: 1500)"},
		{"Visa 123", 0, "Visa 123"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, cleanCardName(tc.name, tc.fee))
	}
}
