package models

import "time"

// ContentType classifies what a data source URL points at.
type ContentType string

const (
	ContentTypePDF     ContentType = "pdf"
	ContentTypeWebpage ContentType = "webpage"
	ContentTypeImage   ContentType = "image"
	ContentTypeCSV     ContentType = "csv"
)

// ProcessingStatus tracks the lifecycle of a crawl record.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// MaxFailedAttempts is the failure count at which a data source is deactivated.
const MaxFailedAttempts = 5

// Bank is an issuer whose fee documents we crawl.
type Bank struct {
	ID                int64
	Name              string
	Logo              string
	Website           string
	ScheduleChargeURL string
	IsActive          bool
	Created           time.Time
	Modified          time.Time
}

// DataSource is one URL belonging to a bank, crawled periodically.
type DataSource struct {
	ID                    int64
	BankID                int64
	BankName              string
	URL                   string
	ContentType           ContentType
	Description           string
	FailedAttemptCount    int
	IsActive              bool
	LastCrawledAt         *time.Time
	LastSuccessfulCrawlAt *time.Time
	LastVerifiedAt        *time.Time
	Created               time.Time
	Modified              time.Time
}

// IsFailing reports whether the source has hit the deactivation threshold.
func (d *DataSource) IsFailing() bool {
	return d.FailedAttemptCount >= MaxFailedAttempts
}

// CrawlRecord is the audit row for one extraction+parse attempt.
type CrawlRecord struct {
	ID                int64
	DataSourceID      int64
	RawContent        string
	ExtractedContent  string
	ContentHash       string
	StructuredJSON    string
	ComprehensiveJSON string
	ProcessingStatus  ProcessingStatus
	ErrorMessage      string
	SyncTimestamps    []string
	CrawledAt         time.Time
	Modified          time.Time
}

// CreditCard is one structured card record upserted from a successful parse.
type CreditCard struct {
	ID                        int64
	BankID                    int64
	Name                      string
	AnnualFee                 float64
	InterestRateAPR           float64
	LoungeAccessInternational string
	LoungeAccessDomestic      string
	LoungeAccessCondition     string
	CashAdvanceFee            string
	LatePaymentFee            string
	AnnualFeeWaiverPolicy     map[string]any
	RewardPointsPolicy        string
	AdditionalFeatures        []string
	IsActive                  bool
	Created                   time.Time
	Modified                  time.Time
}
