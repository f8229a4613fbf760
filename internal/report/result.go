package report

import (
	"time"

	"github.com/shopspring/decimal"
)

// Result describes a generated report. Failures are reported through
// Success and Err rather than a separate error return.
type Result struct {
	Success       bool
	Filename      string
	FilePath      string
	PublicURL     string
	TotalReceipts int
	TotalAmount   decimal.Decimal
	ReportDate    time.Time
	Summary       *Summary
	Err           error
}

// Stats is a snapshot of the reports directory.
type Stats struct {
	TotalReports  int      `json:"totalReports"`
	RecentReports []string `json:"recentReports"`
}
