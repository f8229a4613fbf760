package report

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/expense-assistant/internal/receipt"
)

const topMerchants = 10

// Bucket is the total and receipt count of one group.
type Bucket struct {
	Name   string
	Amount decimal.Decimal
	Count  int
}

// Summary holds grouped totals of a user's receipts.
type Summary struct {
	Receipts   int
	Total      decimal.Decimal
	Currencies []Bucket
	Categories []Bucket
	Merchants  []Bucket
}

type grouping struct {
	order   []string
	buckets map[string]*Bucket
}

func newGrouping() *grouping {
	return &grouping{buckets: make(map[string]*Bucket)}
}

func (g *grouping) add(name string, amount decimal.Decimal) {
	b, ok := g.buckets[name]
	if !ok {
		b = &Bucket{Name: name}
		g.buckets[name] = b
		g.order = append(g.order, name)
	}
	b.Amount = b.Amount.Add(amount)
	b.Count++
}

// sorted orders by amount, largest first, then by name.
func (g *grouping) sorted() []Bucket {
	out := make([]Bucket, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, *g.buckets[name])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func summarize(entries []Line) *Summary {
	currencies, categories, merchants := newGrouping(), newGrouping(), newGrouping()
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Total)
		currencies.add(e.Currency, e.Total)
		categories.add(e.Category, e.Total)
		merchants.add(e.Merchant, e.Total)
	}
	return &Summary{
		Receipts:   len(entries),
		Total:      total,
		Currencies: currencies.sorted(),
		Categories: categories.sorted(),
		Merchants:  merchants.sorted(),
	}
}

// SummaryFilename names a summary report created at t.
func (e *Engine) SummaryFilename(phoneNumber string, t time.Time) string {
	return fmt.Sprintf("summary_%s_%s_%03d.csv", e.userKey(phoneNumber), t.Format("20060102_150405"), t.Nanosecond()/int(time.Millisecond))
}

func summaryRows(s *Summary, phoneNumber string, now time.Time) [][]string {
	rows := [][]string{
		{"Expense Summary"},
		{"Phone Number", phoneNumber},
		{"Generated At", now.Format(time.RFC3339)},
		{"Total Receipts", strconv.Itoa(s.Receipts)},
		{"Grand Total", money(s.Total)},
		{""},
		{"Currency", "Total Amount", "Receipts"},
	}
	for _, b := range s.Currencies {
		rows = append(rows, []string{b.Name, money(b.Amount), strconv.Itoa(b.Count)})
	}

	rows = append(rows, []string{""}, []string{"Category", "Total Amount", "Receipts"})
	for _, b := range s.Categories {
		rows = append(rows, []string{b.Name, money(b.Amount), strconv.Itoa(b.Count)})
	}

	rows = append(rows, []string{""}, []string{"Top Merchants", "Total Amount", "Receipts"})
	for i, b := range s.Merchants {
		if i == topMerchants {
			break
		}
		rows = append(rows, []string{b.Name, money(b.Amount), strconv.Itoa(b.Count)})
	}
	return rows
}

// GenerateSummaryReport writes grouped totals as stacked sections in one
// CSV. Every call creates a new file.
func (e *Engine) GenerateSummaryReport(receipts []*receipt.Receipt, phoneNumber string) Result {
	now := e.timeSource.Now()
	filename := e.SummaryFilename(phoneNumber, now)
	summary := summarize(e.normalize(receipts, phoneNumber, now))

	data, err := encodeCSV(summaryRows(summary, phoneNumber, now))
	if err != nil {
		return failed(filename, err)
	}
	if err := e.ensureDir(); err != nil {
		return failed(filename, err)
	}
	written, err := writeNew(e.dir, filename, data)
	if err != nil {
		return failed(filename, err)
	}
	filename = written

	slog.Info("Summary report generated", "phone", phoneNumber, "file", filename, "receipts", summary.Receipts, "total", money(summary.Total))
	return Result{
		Success:       true,
		Filename:      filename,
		FilePath:      filepath.Join(e.dir, filename),
		PublicURL:     e.PublicURL(filename),
		TotalReceipts: summary.Receipts,
		TotalAmount:   summary.Total,
		ReportDate:    now,
		Summary:       summary,
	}
}
