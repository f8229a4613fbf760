package report

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/zombor/expense-assistant/internal/receipt"
)

var itemizedHeader = []string{
	"File URL",
	"File Name",
	"Category",
	"Invoice/Bill Number",
	"Merchant/Biller",
	"Total Amount",
	"Tax Amount",
	"Date",
}

// ItemizedFilename is the per-user itemized report name. Each new report
// replaces the previous one.
func (e *Engine) ItemizedFilename(phoneNumber string) string {
	return fmt.Sprintf("expense_report_%s.csv", e.userKey(phoneNumber))
}

func itemizedRow(e Line) []string {
	return []string{
		e.FileURL,
		e.FileName,
		e.Category,
		e.InvoiceNumber,
		e.Merchant,
		money(e.Total),
		money(e.Tax),
		e.Date,
	}
}

// GenerateReceiptReport writes one row per receipt. Reports for the same
// user are written one at a time.
func (e *Engine) GenerateReceiptReport(receipts []*receipt.Receipt, phoneNumber string) Result {
	filename := e.ItemizedFilename(phoneNumber)
	now := e.timeSource.Now()
	entries := e.normalize(receipts, phoneNumber, now)

	rows := make([][]string, 0, len(entries)+1)
	rows = append(rows, itemizedHeader)
	total := decimal.Zero
	for _, entry := range entries {
		rows = append(rows, itemizedRow(entry))
		total = total.Add(entry.Total)
	}

	data, err := encodeCSV(rows)
	if err != nil {
		return failed(filename, err)
	}

	unlock := e.locks.Lock(receipt.UserDir(phoneNumber))
	defer unlock()

	if err := e.ensureDir(); err != nil {
		return failed(filename, err)
	}
	path := filepath.Join(e.dir, filename)
	if err := writeAtomic(path, data); err != nil {
		return failed(filename, err)
	}

	slog.Info("Itemized report generated", "phone", phoneNumber, "file", filename, "receipts", len(entries), "total", money(total))
	return Result{
		Success:       true,
		Filename:      filename,
		FilePath:      path,
		PublicURL:     e.PublicURL(filename),
		TotalReceipts: len(entries),
		TotalAmount:   total,
		ReportDate:    now,
	}
}
