package report

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/zombor/expense-assistant/internal/receipt"
)

const workbookSheet = "Receipts"

// WorkbookFilename is the per-user spreadsheet name.
func (e *Engine) WorkbookFilename(phoneNumber string) string {
	return fmt.Sprintf("expense_report_%s.xlsx", e.userKey(phoneNumber))
}

// GenerateWorkbook writes the itemized rows as an XLSX sheet with numeric
// amount cells.
func (e *Engine) GenerateWorkbook(receipts []*receipt.Receipt, phoneNumber string) Result {
	filename := e.WorkbookFilename(phoneNumber)
	now := e.timeSource.Now()
	entries := e.normalize(receipts, phoneNumber, now)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), workbookSheet); err != nil {
		return failed(filename, fmt.Errorf("naming sheet: %w", err))
	}
	for i, h := range itemizedHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(workbookSheet, cell, h)
	}

	total := decimal.Zero
	for i, entry := range entries {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(workbookSheet, cell, v)
		}
		write(1, entry.FileURL)
		write(2, entry.FileName)
		write(3, entry.Category)
		write(4, entry.InvoiceNumber)
		write(5, entry.Merchant)
		write(6, entry.Total.Round(2).InexactFloat64())
		write(7, entry.Tax.Round(2).InexactFloat64())
		write(8, entry.Date)
		total = total.Add(entry.Total)
	}

	if style, err := f.NewStyle(&excelize.Style{NumFmt: 2}); err == nil && len(entries) > 0 {
		_ = f.SetCellStyle(workbookSheet, "F2", fmt.Sprintf("G%d", len(entries)+1), style)
	}
	_ = f.SetColWidth(workbookSheet, "A", "A", 60) // url
	_ = f.SetColWidth(workbookSheet, "B", "B", 28)
	_ = f.SetColWidth(workbookSheet, "C", "E", 22)
	_ = f.SetColWidth(workbookSheet, "F", "G", 14) // amounts
	_ = f.SetColWidth(workbookSheet, "H", "H", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return failed(filename, fmt.Errorf("xlsx write: %w", err))
	}

	unlock := e.locks.Lock(receipt.UserDir(phoneNumber))
	defer unlock()

	if err := e.ensureDir(); err != nil {
		return failed(filename, err)
	}
	path := filepath.Join(e.dir, filename)
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return failed(filename, err)
	}

	slog.Info("Workbook generated", "phone", phoneNumber, "file", filename, "receipts", len(entries))
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
