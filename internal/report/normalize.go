package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/expense-assistant/internal/receipt"
)

const (
	defaultCategory = "Other"
	defaultMerchant = "Unknown"
	missingDate     = "Not detected"
)

// Line is one receipt with every field resolved. Both report kinds read
// lines only.
type Line struct {
	FileURL       string
	FileName      string
	Category      string
	InvoiceNumber string
	Merchant      string
	Total         decimal.Decimal
	Tax           decimal.Decimal
	Date          string
	Currency      string
}

// normalizer resolves receipts of either layout into lines.
type normalizer struct {
	engine      *Engine
	phoneNumber string
	now         time.Time
}

func (e *Engine) normalize(receipts []*receipt.Receipt, phoneNumber string, now time.Time) []Line {
	n := normalizer{engine: e, phoneNumber: phoneNumber, now: now}
	entries := make([]Line, 0, len(receipts))
	for i, r := range receipts {
		entries = append(entries, n.entry(r, i+1))
	}
	return entries
}

func firstText(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// firstAmount skips missing and zero amounts.
func firstAmount(values ...decimal.NullDecimal) decimal.Decimal {
	for _, v := range values {
		if v.Valid && !v.Decimal.IsZero() {
			return v.Decimal
		}
	}
	return decimal.Zero
}

func firstDate(values ...receipt.Date) string {
	for _, v := range values {
		if !v.IsZero() {
			return v.String()
		}
	}
	return missingDate
}

func (n normalizer) entry(r *receipt.Receipt, ordinal int) Line {
	if r == nil {
		r = &receipt.Receipt{}
	}
	legacy := r.Legacy()

	fileName := firstText(r.OriginalFilename, r.FileName)
	if fileName == "" {
		fileName = fmt.Sprintf("receipt_%d", ordinal)
	}

	fileURL := firstText(r.OriginalFileURL, r.FileURL)
	if fileURL == "" {
		fileURL = n.engine.fallbackFileURL(n.phoneNumber, fileName)
	}

	category := firstText(r.Category, legacy.Category)
	if category == "" {
		category = defaultCategory
	}
	category = strings.ToUpper(strings.ReplaceAll(category, "_", " "))

	invoice := firstText(
		r.SerialNumber, legacy.SerialNumber,
		r.BillNumber, legacy.BillNumber,
		r.InvoiceNumber, legacy.InvoiceNumber,
		r.ID,
	)
	if invoice == "" {
		invoice = fmt.Sprintf("RCP-%d-%d", n.now.UnixMilli(), ordinal)
	}

	merchant := firstText(r.MerchantName, legacy.Merchant)
	if merchant == "" {
		merchant = defaultMerchant
	}

	currency := strings.ToUpper(strings.TrimSpace(firstText(r.Currency, legacy.Currency)))
	if currency == "" {
		currency = n.engine.fallbackCurrency
	}

	return Line{
		FileURL:       fileURL,
		FileName:      fileName,
		Category:      category,
		InvoiceNumber: invoice,
		Merchant:      merchant,
		Total:         firstAmount(r.TotalAmount, legacy.TotalAmount),
		Tax:           firstAmount(r.Tax, legacy.Tax),
		Date:          firstDate(r.ReceiptDate, legacy.Date),
		Currency:      currency,
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
