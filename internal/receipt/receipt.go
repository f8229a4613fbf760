package receipt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is a captured receipt as it is stored. Older records keep their
// extracted fields under ExtractedData, newer ones at the top level; a single
// value may carry either layout or a mix of both.
type Receipt struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phoneNumber"`

	MerchantName     string              `json:"merchantName,omitempty"`
	TotalAmount      decimal.NullDecimal `json:"totalAmount"`
	Tax              decimal.NullDecimal `json:"tax"`
	ReceiptDate      Date                `json:"receiptDate"`
	Category         string              `json:"category,omitempty"`
	Currency         string              `json:"currency,omitempty"`
	SerialNumber     string              `json:"serialNumber,omitempty"`
	BillNumber       string              `json:"billNumber,omitempty"`
	InvoiceNumber    string              `json:"invoiceNumber,omitempty"`
	OriginalFilename string              `json:"originalFilename,omitempty"`
	OriginalFileURL  string              `json:"originalFileUrl,omitempty"`
	StoredPath       string              `json:"storedPath,omitempty"`
	ContentType      string              `json:"contentType,omitempty"`

	// Legacy layout
	FileURL       string         `json:"fileUrl,omitempty"`
	FileName      string         `json:"fileName,omitempty"`
	ExtractedData *ExtractedData `json:"extractedData,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// ExtractedData is the nested block used by legacy receipts.
type ExtractedData struct {
	Merchant      string              `json:"merchant,omitempty"`
	TotalAmount   decimal.NullDecimal `json:"totalAmount"`
	Tax           decimal.NullDecimal `json:"tax"`
	Date          Date                `json:"date"`
	Category      string              `json:"category,omitempty"`
	Currency      string              `json:"currency,omitempty"`
	SerialNumber  string              `json:"serialNumber,omitempty"`
	BillNumber    string              `json:"billNumber,omitempty"`
	InvoiceNumber string              `json:"invoiceNumber,omitempty"`
}

// Legacy returns the nested extracted block, or an empty one.
func (r *Receipt) Legacy() ExtractedData {
	if r == nil || r.ExtractedData == nil {
		return ExtractedData{}
	}
	return *r.ExtractedData
}

// Date is either a calendar date or free text the extractor could not parse.
type Date struct {
	Time time.Time
	Text string
}

// NewDate wraps a time as a Date.
func NewDate(t time.Time) Date {
	return Date{Time: t}
}

// ParseDate recognises RFC 3339 timestamps and YYYY-MM-DD dates; anything
// else is kept verbatim. A timestamp keeps its own offset, so its calendar
// date is the one local to the writer.
func ParseDate(s string) Date {
	trimmed := strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return Date{Time: t}
		}
	}
	return Date{Text: s}
}

// IsZero reports whether the date carries no value at all.
func (d Date) IsZero() bool {
	return d.Time.IsZero() && strings.TrimSpace(d.Text) == ""
}

// IsTime reports whether the date was recognised as a calendar date.
func (d Date) IsTime() bool {
	return !d.Time.IsZero()
}

// String formats calendar dates as YYYY-MM-DD and returns text unchanged.
func (d Date) String() string {
	if d.IsTime() {
		return d.Time.Format("2006-01-02")
	}
	return d.Text
}

func (d Date) MarshalJSON() ([]byte, error) {
	switch {
	case d.IsTime():
		return json.Marshal(d.Time.Format(time.RFC3339))
	case d.Text != "":
		return json.Marshal(d.Text)
	default:
		return []byte("null"), nil
	}
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding date: %w", err)
	}
	*d = ParseDate(s)
	return nil
}
