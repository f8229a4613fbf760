package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
)

// ErrInvalidExtraction is returned when extracted receipt data does not match
// the expected shape.
var ErrInvalidExtraction = errors.New("invalid extracted receipt data")

// Extraction is the structured output of the OCR collaborator for one receipt.
type Extraction struct {
	MerchantName  string              `json:"merchantName"`
	TotalAmount   decimal.NullDecimal `json:"totalAmount"`
	Tax           decimal.NullDecimal `json:"tax"`
	ReceiptDate   Date                `json:"receiptDate"`
	Category      string              `json:"category"`
	Currency      string              `json:"currency"`
	SerialNumber  string              `json:"serialNumber"`
	BillNumber    string              `json:"billNumber"`
	InvoiceNumber string              `json:"invoiceNumber"`
}

// extractionSchema accepts amounts as JSON numbers or numeric strings. No
// field is required: missing values fall back to defaults in reports.
func extractionSchema() map[string]any {
	amount := map[string]any{
		"type":    []string{"number", "string", "null"},
		"pattern": `^-?\d+(\.\d+)?$`,
	}
	text := map[string]any{"type": []string{"string", "null"}}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"merchantName":  text,
			"totalAmount":   amount,
			"tax":           amount,
			"receiptDate":   text,
			"category":      text,
			"currency":      map[string]any{"type": []string{"string", "null"}, "pattern": `^[A-Za-z]{3}$`},
			"serialNumber":  text,
			"billNumber":    text,
			"invoiceNumber": text,
		},
	}
}

func compileExtractionSchema() (*jsonschema.Schema, error) {
	b, err := json.Marshal(extractionSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("extraction.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("extraction.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ParseExtraction validates raw extractor output and decodes it. Empty input
// yields an empty extraction.
func ParseExtraction(schema *jsonschema.Schema, data []byte) (*Extraction, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &Extraction{}, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExtraction, err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExtraction, err)
	}
	var ext Extraction
	if err := json.Unmarshal(data, &ext); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExtraction, err)
	}
	return &ext, nil
}
