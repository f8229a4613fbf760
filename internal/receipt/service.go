package receipt

import (
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service captures receipts handed over by the extraction collaborator
type Service struct {
	db          DB
	storage     Storage
	schema      *jsonschema.Schema
	fileBaseURL string
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service. fileBaseURL is the public prefix under
// which stored originals are served.
func NewService(db DB, storage Storage, fileBaseURL string) (*Service, error) {
	return NewServiceWithDeps(db, storage, fileBaseURL, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, fileBaseURL string, idGen IDGenerator, timeSrc TimeSource) (*Service, error) {
	schema, err := compileExtractionSchema()
	if err != nil {
		return nil, err
	}
	return &Service{
		db:          db,
		storage:     storage,
		schema:      schema,
		fileBaseURL: strings.TrimRight(fileBaseURL, "/"),
		idGenerator: idGen,
		timeSource:  timeSrc,
	}, nil
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaceRuns   = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = unsafeChars.ReplaceAllString(base, "")
	base = spaceRuns.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	ext = strings.ToLower(unsafeChars.ReplaceAllString(strings.TrimPrefix(ext, "."), ""))
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// fileURL builds the public URL of a stored original.
func (s *Service) fileURL(storedPath string) string {
	if s.fileBaseURL == "" {
		return ""
	}
	parts := strings.Split(storedPath, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.fileBaseURL + "/receipts/" + strings.Join(parts, "/")
}

// Capture validates extracted data, stores the original file and saves the
// receipt for the given user.
func (s *Service) Capture(phoneNumber, filename string, data []byte, contentType string, extracted []byte) (*Receipt, error) {
	if strings.TrimSpace(phoneNumber) == "" {
		return nil, fmt.Errorf("phone number is required")
	}
	ext, err := ParseExtraction(s.schema, extracted)
	if err != nil {
		return nil, err
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()
	cleanFilename := sanitizeFilename(filename)

	var storedPath string
	if len(data) > 0 {
		storedPath, err = s.storage.Save(phoneNumber, fmt.Sprintf("%s_%s", id, cleanFilename), data)
		if err != nil {
			return nil, fmt.Errorf("saving file: %w", err)
		}
	}

	receipt := &Receipt{
		ID:               id,
		PhoneNumber:      phoneNumber,
		MerchantName:     strings.TrimSpace(ext.MerchantName),
		TotalAmount:      ext.TotalAmount,
		Tax:              ext.Tax,
		ReceiptDate:      ext.ReceiptDate,
		Category:         strings.TrimSpace(ext.Category),
		Currency:         strings.ToUpper(strings.TrimSpace(ext.Currency)),
		SerialNumber:     strings.TrimSpace(ext.SerialNumber),
		BillNumber:       strings.TrimSpace(ext.BillNumber),
		InvoiceNumber:    strings.TrimSpace(ext.InvoiceNumber),
		OriginalFilename: cleanFilename,
		StoredPath:       storedPath,
		ContentType:      contentType,
		CreatedAt:        now,
	}
	if storedPath != "" {
		receipt.OriginalFileURL = s.fileURL(storedPath)
	}

	if err := s.db.SaveReceipt(receipt); err != nil {
		if storedPath != "" {
			if delErr := s.storage.Delete(storedPath); delErr != nil {
				slog.Warn("Failed to clean up file", "path", storedPath, "error", delErr)
			}
		}
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}

	slog.Info("Receipt captured", "phone", phoneNumber, "id", id, "file", storedPath)
	return receipt, nil
}

// ListReceipts returns all receipts of a user
func (s *Service) ListReceipts(phoneNumber string) ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts(phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// GetReceiptFile retrieves a stored original by its relative path
func (s *Service) GetReceiptFile(path string) ([]byte, error) {
	data, err := s.storage.Get(path)
	if err != nil {
		return nil, fmt.Errorf("getting receipt file: %w", err)
	}
	return data, nil
}

// DeleteReceipt removes a receipt and its file
func (s *Service) DeleteReceipt(phoneNumber, id string) error {
	receipt, err := s.db.GetReceipt(phoneNumber, id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	if receipt.StoredPath != "" {
		if err := s.storage.Delete(receipt.StoredPath); err != nil {
			slog.Warn("Failed to delete file", "path", receipt.StoredPath, "error", err)
		}
	}

	if err := s.db.DeleteReceipt(phoneNumber, id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}
