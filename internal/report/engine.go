package report

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zombor/expense-assistant/internal/receipt"
)

// DefaultCurrency is used when neither receipt layout names a currency.
const DefaultCurrency = "INR"

const linkTokenLen = 16

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Config configures an Engine.
type Config struct {
	// Dir is where report files are written.
	Dir string
	// BaseURL is the public prefix for report and receipt links.
	BaseURL string
	// FallbackCurrency defaults to DefaultCurrency.
	FallbackCurrency string
	// LinkSecret keys the token in report filenames. A random key is used
	// when empty, so earlier links stop resolving after a restart.
	LinkSecret string
}

// Engine writes itemized and summary reports and keeps the report directory tidy.
type Engine struct {
	dir              string
	baseURL          string
	fallbackCurrency string
	linkKey          []byte
	timeSource       TimeSource
	locks            *keyedMutex
	remove           func(name string) error
}

// New creates the reports directory and returns an Engine writing into it.
func New(cfg Config) (*Engine, error) {
	return NewWithDeps(cfg, &defaultTimeSource{})
}

// NewWithDeps creates an Engine with a custom time source for testing
func NewWithDeps(cfg Config, timeSrc TimeSource) (*Engine, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("reports directory is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.FallbackCurrency))
	if currency == "" {
		currency = DefaultCurrency
	}
	linkKey := []byte(cfg.LinkSecret)
	if len(linkKey) == 0 {
		linkKey = make([]byte, 32)
		if _, err := rand.Read(linkKey); err != nil {
			return nil, fmt.Errorf("generating link secret: %w", err)
		}
		slog.Warn("No link secret configured, report links will change on restart")
	}
	e := &Engine{
		dir:              cfg.Dir,
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		fallbackCurrency: currency,
		linkKey:          linkKey,
		timeSource:       timeSrc,
		locks:            newKeyedMutex(),
		remove:           os.Remove,
	}
	if err := e.ensureDir(); err != nil {
		return nil, err
	}
	slog.Info("Report engine ready", "dir", cfg.Dir)
	return e, nil
}

// ensureDir is safe to call concurrently and when the directory exists.
func (e *Engine) ensureDir() error {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return fmt.Errorf("creating reports directory: %w", err)
	}
	return nil
}

// userKey names a user's report files. Report links are public, so the
// sanitized number is followed by a keyed hash of it.
func (e *Engine) userKey(phoneNumber string) string {
	dir := receipt.UserDir(phoneNumber)
	mac := hmac.New(sha256.New, e.linkKey)
	mac.Write([]byte(dir))
	return dir + "_" + hex.EncodeToString(mac.Sum(nil))[:linkTokenLen]
}

// PublicURL returns the link a report file is served under.
func (e *Engine) PublicURL(filename string) string {
	return e.baseURL + "/reports/" + url.PathEscape(filename)
}

// fallbackFileURL links to a stored original when the receipt has no URL.
func (e *Engine) fallbackFileURL(phoneNumber, filename string) string {
	return e.baseURL + "/receipts/" + url.PathEscape(receipt.UserDir(phoneNumber)) + "/" + url.PathEscape(filename)
}

// Path resolves a report filename inside the reports directory. Names with
// path components are rejected.
func (e *Engine) Path(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("invalid report name %q", filename)
	}
	return filepath.Join(e.dir, filename), nil
}

func failed(filename string, err error) Result {
	slog.Error("Report generation failed", "file", filename, "error", err)
	return Result{Success: false, Filename: filename, Err: err}
}

// keyedMutex serializes work per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is free and returns the matching unlock.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
