package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/expense-assistant/internal/whatsapp"
)

// EnvPrefix prefixes every environment variable, e.g. EXPENSE_ASSISTANT_REPORTS_DIR.
const EnvPrefix = "EXPENSE_ASSISTANT"

// Config holds the runtime settings of the assistant
type Config struct {
	Port        int
	DBPath      string
	StorageDir  string
	ReportsDir  string
	Environment string
	PublicURL   string

	FallbackCurrency string
	LinkSecret       string
	RetentionDays    int
	CleanupInterval  time.Duration
	Workbook         bool

	WhatsAppURL     string
	WhatsAppToken   string
	WhatsAppPhoneID string

	AMQPURL      string
	AMQPExchange string

	SupportContact string
	UpgradeURL     string
	ShareURL       string

	AuthUser string
	AuthPass string

	LogLevel  string
	LogFormat string

	ShowVersion bool
}

// Load parses args and the environment. A parse failure carries the flag
// help in its message; ff.ErrHelp is returned for -h.
func Load(args []string) (*Config, error) {
	fs := ff.NewFlagSet("expense-assistant")
	var (
		port            = fs.IntLong("port", 8080, "HTTP server port")
		dbPath          = fs.StringLong("db", "expense-assistant.db", "Database file path")
		storageDir      = fs.StringLong("storage", "./receipts", "Receipt file storage directory")
		reportsDir      = fs.StringLong("reports-dir", "./reports", "Generated report directory")
		environment     = fs.StringLong("environment", "development", "Environment: 'development' or 'production'")
		publicURL       = fs.StringLong("public-url", "", "Public base URL for report and receipt links (default http://localhost:<port>)")
		currency        = fs.StringLong("fallback-currency", "INR", "Currency used when a receipt names none")
		linkSecret      = fs.StringLong("link-secret", "", "Secret keying report link names (random per start when empty)")
		retentionDays   = fs.IntLong("retention-days", 30, "Delete reports older than this many days (0 disables the sweeper)")
		cleanupInterval = fs.DurationLong("cleanup-interval", 24*time.Hour, "How often the report sweeper runs")
		workbook        = fs.BoolLong("xlsx", "Also send an .xlsx workbook with itemized reports")
		whatsappURL     = fs.StringLong("whatsapp-url", whatsapp.DefaultBaseURL, "WhatsApp Cloud API base URL")
		whatsappToken   = fs.StringLong("whatsapp-token", "", "WhatsApp access token (messages are only logged when empty)")
		whatsappPhoneID = fs.StringLong("whatsapp-phone-id", "", "WhatsApp phone number ID")
		amqpURL         = fs.StringLong("amqp-url", "", "AMQP broker URL for report events (optional)")
		amqpExchange    = fs.StringLong("amqp-exchange", "expense-assistant", "AMQP exchange for report events")
		supportContact  = fs.StringLong("support-contact", "", "Support contact shown to users")
		upgradeURL      = fs.StringLong("upgrade-url", "", "Upgrade link shown to free users")
		shareURL        = fs.StringLong("share-url", "", "Link users can share")
		authUser        = fs.StringLong("auth-user", "", "Basic auth username for /api (optional)")
		authPass        = fs.StringLong("auth-pass", "", "Basic auth password for /api (optional)")
		logLevel        = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		logFormat       = fs.StringLong("log-format", "text", "Log format: 'text' or 'json'")
		showVersion     = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix(EnvPrefix)); err != nil {
		return nil, fmt.Errorf("parsing flags: %w\n\n%s", err, ffhelp.Flags(fs))
	}

	return &Config{
		Port:             *port,
		DBPath:           *dbPath,
		StorageDir:       *storageDir,
		ReportsDir:       *reportsDir,
		Environment:      *environment,
		PublicURL:        *publicURL,
		FallbackCurrency: strings.ToUpper(strings.TrimSpace(*currency)),
		LinkSecret:       *linkSecret,
		RetentionDays:    *retentionDays,
		CleanupInterval:  *cleanupInterval,
		Workbook:         *workbook,
		WhatsAppURL:      *whatsappURL,
		WhatsAppToken:    *whatsappToken,
		WhatsAppPhoneID:  *whatsappPhoneID,
		AMQPURL:          *amqpURL,
		AMQPExchange:     *amqpExchange,
		SupportContact:   *supportContact,
		UpgradeURL:       *upgradeURL,
		ShareURL:         *shareURL,
		AuthUser:         *authUser,
		AuthPass:         *authPass,
		LogLevel:         *logLevel,
		LogFormat:        *logFormat,
		ShowVersion:      *showVersion,
	}, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	if strings.TrimSpace(c.StorageDir) == "" {
		errs = append(errs, errors.New("storage directory is required"))
	}
	if strings.TrimSpace(c.ReportsDir) == "" {
		errs = append(errs, errors.New("reports directory is required"))
	}
	if c.Environment != "development" && c.Environment != "production" {
		errs = append(errs, fmt.Errorf("unknown environment %q", c.Environment))
	}
	if c.PublicURL != "" {
		if u, err := url.Parse(c.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("public url must be absolute, got %q", c.PublicURL))
		}
	} else if c.Environment == "production" {
		errs = append(errs, errors.New("public url is required in production"))
	}
	if c.Environment == "production" && len(c.LinkSecret) < 16 {
		errs = append(errs, errors.New("link secret of at least 16 characters is required in production"))
	}
	if len(c.FallbackCurrency) != 3 {
		errs = append(errs, fmt.Errorf("fallback currency must be a 3 letter code, got %q", c.FallbackCurrency))
	}
	if c.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("retention days must not be negative, got %d", c.RetentionDays))
	}
	if c.RetentionDays > 0 && c.CleanupInterval <= 0 {
		errs = append(errs, errors.New("cleanup interval must be positive when retention is enabled"))
	}
	if (c.WhatsAppToken == "") != (c.WhatsAppPhoneID == "") {
		errs = append(errs, errors.New("whatsapp token and phone id must be set together"))
	}
	if c.AMQPURL != "" && strings.TrimSpace(c.AMQPExchange) == "" {
		errs = append(errs, errors.New("amqp exchange is required when amqp url is set"))
	}
	if (c.AuthUser == "") != (c.AuthPass == "") {
		errs = append(errs, errors.New("auth user and password must be set together"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// BaseURL is the prefix of every link sent to users
func (c *Config) BaseURL() string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/")
	}
	return fmt.Sprintf("http://localhost:%d", c.Port)
}

// Addr is the listen address of the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// Logger builds the logger described by the log settings
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
