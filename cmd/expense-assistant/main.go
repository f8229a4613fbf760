package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"go.etcd.io/bbolt"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/expense-assistant/internal/assistant"
	"github.com/zombor/expense-assistant/internal/config"
	"github.com/zombor/expense-assistant/internal/events"
	"github.com/zombor/expense-assistant/internal/menu"
	"github.com/zombor/expense-assistant/internal/receipt"
	"github.com/zombor/expense-assistant/internal/report"
	"github.com/zombor/expense-assistant/internal/server"
	"github.com/zombor/expense-assistant/internal/session"
	"github.com/zombor/expense-assistant/internal/whatsapp"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		if errors.Is(err, ff.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// Check version flag after parsing
	if cfg.ShowVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.Logger(os.Stderr))

	if err := run(cfg); err != nil {
		slog.Error("Exiting", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	slog.Info("Initializing database...", "path", cfg.DBPath)
	db, err := bbolt.Open(cfg.DBPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	receiptDB, err := receipt.NewBoltDB(db)
	if err != nil {
		return err
	}
	sessions, err := session.NewBoltStore(db)
	if err != nil {
		return err
	}

	// Initialize storage
	slog.Info("Initializing storage...", "path", cfg.StorageDir)
	store, err := receipt.NewLocalStorage(cfg.StorageDir)
	if err != nil {
		return err
	}
	receiptService, err := receipt.NewService(receiptDB, store, cfg.BaseURL())
	if err != nil {
		return err
	}

	engine, err := report.New(report.Config{
		Dir:              cfg.ReportsDir,
		BaseURL:          cfg.BaseURL(),
		FallbackCurrency: cfg.FallbackCurrency,
		LinkSecret:       cfg.LinkSecret,
	})
	if err != nil {
		return err
	}

	var messenger menu.Messenger = whatsapp.LogMessenger{}
	if cfg.WhatsAppToken != "" {
		messenger, err = whatsapp.NewClient(cfg.WhatsAppURL, cfg.WhatsAppToken, cfg.WhatsAppPhoneID)
		if err != nil {
			return err
		}
	} else {
		slog.Warn("No WhatsApp token configured, outgoing messages are only logged")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.AMQPURL != "" {
		publisher, err = events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return err
		}
	}
	defer publisher.Close()

	presenter := menu.NewPresenter(sessions, messenger)
	handlers := assistant.NewHandlers(receiptService, engine, sessions, presenter, messenger, publisher, assistant.Options{
		SupportContact: cfg.SupportContact,
		UpgradeURL:     cfg.UpgradeURL,
		ShareURL:       cfg.ShareURL,
		Workbook:       cfg.Workbook,
	})
	dispatcher, err := menu.NewDispatcher(sessions, messenger, handlers)
	if err != nil {
		return err
	}

	srv := server.NewServer(server.Deps{
		Messages: assistant.NewRouter(dispatcher, presenter, sessions, messenger),
		Receipts: assistant.NewIntake(receiptService, sessions, presenter),
		Archive:  receiptService,
		Reports:  engine,
		Plans:    sessions,
	}, server.BasicAuth{
		Username: cfg.AuthUser,
		Password: cfg.AuthPass,
	})
	if cfg.AuthUser != "" {
		slog.Info("Basic auth enabled", "user", cfg.AuthUser)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx, cfg.Addr())
	})
	if cfg.RetentionDays > 0 {
		g.Go(func() error {
			sweep(gctx, engine, cfg.RetentionDays, cfg.CleanupInterval)
			return nil
		})
	}

	slog.Info("Expense assistant started", "version", version, "url", cfg.BaseURL(), "environment", cfg.Environment)
	return g.Wait()
}

// sweep removes expired reports once at startup and then on every tick
func sweep(ctx context.Context, engine *report.Engine, days int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := engine.CleanupOldReports(days); err != nil {
			slog.Warn("Report cleanup incomplete", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
