package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/core"
	"github.com/joseph-ayodele/invoice-ocr/internal/core/ocr"
	"github.com/joseph-ayodele/invoice-ocr/internal/core/ocr/baidu"
	"github.com/joseph-ayodele/invoice-ocr/internal/export"
	"github.com/joseph-ayodele/invoice-ocr/internal/repository"
)

// App is everything a command needs, wired from configuration.
type App struct {
	Config    *common.Config
	Logger    *slog.Logger
	Processor *core.Processor             // nil unless the command recognizes files
	Ledger    repository.LedgerRepository // nil when the ledger is off

	closers []func()
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp is replaced in tests.
var buildApp = wireApp

func loadConfig() (*common.Config, error) {
	cfg, err := common.LoadConfig(common.LoadOptions{ConfigFile: configFile})
	if err != nil {
		return nil, err
	}
	if credentials != "" {
		if err := cfg.ApplyCredentials(credentials); err != nil {
			return nil, err
		}
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newLogger writes JSON logs to stderr and, when configured, to the log file.
func newLogger(cfg *common.Config, stderr io.Writer) (*slog.Logger, func(), error) {
	w := stderr
	closeFn := func() {}
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(stderr, f)
		closeFn = func() { _ = f.Close() }
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	return logger, closeFn, nil
}

func wireApp(cmd *cobra.Command, recognize bool) (*App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	app := &App{Config: cfg, Logger: logger, closers: []func(){closeLog}}

	if cfg.LedgerEnabled() {
		db, err := repository.Open(commandContext(cmd), repository.Config{DSN: cfg.Ledger.DSN}, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		app.closers = append(app.closers, db.Close)
		if err := db.Migrate(commandContext(cmd)); err != nil {
			app.Close()
			return nil, err
		}
		app.Ledger = repository.NewLedgerRepository(db, logger)
	}

	if !recognize {
		return app, nil
	}
	if err := cfg.Validate(); err != nil {
		app.Close()
		return nil, err
	}

	client, err := baidu.NewClient(baidu.Config{
		AppID:     cfg.OCR.AppID,
		APIKey:    cfg.OCR.APIKey,
		SecretKey: cfg.OCR.SecretKey,
		BaseURL:   cfg.OCR.BaseURL,
		QPS:       cfg.OCR.QPS,
		Timeout:   time.Duration(cfg.OCR.Timeout),
	}, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	renderer := ocr.NewPdftoppmRenderer(cfg.Render.Pdftoppm, ocr.ExecRunner{Logger: logger}, logger)
	coordinator := ocr.NewCoordinator(ocr.Config{
		DPI:         cfg.Render.DPI,
		Gray:        cfg.Render.Gray,
		MaxEdge:     cfg.Render.MaxEdge,
		JPEGQuality: cfg.Render.JPEGQuality,
		TempDir:     cfg.Render.TempDir,
	}, ocr.NewInvoker(client, logger), renderer, logger)

	app.Processor = core.NewProcessor(logger, coordinator, export.NewReport(logger), app.Ledger)
	return app, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
