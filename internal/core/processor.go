package core

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/core/ocr"
	"github.com/joseph-ayodele/invoice-ocr/internal/export"
	"github.com/joseph-ayodele/invoice-ocr/internal/ingest"
	"github.com/joseph-ayodele/invoice-ocr/internal/repository"
)

// MsgSkipped is sent to the listener for files already recognized earlier.
const MsgSkipped = "已处理，跳过"

// FileProcessor turns one source file into per-page results. *ocr.Coordinator
// is the production implementation.
type FileProcessor interface {
	ProcessFile(ctx context.Context, path string) ([]ocr.PageResult, error)
}

// Processor feeds recognized files into the report and the ledger.
type Processor struct {
	logger *slog.Logger
	files  FileProcessor
	report *export.Report
	ledger repository.LedgerRepository // optional
}

func NewProcessor(
	logger *slog.Logger,
	files FileProcessor,
	report *export.Report,
	ledger repository.LedgerRepository,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if report == nil {
		report = export.NewReport(logger)
	}
	return &Processor{
		logger: logger,
		files:  files,
		report: report,
		ledger: ledger,
	}
}

func (p *Processor) Report() *export.Report { return p.report }

type FileOptions struct {
	BatchID       string
	SkipProcessed bool // consult the ledger for an earlier success with the same content
}

// FileOutcome is the result of one file. Err carries the file-level failure
// for StatusError.
type FileOutcome struct {
	Status constants.Status
	Pages  int
	Err    error
}

// ProcessOne recognizes path and hands the pages to the report. Per-file
// failures, a per-file deadline included, are reported through the outcome;
// the returned error is only set when ctx is cancelled mid-file.
func (p *Processor) ProcessOne(ctx context.Context, path string, opts FileOptions) (FileOutcome, error) {
	name := filepath.Base(path)
	if opts.BatchID == "" {
		opts.BatchID = common.BatchIDFromContext(ctx)
	}
	log := common.LoggerFromContext(ctx, p.logger.With("batch_id", opts.BatchID)).With("file", name)

	hash := ""
	if p.ledger != nil {
		h, err := ingest.HashFile(path)
		if err != nil {
			log.Warn("batch.file.hash_failed", "error", err)
		}
		hash = h
	}

	if opts.SkipProcessed && p.ledger != nil && hash != "" {
		seen, err := p.ledger.SeenSuccess(ctx, hash)
		if err != nil {
			log.Warn("batch.file.ledger_lookup_failed", "error", err)
		} else if seen {
			log.Info("batch.file.skipped", "content_hash", hash)
			p.report.Notify(name, constants.StatusSkipped, MsgSkipped)
			return FileOutcome{Status: constants.StatusSkipped}, nil
		}
	}

	log.Info("batch.file.start", "path", path)
	pages, err := p.files.ProcessFile(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
			return FileOutcome{}, ctxErr
		}
		log.Error("batch.file.failed", "error", err)
		p.report.Reject(name, err)
		out := FileOutcome{Status: constants.StatusError, Err: err}
		p.record(ctx, path, hash, opts.BatchID, out, nil)
		return out, nil
	}
	log.Debug("batch.file.raw", "pages", pages)

	row, err := p.report.AddResult(name, pages)
	if err != nil {
		out := FileOutcome{Status: constants.StatusError, Pages: len(pages), Err: err}
		p.record(ctx, path, hash, opts.BatchID, out, nil)
		return out, nil
	}

	out := FileOutcome{Status: constants.StatusSuccess, Pages: len(pages)}
	p.record(ctx, path, hash, opts.BatchID, out, &row)
	log.Info("batch.file.ok", "pages", len(pages))
	return out, nil
}

func (p *Processor) record(ctx context.Context, path, hash, batchID string, out FileOutcome, row *export.Row) {
	if p.ledger == nil {
		return
	}
	e := &repository.Entry{
		BatchID:     batchID,
		Filename:    filepath.Base(path),
		Path:        path,
		ContentHash: hash,
		Status:      out.Status,
		PageCount:   out.Pages,
	}
	switch {
	case out.Err != nil:
		e.Message = out.Err.Error()
	case out.Status == constants.StatusSuccess:
		e.Message = export.MsgSuccess
	}
	if row != nil {
		rec := row.Record
		e.Record = &rec
		e.ProcessedAt = row.RecognizedAt
	}
	// The file was already reported; a ledger failure only gets logged.
	if err := p.ledger.Record(context.WithoutCancel(ctx), e); err != nil {
		common.LoggerFromContext(ctx, p.logger).Warn("batch.file.ledger_write_failed", "file", e.Filename, "error", err)
	}
}
