package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/export"
	"github.com/joseph-ayodele/invoice-ocr/internal/ingest"
)

var ErrNoSupportedFiles = errors.New("no supported invoice files in directory")

type BatchOptions struct {
	// OutputPath is the requested report path; the saved name gets a timestamp
	// and row count. Defaults to {dir}/{ReportName}.
	OutputPath    string
	ReportName    string
	SkipProcessed bool
	Progress      func(done, total int)
}

type BatchSummary struct {
	BatchID    string
	Total      int
	Accepted   int
	Failed     int
	Skipped    int
	OutputPath string // empty when nothing was accepted
	Elapsed    time.Duration
}

// RunBatch processes every supported file directly inside dir, in name order,
// into a fresh report and saves it. When ctx ends mid-batch the rows gathered
// so far are still saved and ctx's error is returned with the summary.
func (p *Processor) RunBatch(ctx context.Context, dir string, opts BatchOptions) (BatchSummary, error) {
	start := time.Now()
	files, err := ingest.ListDirectory(dir)
	if err != nil {
		return BatchSummary{}, common.NewAppError("BATCH_ERROR", "list "+dir, err)
	}
	if len(files) == 0 {
		return BatchSummary{}, ErrNoSupportedFiles
	}

	sum := BatchSummary{BatchID: uuid.New().String(), Total: len(files)}
	log := p.logger.With("batch_id", sum.BatchID)
	ctx = common.WithLogger(common.WithBatchID(ctx, sum.BatchID), log)
	log.Info("batch.start", "dir", dir, "files", len(files))

	p.report.CreateNew()

	var runErr error
	for i, f := range files {
		out, err := p.ProcessOne(ctx, f.Path, FileOptions{BatchID: sum.BatchID, SkipProcessed: opts.SkipProcessed})
		if err != nil {
			log.Warn("batch.interrupted", "processed", i, "error", err)
			runErr = err
			break
		}
		switch out.Status {
		case constants.StatusSuccess:
			sum.Accepted++
		case constants.StatusSkipped:
			sum.Skipped++
		default:
			sum.Failed++
		}
		if opts.Progress != nil {
			opts.Progress(i+1, len(files))
		}
	}

	dest := opts.OutputPath
	if dest == "" {
		name := opts.ReportName
		if name == "" {
			name = common.DefaultReportName
		}
		dest = filepath.Join(dir, name)
	}
	saved, err := p.report.Save(dest)
	switch {
	case errors.Is(err, export.ErrEmptyReport):
		log.Warn("batch.report.empty")
	case err != nil:
		return sum, fmt.Errorf("save report: %w", err)
	default:
		sum.OutputPath = saved
	}

	sum.Elapsed = time.Since(start)
	log.Info("batch.done",
		"total", sum.Total,
		"accepted", sum.Accepted,
		"failed", sum.Failed,
		"skipped", sum.Skipped,
		"output", sum.OutputPath,
		"elapsed_ms", sum.Elapsed.Milliseconds(),
	)
	return sum, runErr
}
