package async

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-ocr/internal/async"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/core"
	"github.com/joseph-ayodele/invoice-ocr/internal/export"
	"github.com/joseph-ayodele/invoice-ocr/internal/ingest"
)

type WatchOptions struct {
	Dir             string
	OutputPath      string // requested report path; defaults to {Dir}/{ReportName}
	ReportName      string
	FlushEvery      time.Duration // default 1m
	Debounce        time.Duration // default 500ms
	InitialScan     bool
	SkipProcessed   bool
	ShutdownTimeout time.Duration // default 30s
}

func (o *WatchOptions) setDefaults() {
	if o.ReportName == "" {
		o.ReportName = common.DefaultReportName
	}
	if o.OutputPath == "" {
		o.OutputPath = filepath.Join(o.Dir, o.ReportName)
	}
	if o.FlushEvery <= 0 {
		o.FlushEvery = time.Minute
	}
	if o.Debounce <= 0 {
		o.Debounce = 500 * time.Millisecond
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 30 * time.Second
	}
}

// snapshotter saves the long-lived report when it grew and keeps only the
// newest snapshot on disk.
type snapshotter struct {
	report    *export.Report
	dest      string
	logger    *slog.Logger
	lastPath  string
	lastCount int
}

func (s *snapshotter) flush() {
	n := s.report.Count()
	if n == s.lastCount {
		return
	}
	saved, err := s.report.Save(s.dest)
	if err != nil {
		if !errors.Is(err, export.ErrEmptyReport) {
			s.logger.Error("watch.flush.failed", "error", err)
		}
		return
	}
	if s.lastPath != "" && s.lastPath != saved {
		if err := os.Remove(s.lastPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("watch.flush.cleanup_failed", "path", s.lastPath, "error", err)
		}
	}
	s.lastPath, s.lastCount = saved, n
	s.logger.Info("watch.flush.ok", "path", saved, "rows", n)
}

// RunWatch feeds new files in opts.Dir into proc until ctx ends, saving the
// report every FlushEvery and once more after the queue drains.
func RunWatch(ctx context.Context, proc *core.Processor, opts WatchOptions, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	opts.setDefaults()

	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Dir:         opts.Dir,
		InitialScan: opts.InitialScan,
		Debounce:    opts.Debounce,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	batchID := uuid.New().String()
	log := logger.With("batch_id", batchID, "dir", opts.Dir)
	proc.Report().CreateNew()

	queue := NewProcessorQueue(proc, logger, WithSkipProcessed(opts.SkipProcessed))
	snap := &snapshotter{report: proc.Report(), dest: opts.OutputPath, logger: log}

	ticker := time.NewTicker(opts.FlushEvery)
	defer ticker.Stop()

	log.Info("watch.start", "flush_every", opts.FlushEvery.String())
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case p, ok := <-events:
			if !ok {
				break loop
			}
			if err := queue.Enqueue(ctx, async.Job{Path: p, BatchID: batchID}); err != nil {
				log.Warn("watch.enqueue.failed", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Warn("watch.error", "error", err)
		case <-ticker.C:
			snap.flush()
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	snap.flush()
	log.Info("watch.stop", "rows", proc.Report().Count(), "report", snap.lastPath)
	return nil
}
