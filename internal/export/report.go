// Package export accumulates per-file invoice records into a report and writes
// it out as an XLSX workbook.
package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/core/ocr"
	"github.com/joseph-ayodele/invoice-ocr/internal/invoice"
)

const (
	SheetName = "发票识别结果"

	MsgSuccess       = "处理成功"
	msgFailurePrefix = "处理失败："

	timestampLayout = "2006-01-02 15:04:05"
	fileStampLayout = "20060102_150405"
)

// Header is the fixed column order of the report.
var Header = []string{
	"文件名", "识别时间", "发票类型", "发票代码", "发票号码", "开票日期",
	"购买方名称", "销售方名称", "金额", "税率", "税额", "价税合计", "备注",
}

// ErrEmptyReport is returned by Save when no row was ever accumulated.
var ErrEmptyReport = errors.New("report has no rows")

// Listener receives one notification per file handed to the report.
type Listener func(filename string, status constants.Status, message string)

// Row is one accepted file. Rows are never mutated after append.
type Row struct {
	Filename     string
	RecognizedAt time.Time
	Record       invoice.Record
}

type Option func(*Report)

func WithListener(l Listener) Option { return func(r *Report) { r.listener = l } }

func WithClock(now func() time.Time) Option { return func(r *Report) { r.now = now } }

func WithExtractor(e *invoice.Extractor) Option { return func(r *Report) { r.extractor = e } }

// WithValidator replaces the record guard run before a row is appended.
func WithValidator(v func(invoice.Record) error) Option { return func(r *Report) { r.validate = v } }

// Report is safe for concurrent use. The lifecycle is CreateNew, AddResult
// any number of times, Save once, then CreateNew for the next batch.
//
// seq serializes each append together with its notification, so listeners
// observe files in row order. Listeners may call Rows and Count but must not
// call back into AddResult, Reject or Notify.
type Report struct {
	seq sync.Mutex
	mu  sync.Mutex

	rows    []Row
	count   int
	created bool

	listener  Listener
	now       func() time.Time
	extractor *invoice.Extractor
	validate  func(invoice.Record) error
	logger    *slog.Logger
}

func NewReport(logger *slog.Logger, opts ...Option) *Report {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Report{logger: logger, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	if r.extractor == nil {
		r.extractor = invoice.NewExtractor(logger)
	}
	if r.validate == nil {
		r.validate = invoice.Validate
	}
	return r
}

// CreateNew discards any accumulated rows.
func (r *Report) CreateNew() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = nil
	r.count = 0
	r.created = true
}

// SetListener replaces the current listener; nil silences notifications.
func (r *Report) SetListener(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listener = l
}

// AddResult builds a record from the first page (later pages are ignored for
// field extraction) and appends it as a row. The appended row is returned.
func (r *Report) AddResult(filename string, pages []ocr.PageResult) (Row, error) {
	var first ocr.PageResult
	if len(pages) > 0 {
		first = pages[0]
	}
	rec := r.extractor.Extract(first)

	r.seq.Lock()
	defer r.seq.Unlock()

	if err := r.validate(rec); err != nil {
		r.logger.Error("report.row.rejected", "filename", filename, "error", err)
		r.emit(filename, constants.StatusError, msgFailurePrefix+err.Error())
		return Row{}, fmt.Errorf("add %s: %w", filename, err)
	}

	r.mu.Lock()
	if !r.created {
		r.rows = nil
		r.count = 0
		r.created = true
	}
	row := Row{Filename: filename, RecognizedAt: r.now(), Record: rec}
	r.rows = append(r.rows, row)
	r.count++
	n := r.count
	r.mu.Unlock()

	r.logger.Info("report.row.added", "filename", filename, "pages", len(pages), "count", n)
	r.emit(filename, constants.StatusSuccess, MsgSuccess)
	return row, nil
}

// Reject reports a file-level failure without adding a row.
func (r *Report) Reject(filename string, cause error) {
	msg := "未知错误"
	if cause != nil {
		msg = cause.Error()
	}
	r.Notify(filename, constants.StatusError, msgFailurePrefix+msg)
}

// Notify forwards an arbitrary status (e.g. skipped) to the listener.
func (r *Report) Notify(filename string, status constants.Status, message string) {
	r.seq.Lock()
	defer r.seq.Unlock()
	r.emit(filename, status, message)
}

// emit must be called with seq held.
func (r *Report) emit(filename string, status constants.Status, message string) {
	r.mu.Lock()
	l := r.listener
	r.mu.Unlock()
	if l != nil {
		l(filename, status, message)
	}
}

// Rows returns a copy of the accumulated rows in arrival order.
func (r *Report) Rows() []Row {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Row, len(r.rows))
	copy(out, r.rows)
	return out
}

func (r *Report) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// OutputPath derives the saved file name from the requested one:
// {dir}/{name}_{YYYYMMDD_HHMMSS}_共{count}张{ext}.
func OutputPath(requested string, at time.Time, count int) string {
	dir := filepath.Dir(requested)
	ext := filepath.Ext(requested)
	if ext == "" {
		ext = ".xlsx"
	}
	name := strings.TrimSuffix(filepath.Base(requested), filepath.Ext(requested))
	return filepath.Join(dir, fmt.Sprintf("%s_%s_共%d张%s", name, at.Format(fileStampLayout), count, ext))
}

// Save writes the workbook next to path and returns the actual destination.
func (r *Report) Save(path string) (string, error) {
	start := time.Now()

	r.mu.Lock()
	rows := make([]Row, len(r.rows))
	copy(rows, r.rows)
	count := r.count
	savedAt := r.now()
	r.mu.Unlock()

	if len(rows) == 0 {
		return "", ErrEmptyReport
	}

	dest := OutputPath(path, savedAt, count)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			r.logger.Warn("report workbook close error", "error", err)
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	for i, row := range rows {
		values := make([]any, 0, len(Header))
		values = append(values, row.Filename, row.RecognizedAt.Format(timestampLayout))
		for _, v := range row.Record.Values() {
			values = append(values, v)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return "", fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 32) // filename
	_ = f.SetColWidth(SheetName, "B", "B", 20) // recognized at
	_ = f.SetColWidth(SheetName, "C", "F", 16)
	_ = f.SetColWidth(SheetName, "G", "H", 36) // parties
	_ = f.SetColWidth(SheetName, "I", "L", 14) // amounts
	_ = f.SetColWidth(SheetName, "M", "M", 40) // remarks

	if err := f.SaveAs(dest); err != nil {
		return "", fmt.Errorf("xlsx write: %w", err)
	}

	r.logger.Info("report.save.ok",
		"path", dest,
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return dest, nil
}
