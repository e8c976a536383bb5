package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/core/ocr"
	"github.com/joseph-ayodele/invoice-ocr/internal/export"
	"github.com/joseph-ayodele/invoice-ocr/internal/repository"
)

type fileReply struct {
	pages []ocr.PageResult
	err   error
}

// fakeFiles answers by base file name and records the order of calls.
type fakeFiles struct {
	mu      sync.Mutex
	replies map[string]fileReply
	calls   []string
	hook    func(name string)
}

func (f *fakeFiles) ProcessFile(ctx context.Context, path string) ([]ocr.PageResult, error) {
	name := filepath.Base(path)
	f.mu.Lock()
	f.calls = append(f.calls, name)
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		hook(name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, ok := f.replies[name]
	if !ok {
		return []ocr.PageResult{}, nil
	}
	return r.pages, r.err
}

func (f *fakeFiles) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type memLedger struct {
	mu      sync.Mutex
	entries []repository.Entry
}

func (m *memLedger) Record(_ context.Context, e *repository.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memLedger) SeenSuccess(_ context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ContentHash == hash && e.Status == constants.StatusSuccess {
			return true, nil
		}
	}
	return false, nil
}

func (m *memLedger) Recent(_ context.Context, limit int) ([]repository.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.Entry, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

type notification struct {
	filename string
	status   constants.Status
	message  string
}

type listener struct {
	mu    sync.Mutex
	items []notification
}

func (l *listener) fn(filename string, status constants.Status, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, notification{filename, status, message})
}

var testNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.Local)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProcessor(files FileProcessor, ledger repository.LedgerRepository, l *listener) *Processor {
	opts := []export.Option{export.WithClock(func() time.Time { return testNow })}
	if l != nil {
		opts = append(opts, export.WithListener(l.fn))
	}
	report := export.NewReport(quietLogger(), opts...)
	return NewProcessor(quietLogger(), files, report, ledger)
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("content of "+n), 0o644))
	}
}

func words(kv ...string) ocr.PageResult {
	p := ocr.PageResult{}
	for i := 0; i+1 < len(kv); i += 2 {
		p[kv[i]] = kv[i+1]
	}
	return p
}

// stallFiles blocks until ctx ends, then fails the way the invoker does on a
// deadline.
type stallFiles struct{}

func (stallFiles) ProcessFile(ctx context.Context, _ string) ([]ocr.PageResult, error) {
	<-ctx.Done()
	return nil, &ocr.APIError{Code: ocr.CodeTimeout, Message: ctx.Err().Error()}
}

func TestProcessOne_DeadlineIsFileFailure(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "slow.jpg")
	ledger := &memLedger{}
	l := &listener{}
	p := newTestProcessor(stallFiles{}, ledger, l)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	out, err := p.ProcessOne(ctx, filepath.Join(dir, "slow.jpg"), FileOptions{BatchID: "b1"})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusError, out.Status)

	var apiErr *ocr.APIError
	require.ErrorAs(t, out.Err, &apiErr)
	assert.True(t, apiErr.IsTimeout())

	require.Len(t, l.items, 1)
	assert.Equal(t, "slow.jpg", l.items[0].filename)
	assert.Equal(t, constants.StatusError, l.items[0].status)

	require.Len(t, ledger.entries, 1)
	assert.Equal(t, constants.StatusError, ledger.entries[0].Status)
	assert.Equal(t, 0, p.Report().Count())
}

func TestProcessOne_CanceledReturnsError(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.jpg")
	ledger := &memLedger{}
	l := &listener{}
	p := newTestProcessor(stallFiles{}, ledger, l)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.ProcessOne(ctx, filepath.Join(dir, "a.jpg"), FileOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, l.items)
	assert.Empty(t, ledger.entries)
}

func TestProcessOne_ConcurrentLedgerRecordsOwnRow(t *testing.T) {
	dir := t.TempDir()
	files := &fakeFiles{replies: map[string]fileReply{}}
	var names []string
	for i := 0; i < 16; i++ {
		n := fmt.Sprintf("f%02d.jpg", i)
		names = append(names, n)
		files.replies[n] = fileReply{pages: []ocr.PageResult{words("InvoiceNum", n)}}
	}
	writeFiles(t, dir, names...)
	ledger := &memLedger{}
	p := newTestProcessor(files, ledger, nil)
	p.Report().CreateNew()

	var wg sync.WaitGroup
	for _, n := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			_, err := p.ProcessOne(context.Background(), filepath.Join(dir, n), FileOptions{BatchID: "b"})
			assert.NoError(t, err)
		}(n)
	}
	wg.Wait()

	require.Len(t, ledger.entries, len(names))
	for _, e := range ledger.entries {
		require.NotNil(t, e.Record)
		assert.Equal(t, e.Filename, e.Record.InvoiceNumber)
	}
	assert.Equal(t, len(names), p.Report().Count())
}
