package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/core"
	"github.com/joseph-ayodele/invoice-ocr/internal/core/ocr"
	"github.com/joseph-ayodele/invoice-ocr/internal/export"
	"github.com/joseph-ayodele/invoice-ocr/internal/repository"
)

// stubFiles fails for names listed in errs and returns one page otherwise.
type stubFiles struct {
	errs map[string]error
}

func (s stubFiles) ProcessFile(_ context.Context, path string) ([]ocr.PageResult, error) {
	name := filepath.Base(path)
	if err, ok := s.errs[name]; ok {
		return nil, err
	}
	return []ocr.PageResult{{"InvoiceNum": name, "TotalAmount": "12.5"}}, nil
}

// setupFakeApp swaps the wiring for one backed by files and a SQLite ledger
// in a temp dir.
func setupFakeApp(t *testing.T, files core.FileProcessor) repository.LedgerRepository {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := repository.Open(context.Background(), repository.Config{DSN: filepath.Join(t.TempDir(), "ledger.db")}, logger)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	ledger := repository.NewLedgerRepository(db, logger)

	old := buildApp
	buildApp = func(_ *cobra.Command, recognize bool) (*App, error) {
		app := &App{Config: common.DefaultConfig(), Logger: logger, Ledger: ledger}
		if recognize {
			app.Processor = core.NewProcessor(logger, files, export.NewReport(logger), ledger)
		}
		return app, nil
	}
	t.Cleanup(func() {
		buildApp = old
		db.Close()
	})
	return ledger
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		runOut, runSkipProcessed, historyLimit = "", false, 20
	}()
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCmd_Executes(t *testing.T) {
	originalVersion := version
	SetVersion("test-version-1.0.0")
	defer func() { version = originalVersion }()

	out, err := execute(t, "version")
	assert.NoError(t, err)
	assert.Contains(t, out, "invoice-ocr version test-version-1.0.0")
}

func TestCommands_Metadata(t *testing.T) {
	assert.Equal(t, "run DIR", runCmd.Use)
	assert.Equal(t, "watch DIR", watchCmd.Use)
	assert.Equal(t, "history", historyCmd.Use)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("credentials"))
	assert.NotNil(t, watchCmd.Flags().Lookup("flush-every"))
	assert.NotNil(t, runCmd.Flags().Lookup("skip-processed"))
}

func TestRunCmd_ProcessesFolder(t *testing.T) {
	setupFakeApp(t, stubFiles{errs: map[string]error{
		"b.pdf": &ocr.APIError{Code: 17, Message: "quota exceeded"},
	}})
	dir := t.TempDir()
	for _, n := range []string{"a.jpg", "b.pdf", "readme.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte(n), 0o644))
	}

	out, err := execute(t, "run", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "✅ a.jpg: 处理成功")
	assert.Contains(t, out, "❌ b.pdf: 处理失败：ocr api error 17: quota exceeded")
	assert.Contains(t, out, "共 2 个文件，成功 1，失败 1，跳过 0")
	assert.Contains(t, out, "结果已保存到：")

	matches, _ := filepath.Glob(filepath.Join(dir, "发票识别结果_*_共1张.xlsx"))
	assert.Len(t, matches, 1)
}

func TestRunCmd_SkipProcessedAndHistory(t *testing.T) {
	setupFakeApp(t, stubFiles{})
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("a"), 0o644))

	_, err := execute(t, "run", dir)
	require.NoError(t, err)

	out, err := execute(t, "run", dir, "--skip-processed")
	require.NoError(t, err)
	assert.Contains(t, out, "a.jpg: "+core.MsgSkipped)
	assert.Contains(t, out, "未生成报表")

	out, err = execute(t, "history", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "PROCESSED AT")
	assert.Contains(t, out, "a.jpg")
	assert.Contains(t, out, "success")
}

func TestRunCmd_Errors(t *testing.T) {
	setupFakeApp(t, stubFiles{})

	_, err := execute(t, "run")
	assert.Error(t, err)

	_, err = execute(t, "run", filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "not a directory")

	_, err = execute(t, "run", t.TempDir())
	assert.ErrorContains(t, err, "没有找到支持的文件")
}

func TestHistoryCmd_Empty(t *testing.T) {
	setupFakeApp(t, stubFiles{})
	out, err := execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No processed files yet.")
}

func TestRootCmd_ErrorsPrintedOnce(t *testing.T) {
	setupFakeApp(t, stubFiles{})
	out, err := execute(t, "run", t.TempDir())
	require.Error(t, err)
	assert.NotContains(t, out, "Error:")
}

func TestHistoryTable(t *testing.T) {
	at := time.Date(2024, 6, 1, 9, 30, 0, 0, time.Local)
	got := historyTable([]repository.Entry{
		{ProcessedAt: at.Add(time.Minute), Status: constants.StatusError, PageCount: 1,
			Filename: "b.pdf", Message: "ocr api error 17: quota exceeded"},
		{ProcessedAt: at, Status: constants.StatusSuccess, PageCount: 2,
			Filename: "a.jpg", Message: export.MsgSuccess},
	}, newStyles())

	for _, want := range []string{
		"PROCESSED AT", "STATUS", "PAGES", "FILE", "MESSAGE",
		"2024-06-01 09:31:00", "b.pdf", "ocr api error 17: quota exceeded",
		"2024-06-01 09:30:00", "a.jpg", export.MsgSuccess,
	} {
		assert.Contains(t, got, want)
	}
	assert.Less(t, strings.Index(got, "b.pdf"), strings.Index(got, "a.jpg"))
}
