package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-ocr/internal/core"
)

var (
	runOut           string
	runSkipProcessed bool
)

var runCmd = &cobra.Command{
	Use:   "run DIR",
	Short: "Recognize every invoice in a folder and save the report",
	Long: `Processes the PDF, JPG and PNG files directly inside DIR (sub-folders and
hidden files are ignored) and saves the report as
DIR/发票识别结果_<timestamp>_共<N>张.xlsx unless --out is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "report path (a timestamp and row count are appended)")
	runCmd.Flags().BoolVar(&runSkipProcessed, "skip-processed", false,
		"skip files whose content was already recognized in an earlier run")
	rootCmd.AddCommand(runCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}

	app, err := buildApp(cmd, true)
	if err != nil {
		return err
	}
	defer app.Close()

	out := newPrinter(cmd.OutOrStdout())
	app.Processor.Report().SetListener(out.fileStatus)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := app.Processor.RunBatch(ctx, dir, core.BatchOptions{
		OutputPath:    runOut,
		ReportName:    app.Config.Report.Name,
		SkipProcessed: runSkipProcessed,
		Progress:      out.progress,
	})
	if errors.Is(err, core.ErrNoSupportedFiles) {
		return fmt.Errorf("文件夹中没有找到支持的文件 (pdf/jpg/jpeg/png): %s", dir)
	}
	if sum.BatchID != "" {
		out.summary(sum)
	}
	return err
}
