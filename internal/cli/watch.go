package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-ocr/internal/core/async"
	"github.com/joseph-ayodele/invoice-ocr/internal/server"
)

var (
	watchOut           string
	watchFlushEvery    time.Duration
	watchDebounce      time.Duration
	watchInitialScan   bool
	watchSkipProcessed bool
	watchHealthAddr    string
)

var watchCmd = &cobra.Command{
	Use:   "watch DIR",
	Short: "Recognize invoices as they arrive in a folder",
	Long: `Watches DIR for new PDF and image files and adds each one to a running
report. The report is saved every --flush-every when it changed, and once more
on shutdown. A gRPC health service is served on --health-addr.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOut, "out", "o", "", "report path (a timestamp and row count are appended)")
	watchCmd.Flags().DurationVar(&watchFlushEvery, "flush-every", time.Minute, "how often to save the report")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "wait for writes to settle")
	watchCmd.Flags().BoolVar(&watchInitialScan, "initial-scan", false, "also process files already in DIR")
	watchCmd.Flags().BoolVar(&watchSkipProcessed, "skip-processed", true,
		"skip files whose content was already recognized")
	watchCmd.Flags().StringVar(&watchHealthAddr, "health-addr", "", "gRPC health address (default from HEALTH_ADDR)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	addr := watchHealthAddr
	if addr == "" {
		addr = app.Config.Server.HealthAddr
	}
	health, err := server.NewHealthServer(addr, app.Logger)
	if err != nil {
		return err
	}
	health.Start()
	defer health.Stop()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Printf("Watching %s (health on %s), Ctrl+C to stop\n", dir, health.Addr())
	health.SetServing(true)
	err = async.RunWatch(ctx, app.Processor, async.WatchOptions{
		Dir:           dir,
		OutputPath:    watchOut,
		ReportName:    app.Config.Report.Name,
		FlushEvery:    watchFlushEvery,
		Debounce:      watchDebounce,
		InitialScan:   watchInitialScan,
		SkipProcessed: watchSkipProcessed,
	}, app.Logger)
	health.SetServing(false)
	if err != nil {
		return err
	}
	cmd.Printf("Stopped, %d invoices recognized\n", app.Processor.Report().Count())
	return nil
}
