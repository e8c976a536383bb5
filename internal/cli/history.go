package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/repository"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently processed files from the ledger",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	app, err := buildApp(cmd, false)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Ledger == nil {
		return errors.New("ledger is disabled (LEDGER_DSN=off)")
	}
	entries, err := app.Ledger.Recent(commandContext(cmd), historyLimit)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	if len(entries) == 0 {
		cmd.Println("No processed files yet.")
		return nil
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), historyTable(entries, newStyles()))
	return err
}

// historyTable renders ledger entries newest first, colouring the status column.
func historyTable(entries []repository.Entry, st styles) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(st.Muted).
		Headers("PROCESSED AT", "STATUS", "PAGES", "FILE", "MESSAGE")
	for _, e := range entries {
		t.Row(e.ProcessedAt.Format("2006-01-02 15:04:05"), string(e.Status),
			strconv.Itoa(e.PageCount), e.Filename, e.Message)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		cell := lipgloss.NewStyle().Padding(0, 1)
		switch {
		case row == table.HeaderRow:
			return st.Title.Padding(0, 1)
		case col != 1, row < 0, row >= len(entries):
			return cell
		}
		switch entries[row].Status {
		case constants.StatusSuccess:
			return st.Success.Padding(0, 1)
		case constants.StatusSkipped:
			return st.Muted.Padding(0, 1)
		default:
			return st.Error.Padding(0, 1)
		}
	})
	return t.String()
}
