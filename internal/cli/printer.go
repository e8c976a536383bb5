package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/core"
)

type styles struct {
	Success lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Title   lipgloss.Style
}

func newStyles() styles {
	return styles{
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
	}
}

// printer renders per-file progress lines for a terminal.
type printer struct {
	w      io.Writer
	styles styles
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, styles: newStyles()}
}

// fileStatus is an export.Listener.
func (p *printer) fileStatus(filename string, status constants.Status, message string) {
	var line string
	switch status {
	case constants.StatusSuccess:
		line = p.styles.Success.Render(fmt.Sprintf("✅ %s: %s", filename, message))
	case constants.StatusSkipped:
		line = p.styles.Muted.Render(fmt.Sprintf("⏭  %s: %s", filename, message))
	default:
		line = p.styles.Error.Render(fmt.Sprintf("❌ %s: %s", filename, message))
	}
	_, _ = fmt.Fprintln(p.w, line)
}

func (p *printer) progress(done, total int) {
	_, _ = fmt.Fprintln(p.w, p.styles.Muted.Render(fmt.Sprintf("   进度 %d/%d", done, total)))
}

func (p *printer) summary(sum core.BatchSummary) {
	_, _ = fmt.Fprintln(p.w, p.styles.Title.Render(fmt.Sprintf(
		"处理完成：共 %d 个文件，成功 %d，失败 %d，跳过 %d",
		sum.Total, sum.Accepted, sum.Failed, sum.Skipped)))
	if sum.OutputPath == "" {
		_, _ = fmt.Fprintln(p.w, p.styles.Muted.Render("没有识别成功的发票，未生成报表"))
		return
	}
	_, _ = fmt.Fprintf(p.w, "结果已保存到：%s\n", sum.OutputPath)
}
