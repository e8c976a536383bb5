package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
)

// PdftoppmRenderer rasterizes PDFs with poppler's pdftoppm.
type PdftoppmRenderer struct {
	bin    string
	runner Runner
	logger *slog.Logger
}

func NewPdftoppmRenderer(bin string, runner Runner, logger *slog.Logger) *PdftoppmRenderer {
	if bin == "" {
		bin = "pdftoppm"
	}
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	return &PdftoppmRenderer{bin: bin, runner: runner, logger: logger}
}

// RenderPages runs `pdftoppm -r <dpi> -png [-gray] <in.pdf> <outDir>/page` and
// collects page-1.png, page-2.png, ... (zero padded by pdftoppm for long
// documents, so lexical order is page order).
func (r *PdftoppmRenderer) RenderPages(ctx context.Context, path, outDir string, opts RenderOptions) ([]string, error) {
	prefix := filepath.Join(outDir, "page")
	args := []string{"-r", fmt.Sprintf("%d", opts.DPI), "-png"}
	if opts.Gray {
		args = append(args, "-gray")
	}
	args = append(args, path, prefix)

	if _, errb, err := r.runner.Run(ctx, r.bin, args...); err != nil {
		msg := strings.TrimSpace(string(errb))
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, truncate(msg, 512))
		}
		return nil, &RenderError{Path: path, Err: err}
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, &RenderError{Path: path, Err: err}
	}
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, &RenderError{Path: path, Err: ErrNoPages}
	}
	r.logger.Debug("ocr.render.ok", "path", path, "pages", len(matches), "dpi", opts.DPI)
	return matches, nil
}
