package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-ocr/constants"
)

// Config for the Coordinator.
type Config struct {
	DPI         int    // rasterization DPI for PDFs, default 300
	Gray        bool   // render PDFs in grayscale; colour is kept by default
	MaxEdge     int    // longest page edge sent to the vendor, default 4096
	JPEGQuality int    // page re-encoding quality, default 95
	TempDir     string // parent for per-file render dirs; "" = os.TempDir()
}

// Coordinator turns a source file into its ordered page results.
type Coordinator struct {
	cfg      Config
	invoker  *Invoker
	renderer Renderer
	logger   *slog.Logger
}

func NewCoordinator(cfg Config, invoker *Invoker, renderer Renderer, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MaxEdge <= 0 {
		cfg.MaxEdge = 4096
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 95
	}
	return &Coordinator{cfg: cfg, invoker: invoker, renderer: renderer, logger: logger}
}

// ProcessFile picks a strategy based on file extension.
//
// Images produce exactly one result and propagate recognition errors. PDFs
// are rendered and recognized page by page; failing or empty pages are
// skipped, and a PDF that cannot be rendered yields no results. Unsupported extensions yield
// no results. Only a cancelled context aborts a PDF early.
func (c *Coordinator) ProcessFile(ctx context.Context, path string) ([]PageResult, error) {
	start := time.Now()
	ext := filepath.Ext(path)
	c.logger.Debug("ocr.file.start", "path", path, "ext", ext)

	switch constants.MapExtToFormat(ext) {
	case constants.IMAGE:
		res, err := c.processImage(ctx, path)
		c.logger.Debug("ocr.file.done", "path", path, "pages", len(res), "elapsed_ms", time.Since(start).Milliseconds(), "error", err)
		return res, err
	case constants.PDF:
		res, err := c.processPDF(ctx, path)
		c.logger.Debug("ocr.file.done", "path", path, "pages", len(res), "elapsed_ms", time.Since(start).Milliseconds(), "error", err)
		return res, err
	default:
		c.logger.Warn("ocr.file.unsupported_format", "path", path, "ext", ext)
		return []PageResult{}, nil
	}
}

func (c *Coordinator) processImage(ctx context.Context, path string) ([]PageResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	page, err := c.invoker.Invoke(ctx, data)
	if err != nil {
		c.logger.Error("ocr.image.failed", "path", path, "error", err)
		return nil, err
	}
	return []PageResult{page}, nil
}

func (c *Coordinator) processPDF(ctx context.Context, path string) ([]PageResult, error) {
	tmpDir, err := os.MkdirTemp(c.cfg.TempDir, "invoice-pages-*")
	if err != nil {
		return nil, fmt.Errorf("create render dir: %w", err)
	}
	defer func(dir string) {
		if err := os.RemoveAll(dir); err != nil {
			c.logger.Warn("failed to remove render dir", "dir", dir, "error", err)
		}
	}(tmpDir)

	pages, err := c.renderer.RenderPages(ctx, path, tmpDir, RenderOptions{DPI: c.cfg.DPI, Gray: c.cfg.Gray})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Error("ocr.pdf.render_failed", "path", path, "error", err)
		return []PageResult{}, nil
	}
	if len(pages) == 0 {
		c.logger.Error("ocr.pdf.render_failed", "path", path, "error", ErrNoPages)
		return []PageResult{}, nil
	}

	results := make([]PageResult, 0, len(pages))
	for i, img := range pages {
		pageNum := i + 1
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := c.processPage(ctx, img)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			c.logger.Error("ocr.page.failed", "path", path, "page", pageNum, "error", err)
			continue
		}
		if len(page) == 0 {
			c.logger.Warn("ocr.page.empty", "path", path, "page", pageNum)
			continue
		}
		results = append(results, page)
	}
	if len(results) == 0 {
		c.logger.Warn("ocr.pdf.nothing_recognized", "path", path, "pages", len(pages))
	}
	return results, nil
}

// processPage scopes one page image: it is removed once recognized.
func (c *Coordinator) processPage(ctx context.Context, imgPath string) (PageResult, error) {
	defer func() { _ = os.Remove(imgPath) }()
	data, err := encodePage(imgPath, c.cfg.MaxEdge, c.cfg.JPEGQuality)
	if err != nil {
		return nil, err
	}
	return c.invoker.Invoke(ctx, data)
}
