// Package ocr turns invoice files into per-page recognition payloads. The
// recognizer itself (a remote vendor API) and the PDF rasterizer are injected.
package ocr

import "context"

// RawResult is the decoded vendor document for one image.
type RawResult map[string]any

// PageResult is the words_result payload of one page. An empty, non-nil map
// means the page was recognized but nothing usable came back.
type PageResult map[string]any

// Vendor document keys.
const (
	KeyWordsResult = "words_result"
	KeyErrorCode   = "error_code"
	KeyErrorMsg    = "error_msg"
	KeyLogID       = "log_id"
)

// Recognizer sends one encoded image to the invoice recognition service.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (RawResult, error)
}

// RenderOptions controls PDF rasterization.
type RenderOptions struct {
	DPI  int
	Gray bool
}

// Renderer rasterizes every page of a PDF into outDir and returns the image
// paths in page order.
type Renderer interface {
	RenderPages(ctx context.Context, path, outDir string, opts RenderOptions) ([]string, error)
}
