package ocr

import (
	"errors"
	"fmt"
)

// Codes used for failures that never reached the vendor.
const (
	CodeTransport = -1
	CodeTimeout   = -2
)

// ErrNoPages is wrapped by RenderError when the renderer produced nothing.
var ErrNoPages = errors.New("no pages rendered")

// APIError is a page-level recognition failure: either the vendor answered
// with an error_code, or the call did not complete.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ocr api error %d: %s", e.Code, e.Message)
}

// IsTimeout reports whether the call ran out of time.
func (e *APIError) IsTimeout() bool { return e.Code == CodeTimeout }

// RenderError means a PDF could not be rasterized.
type RenderError struct {
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
