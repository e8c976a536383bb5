package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"strconv"
)

// Invoker obtains one page's payload from the Recognizer and classifies
// vendor-level failures. It never retries.
type Invoker struct {
	recognizer Recognizer
	logger     *slog.Logger
}

func NewInvoker(r Recognizer, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{recognizer: r, logger: logger}
}

// Invoke returns the page's words_result, an empty PageResult when the vendor
// recognized nothing, or an *APIError.
func (i *Invoker) Invoke(ctx context.Context, image []byte) (PageResult, error) {
	raw, err := i.recognizer.Recognize(ctx, image)
	if err != nil {
		return nil, classify(ctx, err)
	}

	if code, ok := raw[KeyErrorCode]; ok {
		apiErr := &APIError{Code: toInt(code), Message: "未知错误"}
		if msg, ok := raw[KeyErrorMsg].(string); ok && msg != "" {
			apiErr.Message = msg
		}
		i.logger.Error("ocr.api.error", "code", apiErr.Code, "message", apiErr.Message, "log_id", raw[KeyLogID])
		return nil, apiErr
	}

	if words, ok := raw[KeyWordsResult].(map[string]any); ok {
		return PageResult(words), nil
	}
	i.logger.Warn("ocr.api.empty_result", "log_id", raw[KeyLogID])
	return PageResult{}, nil
}

func classify(ctx context.Context, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &APIError{Code: CodeTimeout, Message: err.Error()}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &APIError{Code: CodeTimeout, Message: err.Error()}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &APIError{Code: CodeTransport, Message: err.Error()}
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return 0
}
